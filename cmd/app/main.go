package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/nbexec/internal"
	pkgconfig "github.com/starford/nbexec/pkg/config"
)

// loadConfig reads --config on top of the defaults. A missing file is not an
// error: the defaults are complete.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// jobSource opens --job, or stdin when it is not set.
func jobSource(cmd *cli.Command) (io.ReadCloser, error) {
	path := cmd.String("job")
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open job: %w", err)
	}
	return f, nil
}

func jobCommand(entry func(context.Context, ...internal.Option) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		src, err := jobSource(cmd)
		if err != nil {
			return err
		}
		defer src.Close()

		return entry(ctx, internal.WithConfig(cfg), internal.WithJob(src))
	}
}

func history(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.History(ctx,
		internal.WithConfig(cfg),
		internal.WithHistoryLimit(int(cmd.Int("limit"))))
}

func preview(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if s := cmd.String("style"); s != "" {
		cfg.Preview.Style = s
	}
	if w := cmd.Int("width"); w > 0 {
		cfg.Preview.Width = int(w)
	}
	return internal.Preview(ctx,
		internal.WithConfig(cfg),
		internal.WithPreviewFile(cmd.Args().First()))
}

func main() {
	cmd := &cli.Command{
		Name:   "nbexec",
		Usage:  "Execute a notebook selectively by cell tags and render it to Markdown",
		Action: jobCommand(internal.Run),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("NBEXEC_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "job",
				Aliases: []string{"j"},
				Usage:   "Path to the JSON job request (default: stdin)",
				Sources: cli.EnvVars("NBEXEC_JOB_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Execute, redact and render one job, then print its manifest",
				Action: jobCommand(internal.Run),
			},
			{
				Name:   "watch",
				Usage:  "Run the job and re-run it whenever the notebook changes",
				Action: jobCommand(internal.Watch),
			},
			{
				Name:  "history",
				Usage: "List recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Number of runs to list"},
				},
				Action: history,
			},
			{
				Name:      "preview",
				Usage:     "Render a Markdown file in the terminal",
				ArgsUsage: "<file.md>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "style", Usage: "Glamour style (dark, light, notty, ascii, auto)"},
					&cli.IntFlag{Name: "width", Usage: "Wrap width, 0 keeps the configured width"},
				},
				Action: preview,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
