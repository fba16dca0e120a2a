package internal

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Engine  EngineConfig      `yaml:"engine"`
	History HistoryConfig     `yaml:"history"`
	Watch   WatchConfig       `yaml:"watch"`
	Preview PreviewConfig     `yaml:"preview"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.History.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	return c.Preview.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	)
}

// EngineConfig configures the Go interpreter that executes cells.
type EngineConfig struct {
	// CellTimeout bounds a single cell; 0 means no limit.
	CellTimeout time.Duration `yaml:"cell_timeout"`
	// Env entries ("KEY=VALUE") visible to cells through os.Getenv.
	Env []string `yaml:"env"`
}

// Validate validates the engine configuration.
func (c *EngineConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CellTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Env, validation.Each(validation.By(envEntry))),
	)
}

func envEntry(value interface{}) error {
	s, _ := value.(string)
	if k, _, ok := strings.Cut(s, "="); !ok || k == "" {
		return errors.New("must be KEY=VALUE")
	}
	return nil
}

// HistoryConfig holds the run ledger configuration.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the history configuration.
func (c *HistoryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// WatchConfig holds watch mode configuration.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// PreviewConfig holds terminal preview configuration.
type PreviewConfig struct {
	Style string `yaml:"style"`
	Width int    `yaml:"width"`
}

// Validate validates the preview configuration.
func (c *PreviewConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Style, validation.Required),
		validation.Field(&c.Width, validation.Min(0)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
		},
		Engine: EngineConfig{
			CellTimeout: 5 * time.Minute,
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    "./.nbexec/history.db",
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
		Preview: PreviewConfig{
			Style: "dark",
			Width: 100,
		},
	}
}
