package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/nbexec/internal/apperr"
	"github.com/starford/nbexec/internal/models"
	"github.com/starford/nbexec/internal/testutil"
)

func jobFor(input string) io.Reader {
	body, _ := json.Marshal(map[string]any{
		"input":  input,
		"output": "report.md",
		"format": map[string]any{"execute": map[string]any{
			"allow-errors":     false,
			"include-input":    true,
			"include-output":   true,
			"include-warnings": true,
		}},
	})
	return bytes.NewReader(body)
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")
	return cfg
}

func TestRunWritesManifestAndRecordsHistory(t *testing.T) {
	input := testutil.WriteNotebook(t, "report.ipynb", models.New(models.NewCodeCell(`import "fmt"`+"\n"+`fmt.Println("hello")`)))
	cfg := testConfig(t)

	var stdout bytes.Buffer
	err := Run(context.Background(),
		WithConfig(cfg),
		WithJob(jobFor(input)),
		WithStdout(&stdout),
		WithStderr(io.Discard))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var manifest map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &manifest); err != nil {
		t.Fatalf("manifest is not JSON: %v\n%s", err, stdout.String())
	}
	supporting, _ := manifest["supporting"].([]any)
	if len(supporting) != 1 || supporting[0] != "report_files" {
		t.Errorf("supporting = %v", manifest["supporting"])
	}

	md, err := os.ReadFile(filepath.Join(filepath.Dir(input), "report.md"))
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !strings.Contains(string(md), "hello") {
		t.Errorf("output missing cell output:\n%s", md)
	}

	var listing bytes.Buffer
	err = History(context.Background(),
		WithConfig(cfg),
		WithStdout(&listing),
		WithStderr(io.Discard))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if !strings.Contains(listing.String(), "succeeded") || !strings.Contains(listing.String(), "report.ipynb") {
		t.Errorf("history listing missing run:\n%s", listing.String())
	}
}

func TestRunFailureWritesNoManifest(t *testing.T) {
	input := testutil.WriteNotebook(t, "report.ipynb", models.New(models.NewCodeCell(`panic("boom")`)))

	var stdout bytes.Buffer
	err := Run(context.Background(),
		WithConfig(NewDefaultConfig()),
		WithJob(jobFor(input)),
		WithStdout(&stdout),
		WithStderr(io.Discard))
	if !errors.Is(err, apperr.ErrCellExecution) {
		t.Fatalf("err = %v, want ErrCellExecution", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
}

func TestRunMalformedJob(t *testing.T) {
	err := Run(context.Background(),
		WithConfig(NewDefaultConfig()),
		WithJob(strings.NewReader("{not json")),
		WithStdout(io.Discard),
		WithStderr(io.Discard))
	if !errors.Is(err, apperr.ErrMalformedJob) {
		t.Fatalf("err = %v, want ErrMalformedJob", err)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestHistoryDisabled(t *testing.T) {
	err := History(context.Background(),
		WithConfig(NewDefaultConfig()),
		WithStdout(io.Discard),
		WithStderr(io.Discard))
	if err == nil {
		t.Fatal("expected error when history is disabled")
	}
}

func TestPreviewRendersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	if err := os.WriteFile(path, []byte("# Summary\n\nAll cells ran.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	cfg.Preview.Style = "notty"

	var out bytes.Buffer
	err := Preview(context.Background(),
		WithConfig(cfg),
		WithPreviewFile(path),
		WithStdout(&out),
		WithStderr(io.Discard))
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !strings.Contains(out.String(), "Summary") {
		t.Errorf("preview output missing heading:\n%s", out.String())
	}
}
