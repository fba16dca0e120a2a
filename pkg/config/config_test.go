package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Depth int    `yaml:"depth"`
}

func (s *sample) Validate() error {
	if s.Depth < 0 {
		return errors.New("depth must not be negative")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadKeepsDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("NBEXEC_TEST_NAME", "from-env")
	path := writeFile(t, "name: ${NBEXEC_TEST_NAME}\n")

	cfg := sample{Name: "default", Depth: 3}
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "from-env" {
		t.Errorf("Name = %q, want from-env", cfg.Name)
	}
	if cfg.Depth != 3 {
		t.Errorf("Depth = %d, default should survive", cfg.Depth)
	}
}

func TestLoadRunsValidator(t *testing.T) {
	path := writeFile(t, "depth: -1\n")
	var cfg sample
	if err := Load(path, &cfg); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg sample
	err := Load(filepath.Join(t.TempDir(), "absent.yaml"), &cfg)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestLoadOptionalMissingFileUsesTarget(t *testing.T) {
	cfg := sample{Name: "default"}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &cfg)
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if found {
		t.Error("found = true for a missing file")
	}
	if cfg.Name != "default" {
		t.Errorf("Name = %q", cfg.Name)
	}

	bad := sample{Depth: -2}
	if _, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &bad); err == nil {
		t.Error("defaults must still be validated")
	}
}

func TestLoadOptionalMalformed(t *testing.T) {
	path := writeFile(t, "name: [unterminated\n")
	var cfg sample
	found, err := LoadOptional(path, &cfg)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !found {
		t.Error("found = false for an existing file")
	}
}
