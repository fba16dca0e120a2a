package job

import (
	"encoding/json"
	"fmt"
	"io"
)

// Manifest is written once when a run succeeds.
type Manifest struct {
	// Supporting lists directories, relative to the input notebook, that the
	// caller must keep alongside the output.
	Supporting []string `json:"supporting"`

	// Pandoc and Postprocess are reserved and always emitted empty.
	Pandoc      map[string]any `json:"pandoc"`
	Postprocess any            `json:"postprocess"`
}

// NewManifest returns a manifest listing the given support directories.
func NewManifest(supporting ...string) *Manifest {
	if supporting == nil {
		supporting = []string{}
	}
	return &Manifest{Supporting: supporting, Pandoc: map[string]any{}}
}

// Write encodes the manifest as a single JSON document.
func (m *Manifest) Write(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(m); err != nil {
		return fmt.Errorf("job: write manifest: %w", err)
	}
	return nil
}
