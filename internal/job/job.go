// Package job defines the structured request that starts a run and the
// manifest a successful run reports.
package job

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/nbexec/internal/apperr"
)

// Request is the job read once from the caller.
type Request struct {
	Input  string     `json:"input"`
	Output string     `json:"output"`
	Format FormatSpec `json:"format"`
}

// FormatSpec is the "format" object of a request.
type FormatSpec struct {
	Execute ExecuteSpec `json:"execute"`
}

// ExecuteSpec holds the execute switches as sent. Every switch must be
// present; a nil field marks one the caller left out.
type ExecuteSpec struct {
	AllowErrors     *bool `json:"allow-errors"`
	IncludeInput    *bool `json:"include-input"`
	IncludeOutput   *bool `json:"include-output"`
	IncludeWarnings *bool `json:"include-warnings"`
}

// Validate validates the execute switches.
func (e ExecuteSpec) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.AllowErrors, validation.NotNil),
		validation.Field(&e.IncludeInput, validation.NotNil),
		validation.Field(&e.IncludeOutput, validation.NotNil),
		validation.Field(&e.IncludeWarnings, validation.NotNil),
	)
}

// Validate validates the format object.
func (f FormatSpec) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Execute),
	)
}

// Format is the resolved, immutable per-run configuration.
type Format struct {
	AllowErrors     bool
	IncludeInput    bool
	IncludeOutput   bool
	IncludeWarnings bool
}

// Validate validates the request. A failure means the job is malformed.
func (r *Request) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Input, validation.Required, validation.By(notebookPath)),
		validation.Field(&r.Output, validation.Required, validation.By(notDirectory)),
		validation.Field(&r.Format),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrMalformedJob, err)
	}
	return nil
}

// Resolve returns the execute switches. It is only meaningful on a request
// that passed Validate.
func (r *Request) Resolve() Format {
	e := r.Format.Execute
	return Format{
		AllowErrors:     deref(e.AllowErrors),
		IncludeInput:    deref(e.IncludeInput),
		IncludeOutput:   deref(e.IncludeOutput),
		IncludeWarnings: deref(e.IncludeWarnings),
	}
}

// Parse decodes and validates a request. Every failure wraps
// apperr.ErrMalformedJob.
func Parse(r io.Reader) (*Request, error) {
	var req Request
	dec := json.NewDecoder(r)
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", apperr.ErrMalformedJob, err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

func notebookPath(value interface{}) error {
	s, _ := value.(string)
	if !strings.EqualFold(filepath.Ext(s), ".ipynb") {
		return fmt.Errorf("must be a .ipynb notebook")
	}
	return nil
}

func notDirectory(value interface{}) error {
	s, _ := value.(string)
	if strings.HasSuffix(s, "/") || strings.HasSuffix(s, string(filepath.Separator)) {
		return fmt.Errorf("must name a file")
	}
	return nil
}

func deref(v *bool) bool {
	return v != nil && *v
}
