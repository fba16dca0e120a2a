// Package apperr holds the sentinel errors shared across the pipeline.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrMalformedJob  = errors.New("malformed job request")
	ErrCellExecution = errors.New("cell execution failed")
	ErrEngine        = errors.New("execution engine failure")
)
