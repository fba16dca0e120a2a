package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	job    io.Reader
	stdout io.Writer
	stderr io.Writer

	historyLimit int
	previewFile  string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithJob sets the source of the JSON job request.
func WithJob(r io.Reader) Option {
	return func(a *application) {
		a.job = r
	}
}

// WithStdout sets where manifests and listings are written.
func WithStdout(w io.Writer) Option {
	return func(a *application) {
		a.stdout = w
	}
}

// WithStderr sets where logs are written.
func WithStderr(w io.Writer) Option {
	return func(a *application) {
		a.stderr = w
	}
}

// WithHistoryLimit caps the number of runs History lists.
func WithHistoryLimit(n int) Option {
	return func(a *application) {
		a.historyLimit = n
	}
}

// WithPreviewFile names the Markdown file Preview renders.
func WithPreviewFile(path string) Option {
	return func(a *application) {
		a.previewFile = path
	}
}
