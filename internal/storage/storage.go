// Package storage provides file access rooted at the directory of the
// notebook being processed.
package storage

// Provider is the interface for run file operations. Paths are relative to
// the provider root and use forward or OS-native separators.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// EnsureDir creates the directory at path if it does not exist.
	EnsureDir(path string) error
	// Abs returns the absolute OS path for path.
	Abs(path string) (string, error)
}
