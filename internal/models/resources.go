package models

// Resources is the side channel carried with a notebook through the render
// stage.
type Resources struct {
	// OutputFilesDir is the directory, relative to the notebook, that
	// generated figures are named under.
	OutputFilesDir string

	// Outputs maps generated file paths to their contents. Filled by the
	// renderer.
	Outputs map[string][]byte
}

// NewResources returns a resources bag targeting dir.
func NewResources(dir string) *Resources {
	return &Resources{OutputFilesDir: dir, Outputs: map[string][]byte{}}
}
