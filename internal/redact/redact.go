// Package redact decides which cells, inputs, and outputs of an executed
// notebook reach the renderer.
package redact

import (
	"github.com/starford/nbexec/internal/models"
	"github.com/starford/nbexec/internal/tags"
)

// Policy applies tag-driven removal on top of global include switches.
type Policy struct {
	IncludeInput  bool
	IncludeOutput bool
	Vocabulary    tags.Vocabulary
}

// New returns a policy using the default tag vocabulary.
func New(includeInput, includeOutput bool) *Policy {
	return &Policy{
		IncludeInput:  includeInput,
		IncludeOutput: includeOutput,
		Vocabulary:    tags.Default(),
	}
}

// Apply drops removed cells and redacts the rest in place. The resources bag
// is returned unchanged.
func (p *Policy) Apply(nb *models.Notebook, res *models.Resources) (*models.Notebook, *models.Resources) {
	if !p.Vocabulary.HasRemovals() {
		return nb, res
	}

	kept := make([]*models.Cell, 0, len(nb.Cells))
	for _, cell := range nb.Cells {
		if cell.Tags().Intersects(p.Vocabulary.RemoveCell) {
			continue
		}
		kept = append(kept, cell)
	}
	for _, cell := range kept {
		p.RedactCell(cell)
	}
	nb.Cells = kept
	return nb, res
}

// RedactCell clears output and hides input of a single code cell as the tags
// and global switches require. Remove and include conditions are evaluated
// independently, so a remove tag is never overridden by an include tag.
func (p *Policy) RedactCell(cell *models.Cell) {
	if !cell.IsCode() {
		return
	}
	t := cell.Tags()

	if (!p.IncludeOutput && !t.Intersects(p.Vocabulary.IncludeOutput)) || t.Intersects(p.Vocabulary.RemoveOutput) {
		cell.ClearOutputs()
		for _, field := range p.Vocabulary.OutputMetadata {
			delete(cell.Metadata, field)
		}
	}

	if (!p.IncludeInput && !t.Intersects(p.Vocabulary.IncludeInput)) || t.Intersects(p.Vocabulary.RemoveInput) {
		cell.InputHidden = true
	}
}
