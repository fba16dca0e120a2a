// Package tags defines the cell tag vocabulary recognized by the pipeline.
package tags

// Recognized tag spellings. The underscore variants exist for compatibility
// with jupytext and runtools; the dash variants match jupyter-book.
const (
	NoExecute     = "no-execute"
	IncludeInput  = "include-input"
	IncludeOutput = "include-output"
	RemoveCell    = "remove-cell"
	RemoveOutput  = "remove-output"
	RemoveInput   = "remove-input"
)

// Set is an unordered set of tag names.
type Set map[string]struct{}

// NewSet builds a Set from the given names. Duplicates collapse.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// FromMetadata extracts the tag set from a cell metadata map. Missing or
// malformed "tags" entries yield an empty set.
func FromMetadata(md map[string]any) Set {
	if md == nil {
		return Set{}
	}
	switch v := md["tags"].(type) {
	case []string:
		return NewSet(v...)
	case []any:
		s := make(Set, len(v))
		for _, item := range v {
			if name, ok := item.(string); ok {
				s[name] = struct{}{}
			}
		}
		return s
	}
	return Set{}
}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Intersects reports whether s and other share at least one name.
func (s Set) Intersects(other Set) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for name := range small {
		if _, ok := large[name]; ok {
			return true
		}
	}
	return false
}

// Empty reports whether the set has no members.
func (s Set) Empty() bool {
	return len(s) == 0
}

// Vocabulary groups the tag sets each policy switch responds to.
type Vocabulary struct {
	NoExecute     Set
	IncludeInput  Set
	IncludeOutput Set
	RemoveCell    Set
	RemoveOutput  Set
	RemoveInput   Set

	// OutputMetadata lists cell metadata fields that only describe how
	// prior output was presented; they are dropped when output is cleared.
	OutputMetadata []string
}

// Default returns the fixed vocabulary used by every run.
func Default() Vocabulary {
	return Vocabulary{
		NoExecute:      NewSet(NoExecute),
		IncludeInput:   NewSet(IncludeInput),
		IncludeOutput:  NewSet(IncludeOutput),
		RemoveCell:     NewSet(RemoveCell, "remove_cell"),
		RemoveOutput:   NewSet(RemoveOutput, "remove_output"),
		RemoveInput:    NewSet(RemoveInput, "remove_input"),
		OutputMetadata: []string{"collapsed", "scrolled"},
	}
}

// HasRemovals reports whether any of the removal tag classes is populated.
func (v Vocabulary) HasRemovals() bool {
	return !v.RemoveCell.Empty() || !v.RemoveOutput.Empty() || !v.RemoveInput.Empty()
}
