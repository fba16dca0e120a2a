package redact

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/nbexec/internal/models"
	"github.com/starford/nbexec/internal/tags"
)

func executedCell(source string, tagNames ...string) *models.Cell {
	c := models.NewCodeCell(source, tagNames...)
	n := 1
	c.ExecutionCount = &n
	c.Outputs = []models.Output{models.StreamOutput(models.StreamStdout, "out\n")}
	c.Metadata["collapsed"] = false
	c.Metadata["scrolled"] = true
	c.Metadata["custom"] = "keep"
	return c
}

func sources(nb *models.Notebook) []string {
	out := make([]string, len(nb.Cells))
	for i, c := range nb.Cells {
		out[i] = string(c.Source)
	}
	return out
}

func TestRemoveCellSpellings(t *testing.T) {
	nb := models.New(
		executedCell("a"),
		executedCell("b", "remove-cell"),
		models.NewMarkdownCell("c", "remove_cell"),
		executedCell("d"),
	)
	got, _ := New(true, true).Apply(nb, models.NewResources(""))
	if diff := cmp.Diff([]string{"a", "d"}, sources(got)); diff != "" {
		t.Errorf("surviving cells (-want +got):\n%s", diff)
	}
}

func TestRemovedCellNotRedacted(t *testing.T) {
	removed := executedCell("gone", "remove-cell", "remove-output", "remove-input")
	nb := models.New(removed)
	New(false, false).Apply(nb, nil)
	if len(nb.Cells) != 0 {
		t.Fatalf("cells = %d", len(nb.Cells))
	}
	if len(removed.Outputs) != 1 || removed.ExecutionCount == nil || removed.InputHidden {
		t.Errorf("removed cell was redacted: %+v", removed)
	}
}

func TestOutputClearing(t *testing.T) {
	cases := []struct {
		name          string
		includeOutput bool
		tags          []string
		wantCleared   bool
	}{
		{"global include", true, nil, false},
		{"global exclude", false, nil, true},
		{"global exclude with include tag", false, []string{"include-output"}, false},
		{"remove tag", true, []string{"remove-output"}, true},
		{"underscore remove tag", true, []string{"remove_output"}, true},
		{"remove wins over include", true, []string{"include-output", "remove-output"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := executedCell("x", tc.tags...)
			New(true, tc.includeOutput).RedactCell(c)
			cleared := len(c.Outputs) == 0 && c.ExecutionCount == nil
			if cleared != tc.wantCleared {
				t.Fatalf("cleared = %v, want %v", cleared, tc.wantCleared)
			}
			_, collapsed := c.Metadata["collapsed"]
			_, scrolled := c.Metadata["scrolled"]
			if tc.wantCleared && (collapsed || scrolled) {
				t.Error("presentation metadata survived clearing")
			}
			if c.Metadata["custom"] != "keep" {
				t.Error("unrelated metadata removed")
			}
			if c.Outputs == nil {
				t.Error("outputs must be an empty list, not nil")
			}
		})
	}
}

func TestInputHiding(t *testing.T) {
	cases := []struct {
		name         string
		includeInput bool
		tags         []string
		wantHidden   bool
	}{
		{"global include", true, nil, false},
		{"global exclude", false, nil, true},
		{"global exclude with include tag", false, []string{"include-input"}, false},
		{"remove tag", true, []string{"remove-input"}, true},
		{"underscore remove tag", true, []string{"remove_input"}, true},
		{"remove wins over include", false, []string{"include-input", "remove_input"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := executedCell("print()", tc.tags...)
			nb := models.New(models.NewMarkdownCell("before"), c)
			New(tc.includeInput, true).Apply(nb, nil)
			if c.InputHidden != tc.wantHidden {
				t.Fatalf("hidden = %v, want %v", c.InputHidden, tc.wantHidden)
			}
			if string(c.Source) != "print()" || len(c.Outputs) != 1 || nb.Cells[1] != c {
				t.Error("input hiding altered source, outputs, or position")
			}
		})
	}
}

func TestNonCodeCellsUntouched(t *testing.T) {
	md := models.NewMarkdownCell("text", "remove-input", "remove-output")
	New(false, false).RedactCell(md)
	if md.InputHidden {
		t.Error("markdown cell input hidden")
	}
}

func TestIdempotent(t *testing.T) {
	build := func() *models.Notebook {
		return models.New(
			executedCell("a", "remove-output"),
			executedCell("b", "remove-cell"),
			executedCell("c", "include-output"),
			executedCell("d", "remove-input"),
			models.NewMarkdownCell("e"),
		)
	}
	p := New(false, false)
	once, _ := p.Apply(build(), nil)
	snapshot := encode(t, once)
	hidden := hiddenFlags(once)
	twice, _ := p.Apply(once, nil)
	if diff := cmp.Diff(snapshot, encode(t, twice)); diff != "" {
		t.Errorf("second pass changed notebook (-once +twice):\n%s", diff)
	}
	if diff := cmp.Diff(hidden, hiddenFlags(twice)); diff != "" {
		t.Errorf("second pass changed hidden flags:\n%s", diff)
	}
}

func TestEmptyVocabularyIsNoop(t *testing.T) {
	c := executedCell("x", "remove-cell")
	nb := models.New(c)
	p := &Policy{IncludeInput: false, IncludeOutput: false, Vocabulary: tags.Vocabulary{}}
	p.Apply(nb, nil)
	if len(nb.Cells) != 1 || len(c.Outputs) != 1 || c.InputHidden {
		t.Error("empty vocabulary should skip all filtering")
	}
}

func TestResourcesPassThrough(t *testing.T) {
	res := models.NewResources("nb_files/figure-ipynb")
	_, got := New(true, true).Apply(models.New(), res)
	if got != res {
		t.Error("resources bag replaced")
	}
}

func encode(t *testing.T, nb *models.Notebook) string {
	t.Helper()
	data, err := nb.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func hiddenFlags(nb *models.Notebook) []bool {
	out := make([]bool, len(nb.Cells))
	for i, c := range nb.Cells {
		out[i] = c.InputHidden
	}
	return out
}
