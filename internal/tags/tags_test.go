package tags

import "testing"

func TestFromMetadata(t *testing.T) {
	cases := []struct {
		name string
		md   map[string]any
		want []string
	}{
		{"nil metadata", nil, nil},
		{"no tags key", map[string]any{"scrolled": true}, nil},
		{"decoded json list", map[string]any{"tags": []any{"remove-cell", "x", 3}}, []string{"remove-cell", "x"}},
		{"string slice", map[string]any{"tags": []string{"no-execute"}}, []string{"no-execute"}},
		{"malformed", map[string]any{"tags": "remove-cell"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FromMetadata(tc.md)
			if len(got) != len(tc.want) {
				t.Fatalf("len = %d, want %d (%v)", len(got), len(tc.want), got)
			}
			for _, w := range tc.want {
				if !got.Has(w) {
					t.Errorf("missing %q", w)
				}
			}
		})
	}
}

func TestIntersects(t *testing.T) {
	a := NewSet("remove-cell", "foo")
	if !a.Intersects(NewSet("remove_cell", "remove-cell")) {
		t.Error("expected intersection")
	}
	if a.Intersects(NewSet("bar")) {
		t.Error("unexpected intersection")
	}
	if a.Intersects(Set{}) || (Set{}).Intersects(a) {
		t.Error("empty set never intersects")
	}
}

func TestDefaultVocabularyAliases(t *testing.T) {
	v := Default()
	for _, spelling := range []string{"remove-cell", "remove_cell"} {
		if !v.RemoveCell.Has(spelling) {
			t.Errorf("remove-cell group missing %q", spelling)
		}
	}
	for _, spelling := range []string{"remove-output", "remove_output"} {
		if !v.RemoveOutput.Has(spelling) {
			t.Errorf("remove-output group missing %q", spelling)
		}
	}
	for _, spelling := range []string{"remove-input", "remove_input"} {
		if !v.RemoveInput.Has(spelling) {
			t.Errorf("remove-input group missing %q", spelling)
		}
	}
	if !v.HasRemovals() {
		t.Error("default vocabulary should have removals")
	}
	if (Vocabulary{}).HasRemovals() {
		t.Error("zero vocabulary should have no removals")
	}
}
