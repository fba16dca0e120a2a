// Package models defines the notebook document types and their nbformat v4
// JSON encoding.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/nbexec/internal/tags"
)

// CellType discriminates notebook cells.
type CellType string

const (
	CellCode     CellType = "code"
	CellMarkdown CellType = "markdown"
	CellRaw      CellType = "raw"
)

// DefaultLanguage is assumed when the notebook metadata names none.
const DefaultLanguage = "go"

// MultilineString is text that nbformat stores either as a single string or
// as a list of lines. It always encodes as a list of lines.
type MultilineString string

// UnmarshalJSON accepts a string, a list of strings, or null.
func (m *MultilineString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*m = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*m = MultilineString(s)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(b, &lines); err != nil {
		return fmt.Errorf("models: multiline string: %w", err)
	}
	*m = MultilineString(strings.Join(lines, ""))
	return nil
}

// MarshalJSON writes the text as a list of lines, each keeping its newline.
func (m MultilineString) MarshalJSON() ([]byte, error) {
	return json.Marshal(SplitLines(string(m)))
}

// SplitLines splits s after every newline. The result is never nil.
func SplitLines(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if lines == nil {
		return []string{}
	}
	return lines
}

// MimeBundle maps MIME types to their payloads.
type MimeBundle map[string]any

// Text returns the payload for mime as text, joining list-of-lines values.
func (b MimeBundle) Text(mime string) (string, bool) {
	switch v := b[mime].(type) {
	case string:
		return v, true
	case []string:
		return strings.Join(v, ""), true
	case []any:
		var sb strings.Builder
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return "", false
			}
			sb.WriteString(s)
		}
		return sb.String(), true
	}
	return "", false
}

// Notebook is an nbformat v4 document.
type Notebook struct {
	Cells         []*Cell        `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

// New returns an empty v4 notebook.
func New(cells ...*Cell) *Notebook {
	return &Notebook{
		Cells:         cells,
		Metadata:      map[string]any{},
		NBFormat:      4,
		NBFormatMinor: 5,
	}
}

// Decode parses an nbformat v4 notebook.
func Decode(data []byte) (*Notebook, error) {
	var nb Notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return nil, fmt.Errorf("models: decode notebook: %w", err)
	}
	if nb.NBFormat != 4 {
		return nil, fmt.Errorf("models: unsupported nbformat %d", nb.NBFormat)
	}
	if nb.Metadata == nil {
		nb.Metadata = map[string]any{}
	}
	for i, c := range nb.Cells {
		if c == nil {
			return nil, fmt.Errorf("models: cell %d is null", i)
		}
	}
	return &nb, nil
}

// Encode serializes the notebook the way Jupyter writes it: one-space indent
// and a trailing newline.
func (nb *Notebook) Encode() ([]byte, error) {
	if nb.Cells == nil {
		nb.Cells = []*Cell{}
	}
	if nb.Metadata == nil {
		nb.Metadata = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", " ")
	if err := enc.Encode(nb); err != nil {
		return nil, fmt.Errorf("models: encode notebook: %w", err)
	}
	return buf.Bytes(), nil
}

// EnsureCellIDs assigns a short random id to every cell that lacks one when
// the document is nbformat 4.5 or later, where ids are mandatory. It reports
// whether any id was added.
func (nb *Notebook) EnsureCellIDs() bool {
	if nb.NBFormat < 4 || (nb.NBFormat == 4 && nb.NBFormatMinor < 5) {
		return false
	}
	seen := make(map[string]bool, len(nb.Cells))
	for _, c := range nb.Cells {
		if c.ID != "" {
			seen[c.ID] = true
		}
	}
	added := false
	for _, c := range nb.Cells {
		if c.ID != "" {
			continue
		}
		id := newCellID()
		for seen[id] {
			id = newCellID()
		}
		seen[id] = true
		c.ID = id
		added = true
	}
	return added
}

func newCellID() string {
	return uuid.NewString()[:8]
}

// Language returns the notebook's programming language name.
func (nb *Notebook) Language() string {
	if info, ok := nb.Metadata["language_info"].(map[string]any); ok {
		if name, ok := info["name"].(string); ok && name != "" {
			return name
		}
	}
	if spec, ok := nb.Metadata["kernelspec"].(map[string]any); ok {
		if lang, ok := spec["language"].(string); ok && lang != "" {
			return lang
		}
	}
	return DefaultLanguage
}

// Cell is one unit of a notebook.
type Cell struct {
	ID             string
	CellType       CellType
	Source         MultilineString
	Metadata       map[string]any
	Attachments    map[string]MimeBundle
	Outputs        []Output
	ExecutionCount *int

	// InputHidden marks the source as hidden from rendering. It is never
	// serialized; the source stays in the document.
	InputHidden bool
}

// NewCodeCell returns a code cell with the given source and tags.
func NewCodeCell(source string, tagNames ...string) *Cell {
	return newCell(CellCode, source, tagNames)
}

// NewMarkdownCell returns a markdown cell with the given source and tags.
func NewMarkdownCell(source string, tagNames ...string) *Cell {
	return newCell(CellMarkdown, source, tagNames)
}

func newCell(kind CellType, source string, tagNames []string) *Cell {
	c := &Cell{CellType: kind, Source: MultilineString(source), Metadata: map[string]any{}}
	if len(tagNames) > 0 {
		list := make([]any, len(tagNames))
		for i, t := range tagNames {
			list[i] = t
		}
		c.Metadata["tags"] = list
	}
	if kind == CellCode {
		c.Outputs = []Output{}
	}
	return c
}

// Tags returns the cell's tag set.
func (c *Cell) Tags() tags.Set {
	return tags.FromMetadata(c.Metadata)
}

// IsCode reports whether the cell is a code cell.
func (c *Cell) IsCode() bool {
	return c.CellType == CellCode
}

// ClearOutputs empties outputs and resets the execution count.
func (c *Cell) ClearOutputs() {
	c.Outputs = []Output{}
	c.ExecutionCount = nil
}

type codeCellJSON struct {
	ID             string          `json:"id,omitempty"`
	CellType       CellType        `json:"cell_type"`
	ExecutionCount *int            `json:"execution_count"`
	Metadata       map[string]any  `json:"metadata"`
	Outputs        []Output        `json:"outputs"`
	Source         MultilineString `json:"source"`
}

type textCellJSON struct {
	ID          string                `json:"id,omitempty"`
	CellType    CellType              `json:"cell_type"`
	Attachments map[string]MimeBundle `json:"attachments,omitempty"`
	Metadata    map[string]any        `json:"metadata"`
	Source      MultilineString       `json:"source"`
}

// MarshalJSON writes only the fields nbformat allows for the cell type.
func (c *Cell) MarshalJSON() ([]byte, error) {
	md := c.Metadata
	if md == nil {
		md = map[string]any{}
	}
	if c.CellType == CellCode {
		outputs := c.Outputs
		if outputs == nil {
			outputs = []Output{}
		}
		return json.Marshal(codeCellJSON{
			ID:             c.ID,
			CellType:       c.CellType,
			ExecutionCount: c.ExecutionCount,
			Metadata:       md,
			Outputs:        outputs,
			Source:         c.Source,
		})
	}
	return json.Marshal(textCellJSON{
		ID:          c.ID,
		CellType:    c.CellType,
		Attachments: c.Attachments,
		Metadata:    md,
		Source:      c.Source,
	})
}

// UnmarshalJSON reads any v4 cell.
func (c *Cell) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID             string                `json:"id"`
		CellType       CellType              `json:"cell_type"`
		Source         MultilineString       `json:"source"`
		Metadata       map[string]any        `json:"metadata"`
		Attachments    map[string]MimeBundle `json:"attachments"`
		Outputs        []Output              `json:"outputs"`
		ExecutionCount *int                  `json:"execution_count"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("models: decode cell: %w", err)
	}
	switch raw.CellType {
	case CellCode, CellMarkdown, CellRaw:
	default:
		return fmt.Errorf("models: unknown cell type %q", raw.CellType)
	}
	*c = Cell{
		ID:             raw.ID,
		CellType:       raw.CellType,
		Source:         raw.Source,
		Metadata:       raw.Metadata,
		Attachments:    raw.Attachments,
		Outputs:        raw.Outputs,
		ExecutionCount: raw.ExecutionCount,
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	if c.CellType == CellCode && c.Outputs == nil {
		c.Outputs = []Output{}
	}
	return nil
}
