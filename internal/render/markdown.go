// Package render converts a notebook into Markdown and extracts the binary
// figures it references.
package render

import (
	"encoding/base64"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/starford/nbexec/internal/models"
)

// mimePreference orders the representations tried for rich outputs.
var mimePreference = []string{
	"text/markdown",
	"text/html",
	"image/svg+xml",
	"image/png",
	"image/jpeg",
	"text/plain",
}

var imageExt = map[string]string{
	"image/png":     "png",
	"image/jpeg":    "jpg",
	"image/gif":     "gif",
	"image/svg+xml": "svg",
}

// Markdown renders notebooks the way nbconvert's Markdown exporter does:
// narrative cells verbatim, code as fenced blocks, figures as linked files.
type Markdown struct{}

// NewMarkdown returns a Markdown renderer.
func NewMarkdown() *Markdown {
	return &Markdown{}
}

// Render returns the Markdown text. Extracted figures are added to
// res.Outputs keyed by their path, which is res.OutputFilesDir joined with a
// generated file name.
func (m *Markdown) Render(nb *models.Notebook, res *models.Resources) (string, error) {
	if res.Outputs == nil {
		res.Outputs = map[string][]byte{}
	}
	lang := nb.Language()

	var blocks []string
	for i, cell := range nb.Cells {
		switch cell.CellType {
		case models.CellMarkdown:
			src, err := extractAttachments(cell, i, res)
			if err != nil {
				return "", err
			}
			blocks = appendNonEmpty(blocks, src)
		case models.CellRaw:
			blocks = appendNonEmpty(blocks, string(cell.Source))
		case models.CellCode:
			if !cell.InputHidden && strings.TrimSpace(string(cell.Source)) != "" {
				blocks = append(blocks, fence(lang, string(cell.Source)))
			}
			for j, out := range cell.Outputs {
				block, err := renderOutput(out, i, j, res)
				if err != nil {
					return "", err
				}
				blocks = appendNonEmpty(blocks, block)
			}
		}
	}
	if len(blocks) == 0 {
		return "", nil
	}
	return strings.Join(blocks, "\n\n") + "\n", nil
}

func renderOutput(out models.Output, cellIndex, outIndex int, res *models.Resources) (string, error) {
	switch out.OutputType {
	case models.OutputStream:
		return fence("", string(out.Text)), nil
	case models.OutputError:
		return fence("", strings.Join(out.Traceback, "\n")), nil
	case models.OutputDisplayData, models.OutputExecuteResult:
		return renderBundle(out.Data, cellIndex, outIndex, res)
	}
	return "", fmt.Errorf("render: cell %d: unknown output type %q", cellIndex, out.OutputType)
}

func renderBundle(data models.MimeBundle, cellIndex, outIndex int, res *models.Resources) (string, error) {
	for _, mime := range mimePreference {
		text, ok := data.Text(mime)
		if !ok {
			continue
		}
		switch mime {
		case "text/markdown", "text/html":
			return strings.TrimRight(text, "\n"), nil
		case "text/plain":
			return fence("", text), nil
		case "image/svg+xml":
			name := figureName(res, cellIndex, outIndex, mime)
			res.Outputs[name] = []byte(text)
			return imageLink("svg", name), nil
		default:
			raw, err := decodeBase64(text)
			if err != nil {
				return "", fmt.Errorf("render: cell %d output %d: %s: %w", cellIndex, outIndex, mime, err)
			}
			name := figureName(res, cellIndex, outIndex, mime)
			res.Outputs[name] = raw
			return imageLink(imageExt[mime], name), nil
		}
	}
	return "", nil
}

// extractAttachments writes image attachments of a markdown cell to the
// figures directory and rewrites "(attachment:<name>)" link targets to point
// at them.
func extractAttachments(cell *models.Cell, cellIndex int, res *models.Resources) (string, error) {
	src := string(cell.Source)
	if len(cell.Attachments) == 0 {
		return src, nil
	}
	names := make([]string, 0, len(cell.Attachments))
	for name := range cell.Attachments {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		bundle := cell.Attachments[name]
		for _, mime := range []string{"image/png", "image/jpeg", "image/gif", "image/svg+xml"} {
			text, ok := bundle.Text(mime)
			if !ok {
				continue
			}
			content := []byte(text)
			if mime != "image/svg+xml" {
				raw, err := decodeBase64(text)
				if err != nil {
					return "", fmt.Errorf("render: cell %d attachment %s: %w", cellIndex, name, err)
				}
				content = raw
			}
			target := path.Join(res.OutputFilesDir, fmt.Sprintf("attachment_%d_%s", cellIndex, path.Base(name)))
			res.Outputs[target] = content
			src = rewriteAttachmentLinks(src, name, target)
			break
		}
	}
	return src, nil
}

// rewriteAttachmentLinks replaces link targets that are exactly
// attachment:<name>, optionally followed by a title, with target.
func rewriteAttachmentLinks(src, name, target string) string {
	re := regexp.MustCompile(`\(attachment:` + regexp.QuoteMeta(name) + `(\s+[^)]*)?\)`)
	return re.ReplaceAllString(src, "("+strings.ReplaceAll(target, "$", "$$")+"${1})")
}

func figureName(res *models.Resources, cellIndex, outIndex int, mime string) string {
	return path.Join(res.OutputFilesDir, fmt.Sprintf("output_%d_%d.%s", cellIndex, outIndex, imageExt[mime]))
}

func imageLink(alt, target string) string {
	return fmt.Sprintf("![%s](%s)", alt, target)
}

// fence wraps text in a fenced code block long enough not to collide with
// backtick runs inside it.
func fence(lang, text string) string {
	marker := "```"
	for strings.Contains(text, marker) {
		marker += "`"
	}
	return marker + lang + "\n" + strings.TrimRight(text, "\n") + "\n" + marker
}

func decodeBase64(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
	return base64.StdEncoding.DecodeString(cleaned)
}

func appendNonEmpty(blocks []string, block string) []string {
	block = strings.TrimRight(block, "\n")
	if strings.TrimSpace(block) == "" {
		return blocks
	}
	return append(blocks, block)
}
