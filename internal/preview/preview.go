// Package preview renders generated Markdown for the terminal.
package preview

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// Render returns markdown styled for a terminal. style is a glamour standard
// style name ("dark", "light", "notty", ...); width wraps lines, 0 disables
// wrapping.
func Render(markdown, style string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("preview: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("preview: render: %w", err)
	}
	return out, nil
}
