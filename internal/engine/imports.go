package engine

import "strings"

// splitImports separates the leading import declarations of a cell from the
// statements that follow. Each returned spec is a single import spec such as
// `"fmt"` or `str "strings"`.
func splitImports(src string) ([]string, string) {
	lines := strings.Split(src, "\n")
	var specs []string
	inBlock := false
	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if inBlock {
			if line == ")" {
				inBlock = false
				continue
			}
			if line != "" && !strings.HasPrefix(line, "//") {
				specs = append(specs, line)
			}
			continue
		}
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if line == "import (" || line == "import(" {
			inBlock = true
			continue
		}
		if rest, ok := strings.CutPrefix(line, "import "); ok {
			specs = append(specs, strings.TrimSpace(rest))
			continue
		}
		break
	}
	return specs, strings.Join(lines[i:], "\n")
}
