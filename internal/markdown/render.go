package markdown

import (
	"fmt"
	"strings"

	"github.com/jcdickinson/doxsearch/internal/index"
)

// RenderEntries renders index entries as markdown, one section per entry
// and one list item per target. Links point at the raw anchor paths; pass
// the result through ResolveLinks to make them absolute.
func RenderEntries(entries []index.Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## %s\n\n", codeSpan(e.DisplayName))
		for _, t := range e.Targets {
			label := t.ScopeLabel
			if label == "" {
				label = e.DisplayName
			}
			fmt.Fprintf(&b, "- [%s](%s)", codeSpan(label), t.AnchorPath)
			if t.External {
				b.WriteString(" (external)")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// codeSpan wraps s in a code span long enough to hold any backticks in s.
func codeSpan(s string) string {
	fence := "`"
	for strings.Contains(s, fence) {
		fence += "`"
	}
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		return fence + " " + s + " " + fence
	}
	return fence + s + fence
}
