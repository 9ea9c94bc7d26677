package report

import (
	"fmt"
	"strings"

	"github.com/brunobiangulo/gooutline/outline"
)

// Markdown renders the outline as a nested table of contents with page
// anchors, one indent step per heading level.
func Markdown(res *outline.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", res.Title)
	for _, h := range res.Outline {
		indent := strings.Repeat("  ", levelDepth(h.Level))
		fmt.Fprintf(&b, "%s- [%s](#page-%d)\n", indent, escapeLinkText(h.Text), h.Page)
	}
	return b.String()
}

func levelDepth(l outline.Level) int {
	switch l {
	case outline.LevelH2:
		return 1
	case outline.LevelH3:
		return 2
	default:
		return 0
	}
}

var linkTextEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`)

func escapeLinkText(s string) string { return linkTextEscaper.Replace(s) }
