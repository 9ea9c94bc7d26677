package gooutline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brunobiangulo/gooutline/outline"
)

// line lays out words of one size left to right at top.
func line(text string, size, top float64) []outline.Token {
	var tokens []outline.Token
	x := 72.0
	for _, w := range strings.Fields(text) {
		width := float64(len(w)) * size * 0.5
		tokens = append(tokens, outline.Token{
			Text: w, Size: size, FontName: "Helvetica",
			X0: x, X1: x + width, Top: top, Bottom: top + size,
		})
		x += width + 3
	}
	return tokens
}

func page(lines ...[]outline.Token) []outline.Token {
	var out []outline.Token
	for _, l := range lines {
		out = append(out, l...)
	}
	return out
}

const body = "the quick brown fox jumps over the lazy sleeping dog"

// reportPages is a two-page document titled "Annual Report" with an H2
// "Overview" on page 2.
func reportPages() [][]outline.Token {
	return [][]outline.Token{
		page(line("Annual Report", 24, 60), line(body, 10, 120)),
		page(line("Overview", 16, 60), line(body, 10, 120)),
	}
}

// writeDump saves pages as a word dump and returns its path.
func writeDump(t *testing.T, dir, name string, pages [][]outline.Token) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{"pages": pages})
	if err != nil {
		t.Fatalf("marshal dump: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write dump: %v", err)
	}
	return path
}

func newTestEngine(t *testing.T, mod func(*Config)) Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SkipStore = true
	if mod != nil {
		mod(&cfg)
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}
