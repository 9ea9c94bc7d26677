package parser

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ledongthuc/pdf"
)

// glyphs lays out s one character per glyph starting at x on baseline y.
func glyphs(s string, font string, size, x, y float64) []pdf.Text {
	var out []pdf.Text
	w := size * 0.5
	for _, r := range s {
		out = append(out, pdf.Text{Font: font, FontSize: size, X: x, Y: y, W: w, S: string(r)})
		x += w
	}
	return out
}

func concatGlyphs(runs ...[]pdf.Text) []pdf.Text {
	var out []pdf.Text
	for _, r := range runs {
		out = append(out, r...)
	}
	return out
}

func wordTexts(t *testing.T, glyphs []pdf.Text) []string {
	t.Helper()
	var out []string
	for _, w := range assembleWords(glyphs, 792, defaultXTolerance, defaultYTolerance) {
		out = append(out, w.Text)
	}
	return out
}

func TestAssembleWordsSplitsOnSpaces(t *testing.T) {
	in := glyphs("Hello World", "Helvetica", 12, 72, 700)
	got := wordTexts(t, in)
	want := []string{"Hello", "World"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAssembleWordsSplitsOnFontChange(t *testing.T) {
	in := concatGlyphs(
		glyphs("Bold", "Helvetica-Bold", 12, 72, 700),
		glyphs("Plain", "Helvetica", 12, 96, 700),
	)
	got := wordTexts(t, in)
	want := []string{"Bold", "Plain"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAssembleWordsSplitsOnGap(t *testing.T) {
	in := concatGlyphs(
		glyphs("Left", "Helvetica", 12, 72, 700),
		glyphs("Right", "Helvetica", 12, 300, 700),
	)
	got := wordTexts(t, in)
	want := []string{"Left", "Right"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAssembleWordsGeometry(t *testing.T) {
	words := assembleWords(glyphs("Title", "Helvetica-Bold", 20, 72, 700), 792, defaultXTolerance, defaultYTolerance)
	if len(words) != 1 {
		t.Fatalf("expected 1 word, got %d", len(words))
	}
	w := words[0]
	if w.Text != "Title" || w.Size != 20 || w.FontName != "Helvetica-Bold" {
		t.Errorf("unexpected word: %+v", w)
	}
	if w.X0 != 72 || w.X1 != 72+5*10 {
		t.Errorf("x range = %v..%v", w.X0, w.X1)
	}
	if w.Top != 792-700-20 || w.Bottom != 792-700 {
		t.Errorf("top/bottom = %v/%v", w.Top, w.Bottom)
	}
}

func TestAssembleWordsNormalizesLigatures(t *testing.T) {
	in := []pdf.Text{
		{Font: "Times", FontSize: 12, X: 72, Y: 700, W: 6, S: "ﬁ"},
		{Font: "Times", FontSize: 12, X: 78, Y: 700, W: 6, S: "n"},
		{Font: "Times", FontSize: 12, X: 84, Y: 700, W: 6, S: "d"},
	}
	got := wordTexts(t, in)
	if len(got) != 1 || got[0] != "find" {
		t.Errorf("got %q, want [find]", got)
	}
}

func TestAssembleWordsReadingOrder(t *testing.T) {
	// Content streams often draw lower text first.
	in := concatGlyphs(
		glyphs("body", "Times", 10, 72, 600),
		glyphs("second", "Times", 12, 150, 700),
		glyphs("first", "Times", 12, 72, 701),
	)
	got := wordTexts(t, in)
	want := []string{"first", "second", "body"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAssembleWordsZeroSize(t *testing.T) {
	words := assembleWords(glyphs("ghost", "Times", 0, 72, 700), 792, defaultXTolerance, defaultYTolerance)
	if len(words) != 1 || !words[0].NoSize {
		t.Errorf("expected one unsized word, got %+v", words)
	}
}

func TestPDFParserOpenMissingFile(t *testing.T) {
	_, err := NewPDFParser().Open(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

// boxValue stands in for pdf.Value in page tree tests.
type boxValue struct {
	kind pdf.ValueKind
	dict map[string]boxValue
	arr  []boxValue
	num  float64
}

func (v boxValue) Key(key string) boxValue { return v.dict[key] }
func (v boxValue) Kind() pdf.ValueKind     { return v.kind }
func (v boxValue) Len() int                { return len(v.arr) }
func (v boxValue) Float64() float64        { return v.num }

func (v boxValue) Index(i int) boxValue {
	if i < 0 || i >= len(v.arr) {
		return boxValue{}
	}
	return v.arr[i]
}

func rect(llx, lly, urx, ury float64) boxValue {
	arr := make([]boxValue, 4)
	for i, n := range []float64{llx, lly, urx, ury} {
		arr[i] = boxValue{kind: pdf.Real, num: n}
	}
	return boxValue{kind: pdf.Array, arr: arr}
}

func dict(entries map[string]boxValue) boxValue {
	return boxValue{kind: pdf.Dict, dict: entries}
}

func TestMediaBoxHeight(t *testing.T) {
	letterParent := dict(map[string]boxValue{"MediaBox": rect(0, 0, 612, 792)})
	a4Root := dict(map[string]boxValue{"MediaBox": rect(0, 0, 595, 842)})

	tests := []struct {
		name string
		page boxValue
		want float64
	}{
		{"own box", dict(map[string]boxValue{"MediaBox": rect(0, 0, 595, 842)}), 842},
		{"no box", dict(nil), defaultPageHeight},
		{"null page", boxValue{}, defaultPageHeight},
		{"inherited from parent", dict(map[string]boxValue{"Parent": letterParent}), 792},
		{"inherited from grandparent", dict(map[string]boxValue{
			"Parent": dict(map[string]boxValue{"Parent": a4Root}),
		}), 842},
		{"own box wins over parent", dict(map[string]boxValue{
			"MediaBox": rect(0, 0, 300, 400),
			"Parent":   letterParent,
		}), 400},
		{"non-zero origin", dict(map[string]boxValue{"MediaBox": rect(10, 100, 622, 892)}), 792},
		{"flipped corners", dict(map[string]boxValue{"MediaBox": rect(0, 500, 612, 0)}), 500},
		{"empty box", dict(map[string]boxValue{"MediaBox": rect(0, 0, 0, 0)}), defaultPageHeight},
		{"short box", dict(map[string]boxValue{
			"MediaBox": {kind: pdf.Array, arr: []boxValue{{kind: pdf.Real, num: 0}}},
		}), defaultPageHeight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mediaBoxHeight(tt.page); got != tt.want {
				t.Errorf("mediaBoxHeight() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMediaBoxHeightStopsAtDepthLimit(t *testing.T) {
	node := dict(map[string]boxValue{"MediaBox": rect(0, 0, 612, 500)})
	for i := 0; i < maxBoxDepth+5; i++ {
		node = dict(map[string]boxValue{"Parent": node})
	}
	if got := mediaBoxHeight(node); got != defaultPageHeight {
		t.Errorf("mediaBoxHeight() = %v, want %v", got, defaultPageHeight)
	}
}
