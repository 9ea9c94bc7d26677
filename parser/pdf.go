package parser

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/unicode/norm"

	"github.com/brunobiangulo/gooutline/outline"
)

const (
	// defaultPageHeight is US Letter, used when a page has no MediaBox.
	defaultPageHeight = 792.0

	defaultXTolerance = 3.0
	defaultYTolerance = 3.0
)

// PDFParser extracts positioned words from PDF text content. Glyphs are
// merged into words the way page-text extractors usually do it: a word ends
// at whitespace, at a horizontal gap wider than XTolerance, at a baseline
// shift larger than YTolerance, or where the font or size changes.
type PDFParser struct {
	XTolerance float64
	YTolerance float64
}

func NewPDFParser() *PDFParser {
	return &PDFParser{XTolerance: defaultXTolerance, YTolerance: defaultYTolerance}
}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Open(ctx context.Context, path string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// pdfcpu validates the cross-reference structure before we walk content
	// streams; corrupt files fail here with a readable error.
	count, err := validatePDF(path)
	if err != nil {
		return nil, err
	}

	f, reader, err := openPDF(path)
	if err != nil {
		return nil, err
	}

	pages := reader.NumPage()
	if pages != count {
		slog.Warn("pdf: page count mismatch", "path", path, "pdfcpu", count, "reader", pages)
	}

	return &pdfDocument{
		file:   f,
		reader: reader,
		pages:  pages,
		xTol:   p.XTolerance,
		yTol:   p.YTolerance,
		cache:  make(map[int][]outline.Token),
	}, nil
}

func validatePDF(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(f, conf)
	if err != nil {
		return 0, fmt.Errorf("validating PDF: %w", err)
	}
	return n, nil
}

// openPDF wraps pdf.Open; the reader panics on malformed objects.
func openPDF(path string) (f *os.File, r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if f != nil {
				f.Close()
			}
			f, r, err = nil, nil, fmt.Errorf("opening PDF: %v", rec)
		}
	}()

	f, r, err = pdf.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening PDF: %w", err)
	}
	return f, r, nil
}

type pdfDocument struct {
	file   *os.File
	reader *pdf.Reader
	pages  int
	xTol   float64
	yTol   float64

	// The assembler reads every page twice; content streams are decoded once.
	cache map[int][]outline.Token
}

func (d *pdfDocument) NumPages() int { return d.pages }

func (d *pdfDocument) PageTokens(n int) (tokens []outline.Token, err error) {
	if cached, ok := d.cache[n]; ok {
		return cached, nil
	}
	if n < 1 || n > d.pages {
		return nil, fmt.Errorf("page %d out of range 1..%d", n, d.pages)
	}

	defer func() {
		if rec := recover(); rec != nil {
			tokens, err = nil, fmt.Errorf("decoding page %d: %v", n, rec)
		}
	}()

	page := d.reader.Page(n)
	if page.V.IsNull() {
		d.cache[n] = nil
		return nil, nil
	}

	tokens = assembleWords(page.Content().Text, pageHeight(page), d.xTol, d.yTol)
	d.cache[n] = tokens
	return tokens, nil
}

func (d *pdfDocument) Close() error {
	d.cache = nil
	return d.file.Close()
}

// maxBoxDepth bounds the walk up the page tree when looking for an
// inherited MediaBox.
const maxBoxDepth = 32

// boxNode is the part of pdf.Value needed to read page boxes.
type boxNode[V any] interface {
	Key(key string) V
	Index(i int) V
	Kind() pdf.ValueKind
	Len() int
	Float64() float64
}

func pageHeight(page pdf.Page) float64 {
	return mediaBoxHeight(page.V)
}

// mediaBoxHeight reads the MediaBox of a page dictionary, falling back to the
// nearest ancestor Pages node that sets one.
func mediaBoxHeight[V boxNode[V]](node V) float64 {
	for depth := 0; depth < maxBoxDepth && node.Kind() == pdf.Dict; depth++ {
		box := node.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			h := math.Abs(box.Index(3).Float64() - box.Index(1).Float64())
			if h == 0 {
				return defaultPageHeight
			}
			return h
		}
		node = node.Key("Parent")
	}
	return defaultPageHeight
}

// assembleWords merges glyph runs into words and returns them in reading
// order. PDF y grows upward from the baseline; word tops are measured from
// the top of the page.
func assembleWords(glyphs []pdf.Text, height, xTol, yTol float64) []outline.Token {
	var (
		words []outline.Token
		cur   []pdf.Text
	)

	flush := func() {
		if len(cur) == 0 {
			return
		}
		words = append(words, makeWord(cur, height))
		cur = cur[:0]
	}

	for _, g := range glyphs {
		if strings.TrimFunc(g.S, unicode.IsSpace) == "" {
			flush()
			continue
		}
		if len(cur) > 0 {
			last := cur[len(cur)-1]
			switch {
			case math.Abs(g.Y-last.Y) > yTol,
				g.X-(last.X+last.W) > xTol,
				g.X < last.X-xTol,
				g.Font != last.Font,
				g.FontSize != last.FontSize:
				flush()
			}
		}
		cur = append(cur, g)
	}
	flush()

	return readingOrder(words, yTol)
}

func makeWord(glyphs []pdf.Text, height float64) outline.Token {
	var b strings.Builder
	x0, x1 := glyphs[0].X, glyphs[0].X+glyphs[0].W
	for _, g := range glyphs {
		b.WriteString(g.S)
		x0 = math.Min(x0, g.X)
		x1 = math.Max(x1, g.X+g.W)
	}

	first := glyphs[0]
	return outline.Token{
		Text:     norm.NFKC.String(strings.TrimSpace(b.String())),
		Size:     first.FontSize,
		NoSize:   first.FontSize <= 0,
		FontName: first.Font,
		X0:       x0,
		X1:       x1,
		Top:      height - first.Y - first.FontSize,
		Bottom:   height - first.Y,
	}
}

// readingOrder sorts words into lines (tops within yTol of the line's first
// word) from top to bottom, then left to right within a line.
func readingOrder(words []outline.Token, yTol float64) []outline.Token {
	if len(words) < 2 {
		return words
	}
	sort.SliceStable(words, func(i, j int) bool { return words[i].Top < words[j].Top })

	var (
		out  = make([]outline.Token, 0, len(words))
		line []outline.Token
	)
	emit := func() {
		sort.SliceStable(line, func(i, j int) bool { return line[i].X0 < line[j].X0 })
		out = append(out, line...)
		line = line[:0]
	}
	for _, w := range words {
		if len(line) > 0 && w.Top-line[0].Top > yTol {
			emit()
		}
		line = append(line, w)
	}
	emit()
	return out
}
