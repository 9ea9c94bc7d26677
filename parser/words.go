package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/text/unicode/norm"

	"github.com/brunobiangulo/gooutline/outline"
)

// WordsParser reads word dumps produced by an external page-text extractor:
//
//	{"pages": [[{"text": "Intro", "size": 18, "fontname": "Helvetica-Bold",
//	             "x0": 72, "x1": 120, "top": 60, "bottom": 78}, ...], ...]}
//
// A null or missing size marks a word without font size information. Word
// text is NFKC-normalized like text read from PDFs.
type WordsParser struct{}

func (p *WordsParser) SupportedFormats() []string { return []string{"json"} }

type wordDump struct {
	Pages [][]dumpWord `json:"pages"`
}

type dumpWord struct {
	Text     string   `json:"text"`
	Size     *float64 `json:"size"`
	FontName string   `json:"fontname"`
	X0       float64  `json:"x0"`
	X1       float64  `json:"x1"`
	Top      float64  `json:"top"`
	Bottom   float64  `json:"bottom"`
}

func (p *WordsParser) Open(ctx context.Context, path string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading word dump: %w", err)
	}
	return ParseWords(data)
}

// ParseWords decodes a word dump held in memory.
func ParseWords(data []byte) (Document, error) {
	var dump wordDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("decoding word dump: %w", err)
	}

	pages := make(outline.Pages, len(dump.Pages))
	for i, words := range dump.Pages {
		tokens := make([]outline.Token, len(words))
		for j, w := range words {
			tokens[j] = outline.Token{
				Text:     norm.NFKC.String(w.Text),
				FontName: w.FontName,
				X0:       w.X0,
				X1:       w.X1,
				Top:      w.Top,
				Bottom:   w.Bottom,
			}
			if w.Size == nil {
				tokens[j].NoSize = true
			} else {
				tokens[j].Size = *w.Size
			}
		}
		pages[i] = tokens
	}
	return memDocument{pages}, nil
}

type memDocument struct {
	outline.Pages
}

func (memDocument) Close() error { return nil }
