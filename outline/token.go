package outline

import "strings"

// Token is one word-level text run as reported by a page-text extractor.
// Coordinates are in points with top/bottom measured from the top of the page.
type Token struct {
	Text     string  `json:"text"`
	Size     float64 `json:"size"`
	NoSize   bool    `json:"-"` // extractor reported no font size
	FontName string  `json:"fontname"`
	X0       float64 `json:"x0"`
	X1       float64 `json:"x1"`
	Top      float64 `json:"top"`
	Bottom   float64 `json:"bottom"`
}

// Span is a run of adjacent tokens judged to sit on one visual line.
// A Span produced by GroupSpans is never empty.
type Span struct {
	Tokens []Token
}

// Text joins the token texts with single spaces.
func (s Span) Text() string {
	parts := make([]string, len(s.Tokens))
	for i, t := range s.Tokens {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

// Size is the largest token size in the span. Unsized tokens count as 0.
func (s Span) Size() float64 {
	var max float64
	for _, t := range s.Tokens {
		if t.NoSize {
			continue
		}
		if t.Size > max {
			max = t.Size
		}
	}
	return max
}

// FontName returns the font of the first token.
func (s Span) FontName() string {
	if len(s.Tokens) == 0 {
		return ""
	}
	return s.Tokens[0].FontName
}

// Document is the extraction collaborator consumed by the assembler.
// Pages are numbered from 1.
type Document interface {
	NumPages() int
	PageTokens(page int) ([]Token, error)
}

// Pages is an in-memory Document, one token slice per page.
type Pages [][]Token

func (p Pages) NumPages() int { return len(p) }

func (p Pages) PageTokens(page int) ([]Token, error) {
	if page < 1 || page > len(p) {
		return nil, &PageError{Page: page, Err: ErrPageOutOfRange}
	}
	return p[page-1], nil
}
