package outline

import (
	"errors"
	"log/slog"
	"strings"
)

// UntitledDocument is the title used when no H1 is found.
const UntitledDocument = "Untitled Document"

// Heading is one outline entry.
type Heading struct {
	Level    Level   `json:"level" yaml:"level"`
	Text     string  `json:"text" yaml:"text"`
	Page     int     `json:"page" yaml:"page"`
	Language Script  `json:"language" yaml:"language"`
	FontSize float64 `json:"font_size" yaml:"font_size"`
}

// Metadata carries document-wide figures gathered in the first pass.
type Metadata struct {
	AvgFontSize float64 `json:"avg_font_size" yaml:"avg_font_size"`
	TotalPages  int     `json:"total_pages" yaml:"total_pages"`
}

// Result is the outline of one document.
type Result struct {
	Title    string    `json:"title" yaml:"title"`
	Outline  []Heading `json:"outline" yaml:"outline"`
	Metadata Metadata  `json:"metadata" yaml:"metadata"`
}

// Options tunes span grouping.
type Options struct {
	MaxXGap float64
	MaxYGap float64
}

// DefaultOptions returns the standard grouping tolerances.
func DefaultOptions() Options {
	return Options{MaxXGap: DefaultMaxXGap, MaxYGap: DefaultMaxYGap}
}

// Builder assembles outlines. The zero value uses DefaultOptions.
type Builder struct {
	opts Options
}

// NewBuilder returns a Builder with the given options. Non-positive gaps
// fall back to the defaults.
func NewBuilder(opts Options) *Builder {
	if opts.MaxXGap <= 0 {
		opts.MaxXGap = DefaultMaxXGap
	}
	if opts.MaxYGap <= 0 {
		opts.MaxYGap = DefaultMaxYGap
	}
	return &Builder{opts: opts}
}

// Build derives the outline of doc with default options.
func Build(doc Document) (*Result, error) {
	return NewBuilder(DefaultOptions()).Build(doc)
}

// Build runs the two passes over doc. The baseline is computed from every
// page before the first span is classified. Any page error fails the whole
// document.
func (b *Builder) Build(doc Document) (*Result, error) {
	opts := b.opts
	if opts.MaxXGap <= 0 || opts.MaxYGap <= 0 {
		opts = NewBuilder(opts).opts
	}

	pages := doc.NumPages()
	var acc baselineAcc
	for p := 1; p <= pages; p++ {
		tokens, err := doc.PageTokens(p)
		if err != nil {
			return nil, wrapPageError(p, err)
		}
		acc.add(tokens)
	}
	baseline := acc.value()

	res := &Result{
		Outline:  make([]Heading, 0),
		Metadata: Metadata{AvgFontSize: baseline, TotalPages: pages},
	}
	for p := 1; p <= pages; p++ {
		tokens, err := doc.PageTokens(p)
		if err != nil {
			return nil, wrapPageError(p, err)
		}
		for _, span := range GroupSpans(tokens, opts.MaxXGap, opts.MaxYGap) {
			script := DetectScript(span.Text())
			level := ClassifyHeading(span, baseline, script)
			if level == LevelNone {
				continue
			}
			text := strings.TrimSpace(span.Text())
			res.Outline = append(res.Outline, Heading{
				Level:    level,
				Text:     text,
				Page:     p,
				Language: script,
				FontSize: span.Size(),
			})
			if res.Title == "" && level == LevelH1 {
				res.Title = text
			}
		}
	}
	if res.Title == "" {
		res.Title = UntitledDocument
	}

	slog.Debug("outline: built",
		"pages", pages, "baseline", baseline, "headings", len(res.Outline))
	return res, nil
}

func wrapPageError(page int, err error) error {
	var pe *PageError
	if errors.As(err, &pe) {
		return err
	}
	return &PageError{Page: page, Err: err}
}
