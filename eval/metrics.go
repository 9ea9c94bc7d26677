package eval

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/brunobiangulo/gooutline/outline"
)

// Scores compares one extracted outline with its expectation.
type Scores struct {
	Precision     float64 `json:"precision"`
	Recall        float64 `json:"recall"`
	F1            float64 `json:"f1"`
	LevelAccuracy float64 `json:"level_accuracy"` // matched headings with the right level
	PageAccuracy  float64 `json:"page_accuracy"`  // matched headings on the right page
	TitleMatch    bool    `json:"title_match"`
	Matched       int     `json:"matched"`
	Extracted     int     `json:"extracted"`
	Expected      int     `json:"expected"`
}

// normalizeHeading folds width and case and collapses whitespace so that
// cosmetic differences do not count as misses.
func normalizeHeading(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))
	return strings.Join(strings.Fields(s), " ")
}

// Score matches extracted headings against expected ones by normalized
// text. Each expected heading is matched at most once, in document order.
func Score(got, want *outline.Result) Scores {
	s := Scores{
		Extracted:  len(got.Outline),
		Expected:   len(want.Outline),
		TitleMatch: normalizeHeading(got.Title) == normalizeHeading(want.Title),
	}

	used := make([]bool, len(want.Outline))
	var levelOK, pageOK int
	for _, g := range got.Outline {
		key := normalizeHeading(g.Text)
		for j, w := range want.Outline {
			if used[j] || normalizeHeading(w.Text) != key {
				continue
			}
			used[j] = true
			s.Matched++
			if g.Level == w.Level {
				levelOK++
			}
			if g.Page == w.Page {
				pageOK++
			}
			break
		}
	}

	s.Precision = ratio(s.Matched, s.Extracted)
	s.Recall = ratio(s.Matched, s.Expected)
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	s.LevelAccuracy = ratio(levelOK, s.Matched)
	s.PageAccuracy = ratio(pageOK, s.Matched)

	// Two empty outlines agree completely.
	if s.Extracted == 0 && s.Expected == 0 {
		s.Precision, s.Recall, s.F1 = 1, 1, 1
		s.LevelAccuracy, s.PageAccuracy = 1, 1
	}
	return s
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
