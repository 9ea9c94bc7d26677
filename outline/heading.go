package outline

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Level is a heading rank. LevelNone marks body text.
type Level string

const (
	LevelNone Level = ""
	LevelH1   Level = "H1"
	LevelH2   Level = "H2"
	LevelH3   Level = "H3"
)

const (
	minHeadingLen = 2
	maxHeadingLen = 200

	// fallbackRatio is the minimum size ratio for the H3 fallbacks.
	fallbackRatio = 1.1
	// shortJapaneseLen is the longest text the Japanese fallback accepts.
	shortJapaneseLen = 20
)

// Thresholds are the size-ratio multipliers for H1, H2 and H3.
type Thresholds struct {
	H1, H2, H3 float64
}

var (
	defaultThresholds = Thresholds{1.5, 1.3, 1.15}
	cjkThresholds     = Thresholds{1.4, 1.25, 1.1}
	arabicThresholds  = Thresholds{1.6, 1.35, 1.2}
)

// ThresholdsFor returns the ratio multipliers tuned for a script.
func ThresholdsFor(script Script) Thresholds {
	switch script {
	case ScriptJapanese, ScriptChinese, ScriptKorean:
		return cjkThresholds
	case ScriptArabic:
		return arabicThresholds
	default:
		return defaultThresholds
	}
}

// headingPatterns are checked in order; any match yields H3. Digits are any
// decimal digit, so full-width and Arabic-Indic numbering also match.
var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\p{Nd}+(\.\p{Nd}+)*\.?(\s|$)`),
	regexp.MustCompile(`^[\p{Lu}\p{Han}]{2,}([\s\p{P}]|$)`),
	regexp.MustCompile(`^Chapter\s+\p{Nd}+`),
	regexp.MustCompile(`^第\p{Nd}+章`),
	regexp.MustCompile(`^第\p{Nd}+节`),
}

func matchesHeadingPattern(text string) bool {
	for _, re := range headingPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// ClassifyHeading decides the heading level of a span relative to the
// document baseline. Size ratios are checked from H1 down, so a span always
// gets its highest qualifying level.
func ClassifyHeading(span Span, baseline float64, script Script) Level {
	text := strings.TrimSpace(span.Text())
	n := utf8.RuneCountInString(text)
	if n < minHeadingLen || n > maxHeadingLen {
		return LevelNone
	}

	size := span.Size()
	t := ThresholdsFor(script)
	switch {
	case size >= baseline*t.H1:
		return LevelH1
	case size >= baseline*t.H2:
		return LevelH2
	case size >= baseline*t.H3:
		return LevelH3
	}

	large := size >= baseline*fallbackRatio
	if script == ScriptJapanese && n <= shortJapaneseLen && large {
		return LevelH3
	}
	if large && matchesHeadingPattern(text) {
		return LevelH3
	}
	return LevelNone
}
