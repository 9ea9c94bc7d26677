package outline

import "unicode"

// Script is a coarse language/script tag derived from a span's characters.
type Script string

const (
	ScriptEnglish  Script = "en"
	ScriptJapanese Script = "ja"
	ScriptKorean   Script = "ko"
	ScriptChinese  Script = "zh"
	ScriptArabic   Script = "ar"
)

// scriptRatio is the share of characters a script must exceed to win.
const scriptRatio = 0.10

type runeRange struct{ lo, hi rune }

var (
	kanaRanges = []runeRange{
		{0x3040, 0x309F}, // Hiragana
		{0x30A0, 0x30FF}, // Katakana
		{0x31F0, 0x31FF}, // Katakana phonetic extensions
	}
	hanRanges = []runeRange{
		{0x4E00, 0x9FFF}, // CJK Unified Ideographs
		{0x3400, 0x4DBF}, // Extension A
	}
	hangulRanges = []runeRange{
		{0x1100, 0x11FF}, // Jamo
		{0x3130, 0x318F}, // Compatibility Jamo
		{0xAC00, 0xD7AF}, // Syllables
	}
	arabicRanges = []runeRange{
		{0x0600, 0x06FF},
		{0x0750, 0x077F}, // Arabic Supplement
	}
)

func inRanges(r rune, ranges []runeRange) bool {
	for _, rr := range ranges {
		if r >= rr.lo && r <= rr.hi {
			return true
		}
	}
	return false
}

// DetectScript classifies text by counting code points in Unicode block
// ranges. Whitespace is ignored. Japanese is checked before Chinese so that
// kanji-heavy Japanese text with any kana is not reported as Chinese.
func DetectScript(text string) Script {
	var total, kana, han, hangul, arabic int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		switch {
		case inRanges(r, kanaRanges):
			kana++
		case inRanges(r, hanRanges):
			han++
		case inRanges(r, hangulRanges):
			hangul++
		case inRanges(r, arabicRanges):
			arabic++
		}
	}
	if total == 0 {
		return ScriptEnglish
	}

	ratio := func(n int) float64 { return float64(n) / float64(total) }
	switch {
	case kana > 0 && ratio(kana+han) > scriptRatio:
		return ScriptJapanese
	case ratio(hangul) > scriptRatio:
		return ScriptKorean
	case ratio(arabic) > scriptRatio:
		return ScriptArabic
	case ratio(han) > scriptRatio:
		return ScriptChinese
	}
	return ScriptEnglish
}
