package feed

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// knownLanguages is the allow-list for explicit language hints.
var knownLanguages = map[string]bool{
	"en": true, "ja": true, "zh": true, "de": true, "fr": true,
	"es": true, "it": true, "pt": true, "ru": true, "ko": true,
	"nl": true, "sv": true, "no": true, "da": true, "fi": true,
	"pl": true, "cs": true, "tr": true, "ar": true, "he": true,
	"hi": true, "th": true, "vi": true, "uk": true, "id": true,
}

// detectLanguage resolves an entry's 2-letter language code. An
// explicit hint ("en", "en-US", "ja_JP") wins when its base language
// is on the allow-list; otherwise the sample text is sniffed by
// Unicode block. No signal yields "".
func detectLanguage(hint, sample string) string {
	if code := normalizeLanguageHint(hint); code != "" {
		return code
	}
	return sniffLanguage(sample)
}

func normalizeLanguageHint(hint string) string {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return ""
	}

	tag, err := language.Parse(strings.ReplaceAll(hint, "_", "-"))
	if err == nil {
		base, confidence := tag.Base()
		if confidence != language.No && knownLanguages[base.String()] {
			return base.String()
		}
	}

	// Fall back to a bare 2-letter prefix for hints x/text rejects
	code := strings.ToLower(hint)
	if len(code) >= 2 && knownLanguages[code[:2]] {
		return code[:2]
	}
	return ""
}

// sniffLanguage classifies text by Unicode block. Hiragana/Katakana is
// checked before the broader CJK range so Japanese text carrying kanji
// is not misclassified as Chinese.
func sniffLanguage(sample string) string {
	var hasHan, hasLatin bool

	for _, r := range sample {
		switch {
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			return "ja"
		case unicode.Is(unicode.Han, r):
			hasHan = true
		case unicode.IsLetter(r) && r < 0x250:
			hasLatin = true
		}
	}

	if hasHan {
		return "zh"
	}
	if hasLatin {
		return "en"
	}
	return ""
}
