package link

import "unicode"

// Script is the dominant writing system of a text. The archive mixes French
// transcripts with Hebrew and Arabic messages; matching scripts between a
// question and an answer is a weak linking signal.
type Script int

const (
	ScriptLatin Script = iota
	ScriptHebrew
	ScriptArabic
)

// DetectScript returns the dominant script of s. Latin is the default when
// no Hebrew or Arabic runes dominate.
func DetectScript(s string) Script {
	var hebrew, arabic, latin int
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Hebrew, r):
			hebrew++
		case unicode.Is(unicode.Arabic, r):
			arabic++
		case unicode.IsLetter(r):
			latin++
		}
	}
	if hebrew > latin && hebrew >= arabic {
		return ScriptHebrew
	}
	if arabic > latin && arabic > hebrew {
		return ScriptArabic
	}
	return ScriptLatin
}
