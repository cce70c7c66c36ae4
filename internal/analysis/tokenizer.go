package analysis

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// words normalises text with fold, then splits it on every rune that is
// neither a letter, a digit nor a combining mark.
func words(text string, tag language.Tag) []string {
	if text == "" {
		return nil
	}
	return strings.FieldsFunc(fold(text, tag), isSeparator)
}

// fold NFC-normalises and lowercases text using the casing rules of tag.
// cases.Caser is stateful, so one is built per call.
func fold(text string, tag language.Tag) string {
	if text == "" {
		return ""
	}
	return cases.Lower(tag).String(norm.NFC.String(text))
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
}

// inScript reports whether every rune of word is a letter of the given
// script. Words mixing scripts or carrying digits are not stemmed.
func inScript(word string, script *unicode.RangeTable) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		if unicode.IsMark(r) {
			continue
		}
		if !unicode.IsLetter(r) || !unicode.Is(script, r) {
			return false
		}
	}
	return true
}
