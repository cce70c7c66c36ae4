package analysis

import (
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

type standardAnalyzer struct{}

// NewStandard returns the default analyzer for text fields: lowercase and
// split, no stop words, no stemming.
func NewStandard() Analyzer {
	return standardAnalyzer{}
}

func (standardAnalyzer) Name() string { return Standard }

func (standardAnalyzer) Normalize(text string) string { return fold(text, language.Und) }

func (standardAnalyzer) Analyze(text string) []Token {
	ws := words(text, language.Und)
	tokens := make([]Token, len(ws))
	for pos, w := range ws {
		tokens[pos] = Token{Term: w, Position: pos}
	}
	return tokens
}

type keywordAnalyzer struct{}

// NewKeyword returns an analyzer emitting the whole NFC-normalised value as
// a single token. Keyword fields match exactly, including case.
func NewKeyword() Analyzer {
	return keywordAnalyzer{}
}

func (keywordAnalyzer) Name() string { return Keyword }

func (keywordAnalyzer) Normalize(text string) string { return norm.NFC.String(text) }

func (keywordAnalyzer) Analyze(text string) []Token {
	if text == "" {
		return []Token{}
	}
	return []Token{{Term: norm.NFC.String(text), Position: 0}}
}
