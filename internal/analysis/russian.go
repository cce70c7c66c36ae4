package analysis

import (
	"unicode"

	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/russian"
	"golang.org/x/text/language"
)

type russianAnalyzer struct{}

// NewRussian returns the russian analyzer: Cyrillic-aware lowercasing and
// Snowball Russian stems for purely Cyrillic words. Latin words and words
// with digits pass through lowercased.
func NewRussian() Analyzer {
	return russianAnalyzer{}
}

func (russianAnalyzer) Name() string { return Russian }

func (russianAnalyzer) Normalize(text string) string { return fold(text, language.Russian) }

func (russianAnalyzer) Analyze(text string) []Token {
	ws := words(text, language.Russian)
	tokens := make([]Token, 0, len(ws))
	for pos, w := range ws {
		tokens = append(tokens, Token{Term: stemRussian(w), Position: pos})
	}
	return tokens
}

func stemRussian(word string) string {
	if !inScript(word, unicode.Cyrillic) {
		return word
	}
	env := snowballstem.NewEnv(word)
	russian.Stem(env)
	if stemmed := env.Current(); stemmed != "" {
		return stemmed
	}
	return word
}
