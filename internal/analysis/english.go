package analysis

import (
	"unicode"

	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/english"
	"golang.org/x/text/language"
)

// englishStopWords is the Lucene English stop set.
var englishStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "for": {}, "if": {}, "in": {},
	"into": {}, "is": {}, "it": {}, "no": {}, "not": {}, "of": {},
	"on": {}, "or": {}, "such": {}, "that": {}, "the": {}, "their": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {}, "to": {},
	"was": {}, "will": {}, "with": {},
}

type englishAnalyzer struct{}

// NewEnglish returns the english analyzer: lowercase, English stop words
// removed, Snowball English stems for purely Latin words. Words carrying
// digits ("testing123") or other scripts are kept as they are.
func NewEnglish() Analyzer {
	return englishAnalyzer{}
}

func (englishAnalyzer) Name() string { return English }

func (englishAnalyzer) Normalize(text string) string { return fold(text, language.English) }

func (englishAnalyzer) Analyze(text string) []Token {
	ws := words(text, language.English)
	tokens := make([]Token, 0, len(ws))
	for pos, w := range ws {
		if _, stop := englishStopWords[w]; stop {
			continue
		}
		tokens = append(tokens, Token{Term: stemEnglish(w), Position: pos})
	}
	return tokens
}

func stemEnglish(word string) string {
	if !inScript(word, unicode.Latin) {
		return word
	}
	env := snowballstem.NewEnv(word)
	english.Stem(env)
	if stemmed := env.Current(); stemmed != "" {
		return stemmed
	}
	return word
}
