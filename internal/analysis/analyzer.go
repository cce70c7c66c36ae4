// Package analysis turns raw field text into normalised search tokens.
// Every analyzer is a pure function of its input: the same text always
// yields the same token sequence, no matter what was analyzed or indexed
// before. Analyzers are looked up by name through a Registry when an index
// schema is created.
package analysis

import (
	"sort"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
	"golang.org/x/text/language"
)

// Names of the built-in analyzers.
const (
	Standard = "standard"
	English  = "english"
	Russian  = "russian"
	Keyword  = "keyword"
)

// Token represents a single normalised term and its position in the
// original text. Positions increase in input order; removed stop words
// leave gaps.
type Token struct {
	Term     string
	Position int
}

// Analyzer converts text into an ordered token sequence. Implementations
// must be safe for concurrent use and must never fail: empty or
// unrecognisable input yields an empty sequence.
type Analyzer interface {
	Name() string
	Analyze(text string) []Token
}

// Normalizer is implemented by analyzers that can apply their character
// normalisation to a text fragment without splitting, stop-word removal or
// stemming.
type Normalizer interface {
	Normalize(text string) string
}

// Normalize folds text the way a folds it before tokenizing. Analyzers that
// do not implement Normalizer get NFC and root-locale lowercasing.
func Normalize(a Analyzer, text string) string {
	if n, ok := a.(Normalizer); ok {
		return n.Normalize(text)
	}
	return fold(text, language.Und)
}

// Terms returns the term of every token, in order.
func Terms(tokens []Token) []string {
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// Registry resolves analyzer names.
type Registry struct {
	mu        sync.RWMutex
	analyzers map[string]Analyzer
}

// NewRegistry returns a registry holding the given analyzers.
func NewRegistry(analyzers ...Analyzer) *Registry {
	r := &Registry{analyzers: make(map[string]Analyzer, len(analyzers))}
	for _, a := range analyzers {
		r.analyzers[a.Name()] = a
	}
	return r
}

// DefaultRegistry returns a registry with the standard, english, russian
// and keyword analyzers.
func DefaultRegistry() *Registry {
	return NewRegistry(NewStandard(), NewEnglish(), NewRussian(), NewKeyword())
}

// Register adds an analyzer. Names are unique; re-registering a name fails.
func (r *Registry) Register(a Analyzer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.analyzers[a.Name()]; exists {
		return apperrors.Newf(apperrors.ErrInvalidInput, "analyzer %q already registered", a.Name())
	}
	r.analyzers[a.Name()] = a
	return nil
}

// Get returns the analyzer registered under name.
func (r *Registry) Get(name string) (Analyzer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.analyzers[name]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnknownAnalyzer, "%q", name)
	}
	return a, nil
}

// Analyze runs the named analyzer over text.
func (r *Registry) Analyze(name string, text string) ([]Token, error) {
	a, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return a.Analyze(text), nil
}

// Names lists registered analyzer names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.analyzers))
	for name := range r.analyzers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
