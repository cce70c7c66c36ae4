// Package wildcard parses and evaluates token patterns. A pattern is matched
// against a whole token: '*' matches any run of runes (possibly empty), '?'
// matches exactly one rune and '\' makes the next rune literal.
package wildcard

import (
	"strings"
	"unicode"

	apperrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

type kind uint8

const (
	literal kind = iota
	anyRun
	oneRune
)

type elem struct {
	kind kind
	r    rune
}

// Pattern is a parsed wildcard pattern. The zero value matches only the empty
// token.
type Pattern struct {
	elems []elem
}

// Parse compiles raw. Empty patterns, unescaped whitespace and a trailing
// escape are rejected with ErrInvalidPattern.
func Parse(raw string) (*Pattern, error) {
	if raw == "" {
		return nil, apperrors.New(apperrors.ErrInvalidPattern, "empty pattern")
	}
	runes := []rune(raw)
	p := &Pattern{elems: make([]elem, 0, len(runes))}
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\':
			if i+1 == len(runes) {
				return nil, apperrors.Newf(apperrors.ErrInvalidPattern, "%q: trailing escape", raw)
			}
			i++
			p.elems = append(p.elems, elem{kind: literal, r: runes[i]})
		case r == '*':
			// consecutive stars are equivalent to one
			if n := len(p.elems); n > 0 && p.elems[n-1].kind == anyRun {
				continue
			}
			p.elems = append(p.elems, elem{kind: anyRun})
		case r == '?':
			p.elems = append(p.elems, elem{kind: oneRune})
		case unicode.IsSpace(r):
			return nil, apperrors.Newf(apperrors.ErrInvalidPattern, "%q: unescaped whitespace", raw)
		default:
			p.elems = append(p.elems, elem{kind: literal, r: r})
		}
	}
	return p, nil
}

// HasWildcards reports whether the pattern contains '*' or '?'.
func (p *Pattern) HasWildcards() bool {
	for _, e := range p.elems {
		if e.kind != literal {
			return true
		}
	}
	return false
}

// Literal returns the unescaped text of a pattern without wildcards.
func (p *Pattern) Literal() (string, bool) {
	if p.HasWildcards() {
		return "", false
	}
	var b strings.Builder
	for _, e := range p.elems {
		b.WriteRune(e.r)
	}
	return b.String(), true
}

// Prefix returns the literal runes before the first wildcard. Only tokens
// starting with it can match.
func (p *Pattern) Prefix() string {
	var b strings.Builder
	for _, e := range p.elems {
		if e.kind != literal {
			break
		}
		b.WriteRune(e.r)
	}
	return b.String()
}

// Literals returns the maximal runs of literal runes, in order.
func (p *Pattern) Literals() []string {
	var (
		out []string
		b   strings.Builder
	)
	for _, e := range p.elems {
		if e.kind == literal {
			b.WriteRune(e.r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

// MapLiterals returns a new pattern where every maximal run of literal runes
// is replaced by fn(run). Wildcards keep their positions.
func (p *Pattern) MapLiterals(fn func(string) string) *Pattern {
	out := &Pattern{elems: make([]elem, 0, len(p.elems))}
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		for _, r := range fn(b.String()) {
			out.elems = append(out.elems, elem{kind: literal, r: r})
		}
		b.Reset()
	}
	for _, e := range p.elems {
		if e.kind == literal {
			b.WriteRune(e.r)
			continue
		}
		flush()
		out.elems = append(out.elems, e)
	}
	flush()
	return out
}

// Match reports whether token matches the whole pattern.
func (p *Pattern) Match(token string) bool {
	text := []rune(token)
	pi, ti := 0, 0
	star, mark := -1, 0
	for ti < len(text) {
		switch {
		case pi < len(p.elems) && (p.elems[pi].kind == oneRune ||
			(p.elems[pi].kind == literal && p.elems[pi].r == text[ti])):
			pi++
			ti++
		case pi < len(p.elems) && p.elems[pi].kind == anyRun:
			star, mark = pi, ti
			pi++
		case star >= 0:
			mark++
			pi, ti = star+1, mark
		default:
			return false
		}
	}
	for pi < len(p.elems) && p.elems[pi].kind == anyRun {
		pi++
	}
	return pi == len(p.elems)
}

// String returns the canonical, escaped form of the pattern.
func (p *Pattern) String() string {
	var b strings.Builder
	for _, e := range p.elems {
		switch e.kind {
		case anyRun:
			b.WriteByte('*')
		case oneRune:
			b.WriteByte('?')
		default:
			if e.r == '*' || e.r == '?' || e.r == '\\' || unicode.IsSpace(e.r) {
				b.WriteByte('\\')
			}
			b.WriteRune(e.r)
		}
	}
	return b.String()
}
