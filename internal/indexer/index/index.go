// Package index holds the inverted index of one search index: for every
// field a term dictionary mapping each token to the posting list of document
// ordinals containing it.
package index

import (
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/indexer/wildcard"
	"github.com/RoaringBitmap/roaring"
	iradix "github.com/hashicorp/go-immutable-radix"
)

// Index is an in-memory inverted index. It is not synchronised: callers hold
// a write lock around AddPostings and a read lock around lookups. Entries are
// never removed.
type Index struct {
	fields map[string]*iradix.Tree
}

func New() *Index {
	return &Index{fields: make(map[string]*iradix.Tree)}
}

// AddPostings records ord in the posting list of every token. Adding the same
// (document, token) pair twice has no effect.
func (ix *Index) AddPostings(field string, ord uint32, tokens []analysis.Token) {
	if len(tokens) == 0 {
		return
	}
	tree, ok := ix.fields[field]
	if !ok {
		tree = iradix.New()
	}
	var txn *iradix.Txn
	for _, tok := range tokens {
		key := []byte(tok.Term)
		if v, found := tree.Get(key); found {
			v.(*roaring.Bitmap).Add(ord)
			continue
		}
		if txn == nil {
			txn = tree.Txn()
		}
		if v, found := txn.Get(key); found {
			v.(*roaring.Bitmap).Add(ord)
			continue
		}
		txn.Insert(key, roaring.BitmapOf(ord))
	}
	if txn != nil {
		tree = txn.Commit()
	}
	ix.fields[field] = tree
}

// LookupExact returns the documents containing term in field. The result is
// a copy and may be modified by the caller.
func (ix *Index) LookupExact(field, term string) *roaring.Bitmap {
	tree, ok := ix.fields[field]
	if !ok {
		return roaring.New()
	}
	v, found := tree.Get([]byte(term))
	if !found {
		return roaring.New()
	}
	return v.(*roaring.Bitmap).Clone()
}

// LookupWildcard returns the union of the posting lists of every token of
// field matched by p, and the number of distinct tokens that matched. Only
// the subtree under the pattern's literal prefix is visited.
func (ix *Index) LookupWildcard(field string, p *wildcard.Pattern) (*roaring.Bitmap, int) {
	if lit, ok := p.Literal(); ok {
		bm := ix.LookupExact(field, lit)
		if bm.IsEmpty() {
			return bm, 0
		}
		return bm, 1
	}
	tree, ok := ix.fields[field]
	if !ok {
		return roaring.New(), 0
	}
	var matched []*roaring.Bitmap
	tree.Root().WalkPrefix([]byte(p.Prefix()), func(k []byte, v interface{}) bool {
		if p.Match(string(k)) {
			matched = append(matched, v.(*roaring.Bitmap))
		}
		return false
	})
	if len(matched) == 0 {
		return roaring.New(), 0
	}
	return roaring.FastOr(matched...), len(matched)
}

// TermCount returns the number of distinct tokens indexed for field.
func (ix *Index) TermCount(field string) int {
	tree, ok := ix.fields[field]
	if !ok {
		return 0
	}
	return tree.Len()
}

// Terms returns the tokens of field that start with prefix, in byte order,
// with the number of documents containing each.
func (ix *Index) Terms(field, prefix string) []TermEntry {
	tree, ok := ix.fields[field]
	if !ok {
		return nil
	}
	var out []TermEntry
	tree.Root().WalkPrefix([]byte(prefix), func(k []byte, v interface{}) bool {
		out = append(out, TermEntry{Term: string(k), DocCount: v.(*roaring.Bitmap).GetCardinality()})
		return false
	})
	return out
}

// TermEntry is a dictionary entry reported by Terms.
type TermEntry struct {
	Term     string
	DocCount uint64
}
