// Package ranker orders matched documents. Every query type is boolean, so
// all matches carry the same constant score and the document id decides the
// order.
package ranker

import (
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// ConstantScore is the score of every match.
const ConstantScore = 1.0

type ScoredDoc struct {
	DocID   string  `json:"doc_id"`
	Score   float64 `json:"score"`
	Ordinal uint32  `json:"-"`
}

// Scores assigns ConstantScore to every document of matches. idOf resolves
// an ordinal to its document id.
func Scores(matches *roaring.Bitmap, idOf func(uint32) string) []ScoredDoc {
	docs := make([]ScoredDoc, 0, matches.GetCardinality())
	it := matches.Iterator()
	for it.HasNext() {
		ord := it.Next()
		docs = append(docs, ScoredDoc{DocID: idOf(ord), Score: ConstantScore, Ordinal: ord})
	}
	return docs
}

// Rank sorts docs by score descending, then id ascending, and keeps at most
// limit of them. A limit <= 0 keeps all.
func Rank(docs []ScoredDoc, limit int) []ScoredDoc {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].DocID < docs[j].DocID
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs
}
