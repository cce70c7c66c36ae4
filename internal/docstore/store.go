// Package docstore keeps the source documents of an index keyed by id and
// assigns each one a dense ordinal used by the posting lists.
package docstore

import (
	"maps"

	apperrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

// Store maps document ids to stored fields. It is not synchronised; the
// owning index serialises writers and readers.
type Store struct {
	byID   map[string]uint32
	ids    []string
	fields []map[string]string
}

func New() *Store {
	return &Store{byID: make(map[string]uint32)}
}

// Create stores a copy of fields under id and returns the ordinal assigned
// to it. An id that already exists is rejected with ErrDuplicateID and the
// store is left unchanged.
func (s *Store) Create(id string, fields map[string]string) (uint32, error) {
	if id == "" {
		return 0, apperrors.New(apperrors.ErrInvalidInput, "document id is required")
	}
	if _, exists := s.byID[id]; exists {
		return 0, apperrors.Newf(apperrors.ErrDuplicateID, "%q", id)
	}
	ord := uint32(len(s.ids))
	s.byID[id] = ord
	s.ids = append(s.ids, id)
	s.fields = append(s.fields, maps.Clone(fields))
	return ord, nil
}

// Contains reports whether id was created.
func (s *Store) Contains(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Get returns a copy of the stored fields of id.
func (s *Store) Get(id string) (map[string]string, error) {
	ord, ok := s.byID[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, "%q", id)
	}
	return s.Fields(ord), nil
}

// ID returns the id of the document with the given ordinal.
func (s *Store) ID(ord uint32) string {
	if int(ord) >= len(s.ids) {
		return ""
	}
	return s.ids[ord]
}

// Fields returns a copy of the stored fields of the document with the given
// ordinal.
func (s *Store) Fields(ord uint32) map[string]string {
	if int(ord) >= len(s.fields) {
		return nil
	}
	out := maps.Clone(s.fields[ord])
	if out == nil {
		out = map[string]string{}
	}
	return out
}

// Count returns the number of stored documents.
func (s *Store) Count() int {
	return len(s.ids)
}
