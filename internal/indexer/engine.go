// Package indexer owns the named indices of a node. Each index bundles its
// schema, document store and inverted index behind one RWMutex: a document
// is stored and its postings are added under the write lock, so readers see
// either all of a document or none of it.
package indexer

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/indexer/wildcard"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
	"github.com/RoaringBitmap/roaring"
)

type indexState struct {
	mu     sync.RWMutex
	schema *schema.Schema
	store  *docstore.Store
	inv    *index.Index
}

type Engine struct {
	mu       sync.RWMutex
	indices  map[string]*indexState
	registry *analysis.Registry
	logger   *slog.Logger
}

func NewEngine(registry *analysis.Registry) *Engine {
	if registry == nil {
		registry = analysis.DefaultRegistry()
	}
	return &Engine{
		indices:  make(map[string]*indexState),
		registry: registry,
		logger:   slog.Default().With("component", "indexer"),
	}
}

// Registry returns the analyzer registry used to resolve mappings.
func (e *Engine) Registry() *analysis.Registry {
	return e.registry
}

// CreateIndex registers a new index with the given mappings.
func (e *Engine) CreateIndex(name string, mappings []schema.FieldMapping) error {
	s, err := schema.New(name, mappings, e.registry)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.indices[name]; exists {
		return apperrors.Newf(apperrors.ErrSchemaExists, "%q", name)
	}
	e.indices[name] = &indexState{
		schema: s,
		store:  docstore.New(),
		inv:    index.New(),
	}
	e.logger.Info("index created", "index", name, "fields", s.Fields())
	return nil
}

// DeleteIndex drops an index and all of its documents.
func (e *Engine) DeleteIndex(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.indices[name]; !exists {
		return apperrors.Newf(apperrors.ErrIndexNotFound, "%q", name)
	}
	delete(e.indices, name)
	e.logger.Info("index deleted", "index", name)
	return nil
}

// Indices lists index names in sorted order.
func (e *Engine) Indices() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.indices))
	for name := range e.indices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) lookup(name string) (*indexState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.indices[name]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrIndexNotFound, "%q", name)
	}
	return st, nil
}

// Schema returns the schema of an index.
func (e *Engine) Schema(name string) (*schema.Schema, error) {
	st, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	return st.schema, nil
}

// IndexDocument analyzes fields and adds the document to the index. Every
// field must be mapped. Analysis happens before the write lock is taken; the
// store insert and the postings update happen under it, so a rejected
// document leaves no trace.
func (e *Engine) IndexDocument(name, id string, fields map[string]string) error {
	st, err := e.lookup(name)
	if err != nil {
		return err
	}
	if id == "" {
		return apperrors.New(apperrors.ErrInvalidInput, "document id is required")
	}

	analyzed := make(map[string][]analysis.Token, len(fields))
	for field, value := range fields {
		f, err := st.schema.Field(field)
		if err != nil {
			return err
		}
		analyzed[field] = f.Analyzer.Analyze(value)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	ord, err := st.store.Create(id, fields)
	if err != nil {
		return err
	}
	tokenCount := 0
	for field, tokens := range analyzed {
		st.inv.AddPostings(field, ord, tokens)
		tokenCount += len(tokens)
	}
	e.logger.Debug("document indexed",
		"index", name,
		"doc_id", id,
		"ordinal", ord,
		"token_count", tokenCount,
	)
	return nil
}

// Count returns the number of documents in an index.
func (e *Engine) Count(name string) (int, error) {
	st, err := e.lookup(name)
	if err != nil {
		return 0, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.store.Count(), nil
}

// Get returns the stored fields of a document.
func (e *Engine) Get(name, id string) (map[string]string, error) {
	st, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.store.Get(id)
}

// Refresh is a synchronisation point: it waits for in-flight writers of the
// index to finish. Documents are already searchable once IndexDocument
// returns.
func (e *Engine) Refresh(name string) error {
	st, err := e.lookup(name)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.mu.Unlock() //nolint:staticcheck // empty critical section is the barrier
	return nil
}

// TermCount returns the number of distinct tokens of a field.
func (e *Engine) TermCount(name, field string) (int, error) {
	st, err := e.lookup(name)
	if err != nil {
		return 0, err
	}
	if _, err := st.schema.Field(field); err != nil {
		return 0, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.inv.TermCount(field), nil
}

// Terms lists dictionary entries of a field starting with prefix.
func (e *Engine) Terms(name, field, prefix string) ([]index.TermEntry, error) {
	st, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	if _, err := st.schema.Field(field); err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.inv.Terms(field, prefix), nil
}

// AnalyzeField runs the analyzer mapped to field over text.
func (e *Engine) AnalyzeField(name, field, text string) ([]analysis.Token, error) {
	s, err := e.Schema(name)
	if err != nil {
		return nil, err
	}
	f, err := s.Field(field)
	if err != nil {
		return nil, err
	}
	return f.Analyzer.Analyze(text), nil
}

// Read runs fn against a consistent view of an index while holding its read
// lock. The view must not be retained after fn returns.
func (e *Engine) Read(name string, fn func(v *View) error) error {
	st, err := e.lookup(name)
	if err != nil {
		return err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	if err := fn(&View{st: st}); err != nil {
		return fmt.Errorf("reading index %q: %w", name, err)
	}
	return nil
}

// Close drops every index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger.Info("engine closing", "indices", len(e.indices))
	e.indices = make(map[string]*indexState)
	return nil
}

// View is a read-locked snapshot of one index handed to Engine.Read.
type View struct {
	st *indexState
}

func (v *View) Schema() *schema.Schema {
	return v.st.schema
}

func (v *View) Count() int {
	return v.st.store.Count()
}

func (v *View) LookupExact(field, term string) *roaring.Bitmap {
	return v.st.inv.LookupExact(field, term)
}

func (v *View) LookupWildcard(field string, p *wildcard.Pattern) (*roaring.Bitmap, int) {
	return v.st.inv.LookupWildcard(field, p)
}

// ID returns the document id of an ordinal.
func (v *View) ID(ord uint32) string {
	return v.st.store.ID(ord)
}

// Fields returns a copy of the stored fields of an ordinal.
func (v *View) Fields(ord uint32) map[string]string {
	return v.st.store.Fields(ord)
}
