// Package memory provides a backend that keeps indexed items in process
// memory. Keyword matching is a case-insensitive term match on fulltext
// fields, scored by field boost.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/custodia-labs/searchapi/internal/adapters/driven/backend"
	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
)

// Ensure Backend implements the interface.
var _ driven.Backend = (*Backend)(nil)

type storedItem struct {
	id           string
	datasourceID string
	fields       map[string]*domain.Field
}

type memIndex struct {
	signature string
	items     map[string]*storedItem
}

// Backend is an in-memory implementation of driven.Backend.
type Backend struct {
	mu       sync.RWMutex
	indexes  map[string]*memIndex
	features map[string]bool
	closed   bool
}

// New creates an empty backend for a server.
func New(server domain.Server) *Backend {
	return &Backend{
		indexes:  make(map[string]*memIndex),
		features: backend.Features(server),
	}
}

// Factory returns a driven.BackendFactory creating memory backends.
func Factory() driven.BackendFactory {
	return func(server domain.Server) (driven.Backend, error) {
		return New(server), nil
	}
}

// Kind returns domain.BackendMemory.
func (b *Backend) Kind() domain.BackendKind {
	return domain.BackendMemory
}

// index returns the storage of an index, creating it on first use.
// Callers hold the write lock.
func (b *Backend) index(cfg *domain.IndexConfig) (*memIndex, error) {
	if b.closed {
		return nil, fmt.Errorf("memory backend is closed")
	}
	idx, ok := b.indexes[cfg.ID]
	if !ok {
		idx = &memIndex{signature: backend.FieldSignature(cfg), items: make(map[string]*storedItem)}
		b.indexes[cfg.ID] = idx
	}
	return idx, nil
}

// AddIndex prepares storage for an index.
func (b *Backend) AddIndex(_ context.Context, index *domain.IndexConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.index(index)
	return err
}

// RemoveIndex drops all items of an index.
func (b *Backend) RemoveIndex(_ context.Context, indexID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.indexes, indexID)
	return nil
}

// FieldsUpdated drops stored items and asks for a reindex when field ids
// or types changed.
func (b *Backend) FieldsUpdated(_ context.Context, index *domain.IndexConfig) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx, err := b.index(index)
	if err != nil {
		return false, err
	}
	sig := backend.FieldSignature(index)
	if sig == idx.signature {
		return false, nil
	}
	idx.signature = sig
	idx.items = make(map[string]*storedItem)
	return true, nil
}

// IndexItems stores copies of the items' fields.
func (b *Backend) IndexItems(_ context.Context, index *domain.IndexConfig, items map[string]*domain.Item) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx, err := b.index(index)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(items))
	for id, item := range items {
		stored := &storedItem{
			id:           id,
			datasourceID: item.DatasourceID,
			fields:       make(map[string]*domain.Field, len(item.Fields)),
		}
		for fid, f := range item.Fields {
			stored.fields[fid] = f.Clone()
		}
		idx.items[id] = stored
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteItems removes items by id. Unknown ids are ignored.
func (b *Backend) DeleteItems(_ context.Context, index *domain.IndexConfig, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx, ok := b.indexes[index.ID]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(idx.items, id)
	}
	return nil
}

// DeleteAllItems removes every item of the index.
func (b *Backend) DeleteAllItems(_ context.Context, index *domain.IndexConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if idx, ok := b.indexes[index.ID]; ok {
		idx.items = make(map[string]*storedItem)
	}
	return nil
}

// Count returns the number of items stored for an index.
func (b *Backend) Count(indexID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if idx, ok := b.indexes[indexID]; ok {
		return len(idx.items)
	}
	return 0
}

type hit struct {
	item  *storedItem
	score float64
}

// Search matches keys against fulltext fields, applies filters and sorts,
// and pages the result.
func (b *Backend) Search(_ context.Context, index *domain.IndexConfig, q *domain.Query) (*domain.ResultSet, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("memory backend is closed")
	}

	rs := domain.NewResultSet(q)
	idx, ok := b.indexes[index.ID]
	if !ok {
		return rs, nil
	}

	fulltext := q.FulltextFields
	if len(fulltext) == 0 {
		for _, id := range index.FieldIDs() {
			if domain.IsTextType(index.Fields[id].Type) {
				fulltext = append(fulltext, id)
			}
		}
	}
	keys := normalizeKeys(q.Keys)

	var hits []hit
	for _, item := range idx.items {
		if !b.passesFilters(index, item, q.Filters) {
			continue
		}
		score := 1.0
		if len(keys) > 0 {
			var matched bool
			score, matched = scoreItem(index, item, fulltext, keys, q.Conjunction)
			if !matched {
				continue
			}
		}
		hits = append(hits, hit{item: item, score: score})
	}

	sortHits(index, hits, q.Sorts)

	rs.ResultCount = len(hits)
	start, end := backend.Page(len(hits), q.Offset, q.Limit)
	for _, h := range hits[start:end] {
		rs.Results = append(rs.Results, domain.Result{
			ID:           h.item.id,
			DatasourceID: h.item.datasourceID,
			Score:        h.score,
			Fields:       resultFields(h.item),
		})
	}
	return rs, nil
}

func (b *Backend) passesFilters(index *domain.IndexConfig, item *storedItem, filters []domain.Filter) bool {
	for _, f := range filters {
		var values []any
		fieldType := index.Fields[f.Field].Type
		if field, ok := item.fields[f.Field]; ok {
			values = field.Values
			fieldType = field.Type
		}
		if !backend.Matches(fieldType, values, f) {
			return false
		}
	}
	return true
}

func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// scoreItem sums boost times occurrences for every key. With AND every key
// must occur; with OR at least one.
func scoreItem(index *domain.IndexConfig, item *storedItem, fields, keys []string, conj domain.Conjunction) (float64, bool) {
	total := 0.0
	matchedKeys := 0
	for _, key := range keys {
		keyScore := 0.0
		for _, fid := range fields {
			f, ok := item.fields[fid]
			if !ok {
				continue
			}
			boost := index.Fields[fid].Boost
			if boost == 0 {
				boost = domain.DefaultBoost
			}
			for _, v := range f.Values {
				keyScore += boost * float64(occurrences(backend.ToString(v), key))
			}
		}
		if keyScore > 0 {
			matchedKeys++
			total += keyScore
		}
	}
	if conj == domain.ConjunctionOr {
		return total, matchedKeys > 0
	}
	return total, matchedKeys == len(keys)
}

// occurrences counts whole-word, case-insensitive occurrences of key in text.
// A key with spaces matches as a phrase.
func occurrences(text, key string) int {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	phrase := strings.FieldsFunc(key, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(phrase) == 0 {
		return 0
	}
	n := 0
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, p := range phrase {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}

// sortHits orders by the requested sorts, then by score and id.
func sortHits(index *domain.IndexConfig, hits []hit, sorts []domain.Sort) {
	sort.SliceStable(hits, func(i, j int) bool {
		for _, s := range sorts {
			var c int
			if s.Field == domain.RelevanceField {
				c = compareFloat(hits[i].score, hits[j].score)
			} else {
				c = compareField(index.Fields[s.Field].Type, first(hits[i].item, s.Field), first(hits[j].item, s.Field))
			}
			if c == 0 {
				continue
			}
			if s.Descending {
				return c > 0
			}
			return c < 0
		}
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].item.id < hits[j].item.id
	})
}

func first(item *storedItem, fieldID string) any {
	if f, ok := item.fields[fieldID]; ok && len(f.Values) > 0 {
		return f.Values[0]
	}
	return nil
}

// compareField sorts missing values last.
func compareField(fieldType string, a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	c, _ := backend.Compare(fieldType, a, b)
	return c
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func resultFields(item *storedItem) map[string][]any {
	out := make(map[string][]any, len(item.fields))
	for id, f := range item.fields {
		out[id] = append([]any(nil), f.Values...)
	}
	return out
}

// SupportsFeature reports the features listed in the server options.
func (b *Backend) SupportsFeature(feature string) bool {
	return b.features[feature]
}

// Close drops all data.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.indexes = make(map[string]*memIndex)
	return nil
}
