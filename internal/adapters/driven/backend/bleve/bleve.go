// Package bleve provides a backend storing each index in a bleve fulltext
// index. Indexes live under <dataDir>/bleve/<server>/<index>; without a data
// directory they are kept in memory.
package bleve

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/custodia-labs/searchapi/internal/adapters/driven/backend"
	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/logger"
)

// DatasourceField holds the datasource id of every document.
const DatasourceField = "search_api_datasource"

// signatureKey stores the field signature the index was built with.
var signatureKey = []byte("search_api_signature")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("bleve backend is closed")

// Ensure Backend implements the interface.
var _ driven.Backend = (*Backend)(nil)

type bleveIndex struct {
	index     bleve.Index
	path      string
	signature string
	// names maps field ids to bleve field names.
	names map[string]string
}

// Backend is a bleve implementation of driven.Backend.
type Backend struct {
	mu       sync.RWMutex
	dir      string
	indexes  map[string]*bleveIndex
	features map[string]bool
	closed   bool
	log      *logger.Logger
}

// New creates a backend for a server. An empty dataDir keeps every index in
// memory.
func New(server domain.Server, dataDir string) *Backend {
	dir := ""
	if dataDir != "" {
		dir = filepath.Join(dataDir, "bleve", server.ID)
	}
	return &Backend{
		dir:      dir,
		indexes:  make(map[string]*bleveIndex),
		features: backend.Features(server),
		log:      logger.With("bleve " + server.ID),
	}
}

// Factory returns a driven.BackendFactory creating bleve backends below dataDir.
func Factory(dataDir string) driven.BackendFactory {
	return func(server domain.Server) (driven.Backend, error) {
		return New(server, dataDir), nil
	}
}

// Kind returns domain.BackendBleve.
func (b *Backend) Kind() domain.BackendKind {
	return domain.BackendBleve
}

// fieldName converts a field id into a bleve field name. Bleve treats dots
// as path separators.
func fieldName(id string) string {
	return strings.ReplaceAll(id, ".", "_")
}

// buildMapping creates a static mapping for the index fields.
func (b *Backend) buildMapping(cfg *domain.IndexConfig) mapping.IndexMapping {
	doc := bleve.NewDocumentStaticMapping()
	for _, id := range cfg.FieldIDs() {
		f := cfg.Fields[id]
		var fm *mapping.FieldMapping
		switch t := domain.ExtractInnerType(backend.StoredType(f, b.supports)); {
		case domain.IsTextType(t):
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = standard.Name
			fm.IncludeTermVectors = true
		case backend.IsNumeric(t):
			fm = bleve.NewNumericFieldMapping()
		case t == domain.TypeBoolean:
			fm = bleve.NewBooleanFieldMapping()
		default:
			fm = bleve.NewKeywordFieldMapping()
		}
		fm.Store = true
		doc.AddFieldMappingsAt(fieldName(id), fm)
	}

	ds := bleve.NewKeywordFieldMapping()
	ds.Store = true
	doc.AddFieldMappingsAt(DatasourceField, ds)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = keyword.Name
	return im
}

func (b *Backend) supports(feature string) bool {
	return b.features[feature]
}

func (b *Backend) indexPath(indexID string) string {
	if b.dir == "" {
		return ""
	}
	return filepath.Join(b.dir, indexID)
}

// create builds a fresh index, removing any previous data at the path.
func (b *Backend) create(cfg *domain.IndexConfig, path string) (bleve.Index, error) {
	m := b.buildMapping(cfg)
	if path == "" {
		return bleve.NewMemOnly(m)
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove index %s: %w", cfg.ID, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	return bleve.New(path, m)
}

// open returns the index of cfg, opening or creating it on first use.
// Callers hold the write lock.
func (b *Backend) open(cfg *domain.IndexConfig) (*bleveIndex, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if idx, ok := b.indexes[cfg.ID]; ok {
		return idx, nil
	}

	path := b.indexPath(cfg.ID)
	sig := backend.FieldSignature(cfg)
	idx := &bleveIndex{path: path, names: fieldNames(cfg)}

	if path != "" {
		existing, err := bleve.Open(path)
		switch {
		case err == nil:
			stored, _ := existing.GetInternal(signatureKey)
			idx.index = existing
			idx.signature = string(stored)
			b.indexes[cfg.ID] = idx
			return idx, nil
		case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		default:
			b.log.Warn("recreating unreadable index %s: %v", cfg.ID, err)
		}
	}

	created, err := b.create(cfg, path)
	if err != nil {
		return nil, fmt.Errorf("create index %s: %w", cfg.ID, err)
	}
	if err := created.SetInternal(signatureKey, []byte(sig)); err != nil {
		_ = created.Close()
		return nil, fmt.Errorf("store signature: %w", err)
	}
	idx.index = created
	idx.signature = sig
	b.indexes[cfg.ID] = idx
	return idx, nil
}

func fieldNames(cfg *domain.IndexConfig) map[string]string {
	names := make(map[string]string, len(cfg.Fields))
	for id := range cfg.Fields {
		names[id] = fieldName(id)
	}
	return names
}

// recreate drops all documents by rebuilding the index with the current
// field configuration.
func (b *Backend) recreate(cfg *domain.IndexConfig, idx *bleveIndex) error {
	if err := idx.index.Close(); err != nil {
		b.log.Warn("closing index %s: %v", cfg.ID, err)
	}
	created, err := b.create(cfg, idx.path)
	if err != nil {
		delete(b.indexes, cfg.ID)
		return fmt.Errorf("recreate index %s: %w", cfg.ID, err)
	}
	sig := backend.FieldSignature(cfg)
	if err := created.SetInternal(signatureKey, []byte(sig)); err != nil {
		b.log.Warn("storing signature of %s: %v", cfg.ID, err)
	}
	idx.index = created
	idx.signature = sig
	idx.names = fieldNames(cfg)
	return nil
}

// AddIndex opens or creates the bleve index.
func (b *Backend) AddIndex(_ context.Context, index *domain.IndexConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.open(index)
	return err
}

// RemoveIndex closes the index and deletes its files.
func (b *Backend) RemoveIndex(_ context.Context, indexID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.indexPath(indexID)
	if idx, ok := b.indexes[indexID]; ok {
		delete(b.indexes, indexID)
		if err := idx.index.Close(); err != nil {
			b.log.Warn("closing index %s: %v", indexID, err)
		}
	}
	if path == "" {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove index %s: %w", indexID, err)
	}
	return nil
}

// FieldsUpdated rebuilds the index when field ids or types changed and
// reports that all items need to be reindexed.
func (b *Backend) FieldsUpdated(_ context.Context, index *domain.IndexConfig) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, err := b.open(index)
	if err != nil {
		return false, err
	}
	if idx.signature == backend.FieldSignature(index) {
		idx.names = fieldNames(index)
		return false, nil
	}
	if err := b.recreate(index, idx); err != nil {
		return false, err
	}
	return true, nil
}

// IndexItems writes the items in a single batch.
func (b *Backend) IndexItems(_ context.Context, index *domain.IndexConfig, items map[string]*domain.Item) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, err := b.open(index)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	batch := idx.index.NewBatch()
	for _, id := range ids {
		if err := batch.Index(id, b.document(index, items[id])); err != nil {
			return nil, fmt.Errorf("index item %s: %w", id, err)
		}
	}
	if err := idx.index.Batch(batch); err != nil {
		return nil, fmt.Errorf("execute batch: %w", err)
	}
	return ids, nil
}

// document converts an item into the map bleve indexes.
func (b *Backend) document(cfg *domain.IndexConfig, item *domain.Item) map[string]any {
	doc := map[string]any{DatasourceField: item.DatasourceID}
	for id, f := range item.Fields {
		fc, ok := cfg.Fields[id]
		if !ok || len(f.Values) == 0 {
			continue
		}
		t := domain.ExtractInnerType(backend.StoredType(fc, b.supports))
		values := make([]any, 0, len(f.Values))
		for _, v := range f.Values {
			if cv, ok := convertValue(t, v); ok {
				values = append(values, cv)
			}
		}
		switch len(values) {
		case 0:
		case 1:
			doc[fieldName(id)] = values[0]
		default:
			doc[fieldName(id)] = values
		}
	}
	return doc
}

func convertValue(t string, v any) (any, bool) {
	switch {
	case backend.IsNumeric(t):
		return backend.ToFloat(v)
	case t == domain.TypeBoolean:
		if bv, ok := v.(bool); ok {
			return bv, true
		}
		f, ok := backend.ToFloat(v)
		return f != 0, ok
	default:
		return backend.ToString(v), true
	}
}

// DeleteItems removes documents by id.
func (b *Backend) DeleteItems(_ context.Context, index *domain.IndexConfig, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, err := b.open(index)
	if err != nil {
		return err
	}
	batch := idx.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := idx.index.Batch(batch); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	return nil
}

// DeleteAllItems recreates the index empty.
func (b *Backend) DeleteAllItems(_ context.Context, index *domain.IndexConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, err := b.open(index)
	if err != nil {
		return err
	}
	return b.recreate(index, idx)
}

// Count returns the number of documents in an index.
func (b *Backend) Count(indexID string) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx, ok := b.indexes[indexID]
	if !ok {
		return 0, nil
	}
	return idx.index.DocCount()
}

// Search translates the query into a bleve request.
func (b *Backend) Search(ctx context.Context, index *domain.IndexConfig, q *domain.Query) (*domain.ResultSet, error) {
	b.mu.Lock()
	idx, err := b.open(index)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}

	size := q.Limit
	if size <= 0 {
		size = math.MaxInt32
	}
	req := bleve.NewSearchRequestOptions(b.buildQuery(index, q), size, q.Offset, false)
	req.Fields = []string{"*"}
	req.SortBy(sortOrder(q.Sorts))
	if q.HasKeys() {
		req.Highlight = bleve.NewHighlight()
	}

	res, err := idx.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	reverse := make(map[string]string, len(idx.names))
	for id, name := range idx.names {
		reverse[name] = id
	}

	rs := domain.NewResultSet(q)
	rs.ResultCount = int(res.Total)
	for _, hit := range res.Hits {
		r := domain.Result{
			ID:     hit.ID,
			Score:  hit.Score,
			Fields: make(map[string][]any),
		}
		for name, v := range hit.Fields {
			if name == DatasourceField {
				r.DatasourceID, _ = v.(string)
				continue
			}
			if id, ok := reverse[name]; ok {
				r.Fields[id] = asList(v)
			}
		}
		if r.DatasourceID == "" {
			r.DatasourceID, _ = domain.SplitCombinedID(hit.ID)
		}
		r.Excerpt = excerpt(hit.Fragments)
		rs.Results = append(rs.Results, r)
	}
	return rs, nil
}

func asList(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}

func excerpt(fragments map[string][]string) string {
	names := make([]string, 0, len(fragments))
	for name := range fragments {
		names = append(names, name)
	}
	sort.Strings(names)
	var parts []string
	for _, name := range names {
		parts = append(parts, fragments[name]...)
	}
	return strings.Join(parts, " … ")
}

// sortOrder converts query sorts into bleve sort strings, falling back to
// relevance then id.
func sortOrder(sorts []domain.Sort) []string {
	order := make([]string, 0, len(sorts)+2)
	for _, s := range sorts {
		name := fieldName(s.Field)
		if s.Field == domain.RelevanceField {
			name = "_score"
		}
		if s.Descending {
			name = "-" + name
		}
		order = append(order, name)
	}
	return append(order, "-_score", "_id")
}

// buildQuery combines the keyword query with the filters.
func (b *Backend) buildQuery(cfg *domain.IndexConfig, q *domain.Query) query.Query {
	root := bleve.NewBooleanQuery()
	root.AddMust(b.keysQuery(cfg, q))
	for _, f := range q.Filters {
		fq, negate := b.filterQuery(cfg, f)
		if negate {
			root.AddMustNot(fq)
		} else {
			root.AddMust(fq)
		}
	}
	return root
}

func (b *Backend) keysQuery(cfg *domain.IndexConfig, q *domain.Query) query.Query {
	var keys []string
	for _, k := range q.Keys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return bleve.NewMatchAllQuery()
	}

	fields := q.FulltextFields
	if len(fields) == 0 {
		for _, id := range cfg.FieldIDs() {
			if domain.IsTextType(cfg.Fields[id].Type) {
				fields = append(fields, id)
			}
		}
	}
	if len(fields) == 0 {
		return bleve.NewMatchNoneQuery()
	}

	perKey := make([]query.Query, 0, len(keys))
	for _, key := range keys {
		alternatives := make([]query.Query, 0, len(fields))
		for _, id := range fields {
			boost := cfg.Fields[id].Boost
			if boost == 0 {
				boost = domain.DefaultBoost
			}
			if strings.ContainsAny(key, " \t") {
				mq := bleve.NewMatchPhraseQuery(key)
				mq.SetField(fieldName(id))
				mq.SetBoost(boost)
				alternatives = append(alternatives, mq)
			} else {
				mq := bleve.NewMatchQuery(key)
				mq.SetField(fieldName(id))
				mq.SetBoost(boost)
				alternatives = append(alternatives, mq)
			}
		}
		perKey = append(perKey, bleve.NewDisjunctionQuery(alternatives...))
	}

	if q.Conjunction == domain.ConjunctionOr {
		return bleve.NewDisjunctionQuery(perKey...)
	}
	return bleve.NewConjunctionQuery(perKey...)
}

// filterQuery builds the query for one filter. The bool result asks for
// the query to be negated.
func (b *Backend) filterQuery(cfg *domain.IndexConfig, f domain.Filter) (query.Query, bool) {
	op := f.Operator
	if op == "" {
		op = domain.OperatorEquals
	}
	name := fieldName(f.Field)
	fc, ok := cfg.Fields[f.Field]
	if !ok {
		return bleve.NewMatchNoneQuery(), op == domain.OperatorNotEquals
	}
	t := domain.ExtractInnerType(backend.StoredType(fc, b.supports))

	switch {
	case backend.IsNumeric(t):
		v, ok := backend.ToFloat(f.Value)
		if !ok {
			return bleve.NewMatchNoneQuery(), op == domain.OperatorNotEquals
		}
		return numericRange(name, op, v), op == domain.OperatorNotEquals
	case t == domain.TypeBoolean:
		bv, _ := convertValue(t, f.Value)
		bq := bleve.NewBoolFieldQuery(bv.(bool))
		bq.SetField(name)
		return bq, op == domain.OperatorNotEquals
	case domain.IsTextType(t):
		mq := bleve.NewMatchPhraseQuery(backend.ToString(f.Value))
		mq.SetField(name)
		return mq, op == domain.OperatorNotEquals
	default:
		value := backend.ToString(f.Value)
		switch op {
		case domain.OperatorEquals, domain.OperatorNotEquals:
			tq := bleve.NewTermQuery(value)
			tq.SetField(name)
			return tq, op == domain.OperatorNotEquals
		}
		return termRange(name, op, value), false
	}
}

func numericRange(field, op string, v float64) query.Query {
	var lo, hi *float64
	incl, excl := true, false
	loIncl, hiIncl := &incl, &incl
	switch op {
	case domain.OperatorEquals, domain.OperatorNotEquals:
		lo, hi = &v, &v
	case domain.OperatorLess:
		hi, hiIncl = &v, &excl
	case domain.OperatorLessEq:
		hi = &v
	case domain.OperatorGreater:
		lo, loIncl = &v, &excl
	case domain.OperatorGreaterEq:
		lo = &v
	}
	rq := bleve.NewNumericRangeInclusiveQuery(lo, hi, loIncl, hiIncl)
	rq.SetField(field)
	return rq
}

func termRange(field, op, v string) query.Query {
	incl, excl := true, false
	var rq *query.TermRangeQuery
	switch op {
	case domain.OperatorLess:
		rq = bleve.NewTermRangeInclusiveQuery("", v, nil, &excl)
	case domain.OperatorLessEq:
		rq = bleve.NewTermRangeInclusiveQuery("", v, nil, &incl)
	case domain.OperatorGreater:
		rq = bleve.NewTermRangeInclusiveQuery(v, "", &excl, nil)
	default:
		rq = bleve.NewTermRangeInclusiveQuery(v, "", &incl, nil)
	}
	rq.SetField(field)
	return rq
}

// SupportsFeature reports the features listed in the server options.
func (b *Backend) SupportsFeature(feature string) bool {
	return b.supports(feature)
}

// Close closes every open index.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for id, idx := range b.indexes {
		if err := idx.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	b.indexes = nil
	return errors.Join(errs...)
}
