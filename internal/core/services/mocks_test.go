package services

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/extraction"
)

// --- Mock implementations ---

// mockBackend implements driven.Backend and records every call.
type mockBackend struct {
	mu sync.Mutex

	items       map[string]map[string]*domain.Item
	batches     [][]string
	deleted     []string
	added       []string
	removed     []string
	cleared     []string
	features    map[string]bool
	fieldsDirty bool
	fieldsCalls int
	results     []domain.Result

	addErr    error
	indexErr  error
	searchErr error
	deleteErr error
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		items:    make(map[string]map[string]*domain.Item),
		features: make(map[string]bool),
	}
}

func (m *mockBackend) Kind() domain.BackendKind { return domain.BackendMemory }

func (m *mockBackend) AddIndex(_ context.Context, index *domain.IndexConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return m.addErr
	}
	m.added = append(m.added, index.ID)
	return nil
}

func (m *mockBackend) RemoveIndex(_ context.Context, indexID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, indexID)
	delete(m.items, indexID)
	return nil
}

func (m *mockBackend) FieldsUpdated(context.Context, *domain.IndexConfig) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fieldsCalls++
	return m.fieldsDirty, nil
}

func (m *mockBackend) IndexItems(_ context.Context, index *domain.IndexConfig, items map[string]*domain.Item) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexErr != nil {
		return nil, m.indexErr
	}
	if m.items[index.ID] == nil {
		m.items[index.ID] = make(map[string]*domain.Item)
	}
	ids := make([]string, 0, len(items))
	for id, item := range items {
		m.items[index.ID][id] = item
		ids = append(ids, id)
	}
	sort.Strings(ids)
	m.batches = append(m.batches, ids)
	return ids, nil
}

func (m *mockBackend) DeleteItems(_ context.Context, index *domain.IndexConfig, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, ids...)
	for _, id := range ids {
		delete(m.items[index.ID], id)
	}
	return nil
}

func (m *mockBackend) DeleteAllItems(_ context.Context, index *domain.IndexConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, index.ID)
	delete(m.items, index.ID)
	return nil
}

func (m *mockBackend) Search(_ context.Context, _ *domain.IndexConfig, q *domain.Query) (*domain.ResultSet, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	rs := domain.NewResultSet(q)
	rs.Results = append(rs.Results, m.results...)
	rs.ResultCount = len(m.results)
	return rs, nil
}

func (m *mockBackend) SupportsFeature(feature string) bool { return m.features[feature] }

func (m *mockBackend) Close() error { return nil }

func (m *mockBackend) indexedIDs(indexID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.items[indexID]))
	for id := range m.items[indexID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// node is an original object with a publication status.
type node struct {
	published bool
}

func (n node) IsPublished() bool { return n.published }

// mockDatasource implements driven.Datasource over in-memory property maps.
type mockDatasource struct {
	id         string
	entityType string
	def        *domain.DataDefinition
	values     map[string]map[string]any
	objects    map[string]any
	loadErr    error
}

func (m *mockDatasource) ID() string                                  { return m.id }
func (m *mockDatasource) EntityType() string                          { return m.entityType }
func (m *mockDatasource) PropertyDefinitions() *domain.DataDefinition { return m.def }

func (m *mockDatasource) LoadItems(_ context.Context, ids []string) (map[string]*domain.Item, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make(map[string]*domain.Item, len(ids))
	for _, raw := range ids {
		values, ok := m.values[raw]
		if !ok {
			continue
		}
		item := domain.NewItem(m.id, raw, extraction.WrapItem(m.def, values))
		item.Object = m.objects[raw]
		if lang, ok := values["langcode"].(string); ok {
			item.Language = lang
		}
		out[item.ID] = item
	}
	return out, nil
}

func (m *mockDatasource) ItemIDs(context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.values))
	for id := range m.values {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

var _ driven.Datasource = (*mockDatasource)(nil)
var _ driven.Backend = (*mockBackend)(nil)

// articleDefinition is the property schema of the test datasource.
func articleDefinition() *domain.DataDefinition {
	return &domain.DataDefinition{
		Name: "node",
		Type: "entity:node",
		Properties: []*domain.DataDefinition{
			{Name: "title", Type: domain.TypeText, Label: "Title"},
			{Name: "subtitle", Type: domain.TypeText, Label: "Subtitle"},
			{Name: "body", Type: domain.TypeText, Label: "Body"},
			{Name: "created", Type: "created", Label: "Created"},
			{Name: "langcode", Type: "language", Label: "Language"},
			{Name: "author", Type: "entity:user", Label: "Author", EntityType: "user", MainProperty: "uid", Properties: []*domain.DataDefinition{
				{Name: "uid", Type: domain.TypeInteger, Label: "User ID"},
				{Name: "name", Type: domain.TypeString, Label: "Name"},
			}},
		},
	}
}

// newArticles returns a node datasource with three articles; article 2 is unpublished.
func newArticles() *mockDatasource {
	return &mockDatasource{
		id:         "node",
		entityType: "node",
		def:        articleDefinition(),
		values: map[string]map[string]any{
			"1": {"title": "Foo", "subtitle": "Bar", "body": "The first article", "langcode": "en",
				"author": map[string]any{"uid": 7, "name": "ada"}},
			"2": {"title": "Draft", "body": "Not ready"},
			"3": {"title": "Third", "body": "Another one"},
		},
		objects: map[string]any{
			"1": node{published: true},
			"2": node{published: false},
			"3": node{published: true},
		},
	}
}

// newArticleConfig returns an index over the node datasource with title and body configured.
func newArticleConfig(id string) *domain.IndexConfig {
	cfg := domain.NewIndexConfig(id, "Articles", "default", "node")
	cfg.Fields["node|title"] = domain.FieldConfig{Type: domain.TypeText, Boost: 5}
	cfg.Fields["node|body"] = domain.FieldConfig{Type: domain.TypeText}
	return cfg
}

func enabledServer() *domain.Server {
	return &domain.Server{ID: "default", Name: "Default", Backend: domain.BackendMemory, Enabled: true}
}
