package mcp

import (
	"context"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	rs   *domain.ResultSet
	err  error
	last *domain.Query
}

func (m *mockSearchService) Search(_ context.Context, q *domain.Query) (*domain.ResultSet, error) {
	m.last = q
	if m.err != nil {
		return nil, m.err
	}
	if m.rs == nil {
		return domain.NewResultSet(q), nil
	}
	return m.rs, nil
}

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	configs []*domain.IndexConfig
	status  map[string]domain.TrackerStatus
	fields  map[string]*domain.Field
	err     error
}

func (m *mockIndexService) List(_ context.Context) ([]*domain.IndexConfig, error) {
	return m.configs, m.err
}

func (m *mockIndexService) Config(_ context.Context, indexID string) (*domain.IndexConfig, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, cfg := range m.configs {
		if cfg.ID == indexID {
			return cfg, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockIndexService) Create(_ context.Context, _ *domain.IndexConfig) error { return m.err }
func (m *mockIndexService) Update(_ context.Context, _ *domain.IndexConfig) error { return m.err }
func (m *mockIndexService) Delete(_ context.Context, _ string) error              { return m.err }

func (m *mockIndexService) IndexBatch(_ context.Context, _ string, _ int) (int, error) {
	return 0, m.err
}

func (m *mockIndexService) IndexAll(_ context.Context, _ int) (int, error) { return 0, m.err }
func (m *mockIndexService) Reindex(_ context.Context, _ string) error      { return m.err }
func (m *mockIndexService) Clear(_ context.Context, _ string) error        { return m.err }

func (m *mockIndexService) Status(_ context.Context, indexID string) (domain.TrackerStatus, error) {
	return m.status[indexID], m.err
}

func (m *mockIndexService) Fields(_ context.Context, _ string, _ bool) (map[string]*domain.Field, error) {
	return m.fields, m.err
}

func (m *mockIndexService) AdditionalFields(_ context.Context, _ string) (map[string]string, error) {
	return nil, m.err
}

func (m *mockIndexService) Processors(_ context.Context, _ string, _ domain.Stage) ([]driven.Processor, error) {
	return nil, m.err
}
