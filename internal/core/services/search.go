package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driving"
	"github.com/custodia-labs/searchapi/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService validates queries and runs them on the owning index.
type SearchService struct {
	manager      *IndexManager
	defaultLimit int
}

// NewSearchService creates a search service over the indexes of manager.
func NewSearchService(manager *IndexManager) *SearchService {
	return &SearchService{manager: manager, defaultLimit: domain.DefaultSearchLimit}
}

// SetDefaultLimit changes the limit used for queries without one.
func (s *SearchService) SetDefaultLimit(limit int) {
	if limit > 0 {
		s.defaultLimit = limit
	}
}

// Search runs q through the processor chain and the backend of its index.
// The query is modified by preprocessing.
func (s *SearchService) Search(ctx context.Context, q *domain.Query) (*domain.ResultSet, error) {
	if q == nil || q.IndexID == "" {
		return nil, fmt.Errorf("query needs an index: %w", domain.ErrInvalidInput)
	}
	if q.Offset < 0 || q.Limit < 0 {
		return nil, fmt.Errorf("offset %d, limit %d: %w", q.Offset, q.Limit, domain.ErrInvalidInput)
	}
	switch q.Conjunction {
	case "":
		q.Conjunction = domain.ConjunctionAnd
	case domain.ConjunctionAnd, domain.ConjunctionOr:
	default:
		return nil, fmt.Errorf("conjunction %q: %w", q.Conjunction, domain.ErrInvalidInput)
	}
	if q.Limit == 0 {
		q.Limit = s.defaultLimit
	}

	logger.Section("Search")
	logger.Debug("Index: %s, keys: %q, filters: %d, offset: %d, limit: %d",
		q.IndexID, q.Keys, len(q.Filters), q.Offset, q.Limit)

	rs, err := s.manager.search(ctx, q)
	if err != nil {
		logger.Warn("Search failed: %v", err)
		return nil, fmt.Errorf("search: %w", err)
	}

	logger.Info("Results: %d of %d", len(rs.Results), rs.ResultCount)
	return rs, nil
}
