package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/core/ports/driving"
	"github.com/custodia-labs/searchapi/internal/logger"
)

// Ensure ConfigSync implements the interface.
var _ driving.ConfigSync = (*ConfigSync)(nil)

// ConfigSync imports and exports configurations through the manager, so
// imported indexes are attached and tracked like created ones.
type ConfigSync struct {
	manager *IndexManager
	indexes driven.IndexStore
	servers driven.ServerStore
	log     *logger.Logger
}

// NewConfigSync creates a sync between the manager and the given file stores.
func NewConfigSync(manager *IndexManager, indexes driven.IndexStore, servers driven.ServerStore) *ConfigSync {
	return &ConfigSync{manager: manager, indexes: indexes, servers: servers, log: logger.With("config sync")}
}

// Import saves servers first so indexes can reference them. Unchanged
// entries are skipped; failures of single indexes are collected.
func (s *ConfigSync) Import(ctx context.Context) (int, error) {
	changed := 0

	servers, err := s.servers.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list server files: %w", err)
	}
	active, err := s.manager.Servers(ctx)
	if err != nil {
		return 0, err
	}
	current := make(map[string]domain.Server, len(active))
	for _, srv := range active {
		current[srv.ID] = srv
	}
	for _, srv := range servers {
		if existing, ok := current[srv.ID]; ok && reflect.DeepEqual(existing, srv) {
			continue
		}
		if err := s.manager.SaveServer(ctx, srv); err != nil {
			return changed, fmt.Errorf("import server %s: %w", srv.ID, err)
		}
		s.log.Info("imported server %s", srv.ID)
		changed++
	}

	configs, err := s.indexes.List(ctx)
	if err != nil {
		return changed, fmt.Errorf("list index files: %w", err)
	}
	var errs []error
	for _, cfg := range configs {
		existing, err := s.manager.Config(ctx, cfg.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			err = s.manager.Create(ctx, cfg)
		case err != nil:
		case reflect.DeepEqual(existing, cfg):
			continue
		default:
			err = s.manager.Update(ctx, cfg)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("import index %s: %w", cfg.ID, err))
			continue
		}
		s.log.Info("imported index %s", cfg.ID)
		changed++
	}
	return changed, errors.Join(errs...)
}

// Export overwrites the files of every active server and index.
func (s *ConfigSync) Export(ctx context.Context) (int, error) {
	n := 0
	servers, err := s.manager.Servers(ctx)
	if err != nil {
		return 0, err
	}
	for _, srv := range servers {
		if err := s.servers.Save(ctx, srv); err != nil {
			return n, fmt.Errorf("export server %s: %w", srv.ID, err)
		}
		n++
	}

	configs, err := s.manager.List(ctx)
	if err != nil {
		return n, err
	}
	for _, cfg := range configs {
		if err := s.indexes.Save(ctx, cfg); err != nil {
			return n, fmt.Errorf("export index %s: %w", cfg.ID, err)
		}
		n++
	}
	return n, nil
}
