package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/searchapi/internal/adapters/driven/backend/bleve"
	membackend "github.com/custodia-labs/searchapi/internal/adapters/driven/backend/memory"
	"github.com/custodia-labs/searchapi/internal/adapters/driven/config/file"
	"github.com/custodia-labs/searchapi/internal/adapters/driven/datasource"
	"github.com/custodia-labs/searchapi/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/searchapi/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/searchapi/internal/adapters/driving/cli"
	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/core/services"
	"github.com/custodia-labs/searchapi/internal/logger"
	"github.com/custodia-labs/searchapi/internal/processors"
)

// stores bundles the persistence ports for one storage kind.
type stores struct {
	indexes   driven.IndexStore
	servers   driven.ServerStore
	tasks     driven.ServerTaskStore
	tracker   driven.Tracker
	scheduler driven.SchedulerStore
	close     func() error
}

// app holds the wired services of one process.
type app struct {
	settings   *services.SettingsService
	manager    *services.IndexManager
	search     *services.SearchService
	configSync *services.ConfigSync
	scheduler  *services.Scheduler
	stores     *stores
}

// newApp reads config.toml from dir and wires every service. An empty dir
// means ~/.searchapi.
func newApp(dir string) (*app, error) {
	if dir == "" {
		d, err := file.DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		dir = d
	}

	configStore, err := file.NewConfigStore(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)
	if err := settingsService.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}
	if settings.Verbose {
		logger.SetVerbose(true)
	}

	dataDir := settings.DataDir
	if dataDir == "" {
		dataDir = dir
	}

	st, err := openStores(settings.Storage, dataDir)
	if err != nil {
		return nil, err
	}

	raw, _ := configStore.Get(datasource.ConfigKey)
	sources, err := datasource.OpenAll(raw)
	if err != nil {
		_ = st.close()
		return nil, err
	}

	registry := processors.NewRegistry()
	processors.RegisterDefaults(registry)

	manager := services.NewIndexManager(services.ManagerDeps{
		Indexes: st.indexes,
		Servers: st.servers,
		Tasks:   st.tasks,
		Tracker: st.tracker,
		Backends: map[domain.BackendKind]driven.BackendFactory{
			domain.BackendMemory: membackend.Factory(),
			domain.BackendBleve:  bleve.Factory(dataDir),
		},
		Datasources: sources,
		Registry:    registry,
	})

	ctx := context.Background()
	if err := manager.Load(ctx); err != nil {
		_ = st.close()
		return nil, fmt.Errorf("load indexes: %w", err)
	}

	cfgSync := services.NewConfigSync(manager, file.NewIndexStore(dir), file.NewServerStore(dir))
	if n, err := cfgSync.Import(ctx); err != nil {
		logger.Warn("config import: %v", err)
	} else if n > 0 {
		logger.Debug("imported %d configuration entries", n)
	}

	search := services.NewSearchService(manager)
	search.SetDefaultLimit(settings.SearchLimit)

	return &app{
		settings:   settingsService,
		manager:    manager,
		search:     search,
		configSync: cfgSync,
		scheduler:  services.NewScheduler(settingsService.GetSchedulerConfig(), st.scheduler, manager, manager),
		stores:     st,
	}, nil
}

func openStores(kind domain.StorageKind, dataDir string) (*stores, error) {
	switch kind {
	case domain.StorageMemory:
		return &stores{
			indexes:   memory.NewIndexStore(),
			servers:   memory.NewServerStore(),
			tasks:     memory.NewServerTaskStore(),
			tracker:   memory.NewTracker(),
			scheduler: memory.NewSchedulerStore(),
			close:     func() error { return nil },
		}, nil
	case domain.StorageSQLite, "":
		db, err := sqlite.NewStore(dataDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return &stores{
			indexes:   db.IndexStore(),
			servers:   db.ServerStore(),
			tasks:     db.ServerTaskStore(),
			tracker:   db.Tracker(),
			scheduler: db.SchedulerStore(),
			close:     db.Close,
		}, nil
	default:
		return nil, fmt.Errorf("%w: storage %q", domain.ErrInvalidInput, kind)
	}
}

func (a *app) services() cli.Services {
	return cli.Services{
		Index:     a.manager,
		Search:    a.search,
		Server:    a.manager,
		Config:    a.configSync,
		Settings:  a.settings,
		Watcher:   a.manager,
		Scheduler: a.scheduler,
	}
}

// Close releases backends before the stores they were loaded from.
func (a *app) Close() error {
	return errors.Join(a.manager.Close(), a.stores.close())
}
