package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/core/ports/driving"
	"github.com/custodia-labs/searchapi/internal/logger"
	"github.com/custodia-labs/searchapi/internal/processors"
)

// maxParallelIndexes bounds how many indexes IndexAll works on at once.
const maxParallelIndexes = 4

// Verify interface compliance.
var (
	_ driving.IndexService      = (*IndexManager)(nil)
	_ driving.ServerService     = (*IndexManager)(nil)
	_ driving.DatasourceWatcher = (*IndexManager)(nil)
)

// ManagerDeps holds the collaborators of an IndexManager.
type ManagerDeps struct {
	Indexes driven.IndexStore
	Servers driven.ServerStore

	// Tasks queues operations for unavailable servers.
	Tasks driven.ServerTaskStore

	Tracker  driven.Tracker
	Backends map[domain.BackendKind]driven.BackendFactory

	Datasources []driven.Datasource
	Registry    *processors.Registry
	DataTypes   *domain.DataTypeRegistry
	Alterers    []IndexItemsAlterer
}

// managedIndex serializes the operations of one index. The Index itself
// is swapped whenever its configuration changes.
type managedIndex struct {
	mu    sync.Mutex
	index atomic.Pointer[Index]
}

// IndexManager owns all indexes and servers. It keeps tracker, backends and
// stored configuration consistent and runs one pipeline per index at a time.
type IndexManager struct {
	indexes     driven.IndexStore
	serverStore driven.ServerStore
	tracker     driven.Tracker
	factories   map[domain.BackendKind]driven.BackendFactory
	datasources map[string]driven.Datasource
	registry    *processors.Registry
	dataTypes   *domain.DataTypeRegistry
	alterers    []IndexItemsAlterer
	tasks       *ServerTasks
	log         *logger.Logger

	mu      sync.RWMutex
	entries map[string]*managedIndex

	bmu      sync.Mutex
	servers  map[string]domain.Server
	backends map[string]driven.Backend
}

// NewIndexManager creates a manager. Call Load to pick up stored state.
func NewIndexManager(deps ManagerDeps) *IndexManager {
	if deps.Registry == nil {
		deps.Registry = processors.NewRegistry()
		processors.RegisterDefaults(deps.Registry)
	}
	if deps.DataTypes == nil {
		deps.DataTypes = domain.NewDataTypeRegistry()
	}
	m := &IndexManager{
		indexes:     deps.Indexes,
		serverStore: deps.Servers,
		tracker:     deps.Tracker,
		factories:   deps.Backends,
		datasources: make(map[string]driven.Datasource, len(deps.Datasources)),
		registry:    deps.Registry,
		dataTypes:   deps.DataTypes,
		alterers:    deps.Alterers,
		log:         logger.With("index manager"),
		entries:     make(map[string]*managedIndex),
		servers:     make(map[string]domain.Server),
		backends:    make(map[string]driven.Backend),
	}
	for _, ds := range deps.Datasources {
		m.datasources[ds.ID()] = ds
	}
	m.tasks = NewServerTasks(deps.Tasks, m.lookupConfig, m.reindexTracked)
	return m
}

// Load reads servers and indexes from their stores.
func (m *IndexManager) Load(ctx context.Context) error {
	servers, err := m.serverStore.List(ctx)
	if err != nil {
		return fmt.Errorf("load servers: %w", err)
	}
	m.bmu.Lock()
	for _, s := range servers {
		m.servers[s.ID] = s
	}
	m.bmu.Unlock()

	configs, err := m.indexes.List(ctx)
	if err != nil {
		return fmt.Errorf("load indexes: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cfg := range configs {
		e := &managedIndex{}
		e.index.Store(m.buildIndex(cfg))
		m.entries[cfg.ID] = e
	}
	m.log.Debug("loaded %d servers and %d indexes", len(servers), len(configs))
	return nil
}

// Datasources returns the registered datasource ids, sorted.
func (m *IndexManager) Datasources() []string {
	ids := make([]string, 0, len(m.datasources))
	for id := range m.datasources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Index returns the live index for an id.
func (m *IndexManager) Index(indexID string) (*Index, error) {
	e, err := m.entry(indexID)
	if err != nil {
		return nil, err
	}
	return e.index.Load(), nil
}

func (m *IndexManager) entry(indexID string) (*managedIndex, error) {
	m.mu.RLock()
	e, ok := m.entries[indexID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("index %q: %w", indexID, domain.ErrNotFound)
	}
	return e, nil
}

func (m *IndexManager) lookupConfig(indexID string) (*domain.IndexConfig, bool) {
	e, err := m.entry(indexID)
	if err != nil {
		return nil, false
	}
	return e.index.Load().Config(), true
}

// reindexTracked marks every item pending without taking the index lock,
// so server tasks can call it while an index operation is in flight.
func (m *IndexManager) reindexTracked(ctx context.Context, indexID string) error {
	cfg, ok := m.lookupConfig(indexID)
	if !ok || !tracks(cfg) {
		return nil
	}
	return m.tracker.TrackAllItemsUpdated(ctx, indexID)
}

// backendFor returns a server and its backend, creating the backend on first use.
func (m *IndexManager) backendFor(serverID string) (domain.Server, driven.Backend, error) {
	m.bmu.Lock()
	defer m.bmu.Unlock()

	server, ok := m.servers[serverID]
	if !ok {
		return domain.Server{}, nil, fmt.Errorf("server %q: %w", serverID, domain.ErrUnknownServer)
	}
	if b, ok := m.backends[serverID]; ok {
		return server, b, nil
	}
	factory, ok := m.factories[server.Backend]
	if !ok {
		return server, nil, fmt.Errorf("server %q: %w: %s", serverID, domain.ErrUnknownBackend, server.Backend)
	}
	b, err := factory(server)
	if err != nil {
		return server, nil, fmt.Errorf("create backend of server %q: %w", serverID, err)
	}
	m.backends[serverID] = b
	return server, b, nil
}

func (m *IndexManager) buildIndex(cfg *domain.IndexConfig) *Index {
	deps := IndexDeps{
		Datasources: m.datasources,
		Tracker:     m.tracker,
		Registry:    m.registry,
		DataTypes:   m.dataTypes,
		Alterers:    m.alterers,
	}
	if cfg.ServerID != "" {
		server, backend, err := m.backendFor(cfg.ServerID)
		if err != nil {
			m.log.Warn("index %s: %v", cfg.ID, err)
		}
		if !errors.Is(err, domain.ErrUnknownServer) {
			deps.Server = &server
			deps.Backend = backend
		}
	}
	return NewIndex(cfg, deps)
}

// tracks reports whether the tracker should follow the items of an index.
func tracks(cfg *domain.IndexConfig) bool {
	return cfg.Enabled && !cfg.ReadOnly && cfg.ServerID != ""
}

func (m *IndexManager) checkReferences(cfg *domain.IndexConfig) error {
	for _, id := range cfg.DatasourceIDs {
		if _, ok := m.datasources[id]; !ok {
			return fmt.Errorf("index %q: %w: %s", cfg.ID, domain.ErrUnknownDatasource, id)
		}
	}
	if cfg.ServerID == "" {
		return nil
	}
	m.bmu.Lock()
	_, ok := m.servers[cfg.ServerID]
	m.bmu.Unlock()
	if !ok {
		return fmt.Errorf("index %q: %w: %s", cfg.ID, domain.ErrUnknownServer, cfg.ServerID)
	}
	return nil
}

// onServer runs a backend operation through the server task queue.
func (m *IndexManager) onServer(ctx context.Context, serverID string, task domain.ServerTask, op func(driven.Backend) error) error {
	server, backend, err := m.backendFor(serverID)
	if errors.Is(err, domain.ErrUnknownServer) {
		return err
	}
	if err != nil {
		m.log.Warn("%v", err)
	}
	return m.tasks.Run(ctx, server, backend, task, op)
}

func (m *IndexManager) attach(ctx context.Context, cfg *domain.IndexConfig) error {
	task := domain.ServerTask{Type: domain.ServerTaskAddIndex, IndexID: cfg.ID}
	return m.onServer(ctx, cfg.ServerID, task, func(b driven.Backend) error {
		return b.AddIndex(ctx, cfg)
	})
}

func (m *IndexManager) detach(ctx context.Context, serverID, indexID string) error {
	task := domain.ServerTask{Type: domain.ServerTaskRemoveIndex, IndexID: indexID}
	return m.onServer(ctx, serverID, task, func(b driven.Backend) error {
		return b.RemoveIndex(ctx, indexID)
	})
}

// startTracking inserts the ids of every datasource of the index.
func (m *IndexManager) startTracking(ctx context.Context, cfg *domain.IndexConfig) error {
	for _, dsID := range cfg.DatasourceIDs {
		ds, ok := m.datasources[dsID]
		if !ok {
			continue
		}
		raw, err := ds.ItemIDs(ctx)
		if err != nil {
			return fmt.Errorf("list items of %s: %w", dsID, err)
		}
		ids := make([]string, len(raw))
		for i, r := range raw {
			ids[i] = domain.CreateCombinedID(dsID, r)
		}
		if err := m.tracker.TrackItemsInserted(ctx, cfg.ID, ids); err != nil {
			return fmt.Errorf("track items of %s: %w", dsID, err)
		}
		m.log.Debug("index %s: tracking %d items of %s", cfg.ID, len(ids), dsID)
	}
	return nil
}

// List returns copies of all index configurations ordered by id.
func (m *IndexManager) List(_ context.Context) ([]*domain.IndexConfig, error) {
	m.mu.RLock()
	out := make([]*domain.IndexConfig, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.index.Load().Config())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Config returns a copy of an index configuration.
func (m *IndexManager) Config(_ context.Context, indexID string) (*domain.IndexConfig, error) {
	e, err := m.entry(indexID)
	if err != nil {
		return nil, err
	}
	return e.index.Load().Config(), nil
}

// Create adds an index, attaches it to its server and starts tracking.
func (m *IndexManager) Create(ctx context.Context, cfg *domain.IndexConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := m.checkReferences(cfg); err != nil {
		return err
	}

	m.mu.Lock()
	if _, ok := m.entries[cfg.ID]; ok {
		m.mu.Unlock()
		return fmt.Errorf("index %q: %w", cfg.ID, domain.ErrAlreadyExists)
	}
	if err := m.indexes.Save(ctx, cfg); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("save index %q: %w", cfg.ID, err)
	}
	e := &managedIndex{}
	e.index.Store(m.buildIndex(cfg))
	m.entries[cfg.ID] = e
	e.mu.Lock()
	m.mu.Unlock()
	defer e.mu.Unlock()

	if cfg.ServerID != "" {
		if err := m.attach(ctx, cfg); err != nil {
			return err
		}
	}
	if tracks(cfg) {
		if err := m.startTracking(ctx, cfg); err != nil {
			return err
		}
	}
	m.log.Info("created index %s", cfg.ID)
	return nil
}

// Update replaces an index configuration. Moving the index to another
// server, changing its datasources or its fields adjusts tracker and
// backends accordingly.
func (m *IndexManager) Update(ctx context.Context, cfg *domain.IndexConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := m.checkReferences(cfg); err != nil {
		return err
	}
	e, err := m.entry(cfg.ID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.index.Load().Config()
	if err := m.indexes.Save(ctx, cfg); err != nil {
		return fmt.Errorf("save index %q: %w", cfg.ID, err)
	}
	e.index.Store(m.buildIndex(cfg))

	serverChanged := old.ServerID != cfg.ServerID
	if serverChanged {
		if old.ServerID != "" {
			if err := m.detach(ctx, old.ServerID, cfg.ID); err != nil {
				return err
			}
		}
		if cfg.ServerID != "" {
			if err := m.attach(ctx, cfg); err != nil {
				return err
			}
		}
	} else if cfg.ServerID != "" && !reflect.DeepEqual(old.Fields, cfg.Fields) {
		task := domain.ServerTask{Type: domain.ServerTaskFieldsDirty, IndexID: cfg.ID}
		err := m.onServer(ctx, cfg.ServerID, task, func(b driven.Backend) error {
			dirty, err := b.FieldsUpdated(ctx, cfg)
			if err != nil || !dirty {
				return err
			}
			return m.reindexTracked(ctx, cfg.ID)
		})
		if err != nil {
			return err
		}
	}

	was, now := tracks(old), tracks(cfg)
	switch {
	case was && !now:
		err = m.tracker.Clear(ctx, cfg.ID)
	case !was && now:
		err = m.startTracking(ctx, cfg)
	case now && !slices.Equal(old.DatasourceIDs, cfg.DatasourceIDs):
		if err = m.tracker.Clear(ctx, cfg.ID); err == nil {
			err = m.startTracking(ctx, cfg)
		}
	case now && (serverChanged || !reflect.DeepEqual(old.Processors, cfg.Processors)):
		err = m.tracker.TrackAllItemsUpdated(ctx, cfg.ID)
	}
	if err != nil {
		return fmt.Errorf("update tracking of %q: %w", cfg.ID, err)
	}
	m.log.Info("updated index %s", cfg.ID)
	return nil
}

// Delete removes an index, its tracking data and its backend storage.
func (m *IndexManager) Delete(ctx context.Context, indexID string) error {
	e, err := m.entry(indexID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := e.index.Load().Config()
	if err := m.indexes.Delete(ctx, indexID); err != nil {
		return fmt.Errorf("delete index %q: %w", indexID, err)
	}
	m.mu.Lock()
	delete(m.entries, indexID)
	m.mu.Unlock()

	if err := m.tracker.Clear(ctx, indexID); err != nil {
		return err
	}
	if cfg.ServerID != "" {
		if err := m.detach(ctx, cfg.ServerID, indexID); err != nil {
			return err
		}
	}
	m.log.Info("deleted index %s", indexID)
	return nil
}

// IndexBatch indexes up to limit pending items. A limit of zero or less
// uses the cron limit of the index. Items that cannot be loaded stay
// pending.
func (m *IndexManager) IndexBatch(ctx context.Context, indexID string, limit int) (int, error) {
	e, err := m.entry(indexID)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return m.indexBatch(ctx, e.index.Load(), limit)
}

func (m *IndexManager) indexBatch(ctx context.Context, idx *Index, limit int) (int, error) {
	cfg := idx.config
	if cfg.ReadOnly {
		return 0, nil
	}
	if !cfg.Enabled {
		return 0, fmt.Errorf("index %q: %w", cfg.ID, domain.ErrIndexDisabled)
	}
	if limit <= 0 {
		limit = cfg.CronLimit()
	}

	ids, err := m.tracker.RemainingItems(ctx, cfg.ID, limit)
	if err != nil {
		return 0, fmt.Errorf("remaining items of %q: %w", cfg.ID, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	items, err := idx.LoadItems(ctx, ids)
	if err != nil {
		return 0, err
	}

	// Items that fail to load stay pending and are retried by a later batch.
	// Only a deletion reported by the datasource stops tracking them.
	if missing := len(ids) - len(items); missing > 0 {
		m.log.Debug("index %s: %d items could not be loaded", cfg.ID, missing)
	}
	if len(items) == 0 {
		return 0, nil
	}

	handled, err := idx.Index(ctx, items)
	if err != nil {
		return 0, err
	}
	if err := m.tracker.MarkIndexed(ctx, cfg.ID, handled); err != nil {
		return 0, err
	}
	m.log.Debug("index %s: indexed %d of %d items", cfg.ID, len(handled), len(ids))
	return len(handled), nil
}

// IndexAll runs one batch for every index that tracks items. Failures of
// single indexes do not stop the others and are joined in the result.
func (m *IndexManager) IndexAll(ctx context.Context, limit int) (int, error) {
	m.mu.RLock()
	entries := make([]*managedIndex, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	var (
		total atomic.Int64
		mu    sync.Mutex
		errs  []error
	)
	var g errgroup.Group
	g.SetLimit(maxParallelIndexes)
	for _, e := range entries {
		g.Go(func() error {
			e.mu.Lock()
			defer e.mu.Unlock()
			idx := e.index.Load()
			if !tracks(idx.config) {
				return nil
			}
			n, err := m.indexBatch(ctx, idx, limit)
			total.Add(int64(n))
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(total.Load()), errors.Join(errs...)
}

// Reindex marks every item of the index as pending.
func (m *IndexManager) Reindex(ctx context.Context, indexID string) error {
	e, err := m.entry(indexID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Load().Reindex(ctx)
}

// Clear marks every item as pending and removes all items from the backend.
// The removal is queued while the server is unavailable.
func (m *IndexManager) Clear(ctx context.Context, indexID string) error {
	e, err := m.entry(indexID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.index.Load()
	cfg := idx.config
	if cfg.ReadOnly || cfg.ServerID == "" {
		return nil
	}
	if err := idx.Reindex(ctx); err != nil {
		return err
	}
	task := domain.ServerTask{Type: domain.ServerTaskClearIndex, IndexID: cfg.ID}
	return m.onServer(ctx, cfg.ServerID, task, func(b driven.Backend) error {
		return b.DeleteAllItems(ctx, cfg)
	})
}

// Status returns tracking counts for an index.
func (m *IndexManager) Status(ctx context.Context, indexID string) (domain.TrackerStatus, error) {
	if _, err := m.entry(indexID); err != nil {
		return domain.TrackerStatus{IndexID: indexID}, err
	}
	return m.tracker.Status(ctx, indexID)
}

// Fields returns the fields an index offers.
func (m *IndexManager) Fields(_ context.Context, indexID string, onlyIndexed bool) (map[string]*domain.Field, error) {
	idx, err := m.Index(indexID)
	if err != nil {
		return nil, err
	}
	return idx.Fields(onlyIndexed), nil
}

// AdditionalFields returns the complex properties that can be expanded.
func (m *IndexManager) AdditionalFields(_ context.Context, indexID string) (map[string]string, error) {
	idx, err := m.Index(indexID)
	if err != nil {
		return nil, err
	}
	return idx.AdditionalFields(), nil
}

// Processors returns the enabled processors of an index for a stage.
func (m *IndexManager) Processors(_ context.Context, indexID string, stage domain.Stage) ([]driven.Processor, error) {
	idx, err := m.Index(indexID)
	if err != nil {
		return nil, err
	}
	return idx.Processors(stage), nil
}

// search runs a query on an index while holding its lock.
func (m *IndexManager) search(ctx context.Context, q *domain.Query) (*domain.ResultSet, error) {
	e, err := m.entry(q.IndexID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Load().Search(ctx, q)
}

// TrackItemsInserted starts tracking new items of a datasource on every
// index that uses it. Indexes with index_directly set index them at once.
func (m *IndexManager) TrackItemsInserted(ctx context.Context, datasourceID string, rawIDs []string) error {
	return m.trackChange(ctx, datasourceID, rawIDs, m.tracker.TrackItemsInserted)
}

// TrackItemsUpdated marks changed items of a datasource as pending.
func (m *IndexManager) TrackItemsUpdated(ctx context.Context, datasourceID string, rawIDs []string) error {
	return m.trackChange(ctx, datasourceID, rawIDs, m.tracker.TrackItemsUpdated)
}

func (m *IndexManager) trackChange(
	ctx context.Context,
	datasourceID string,
	rawIDs []string,
	track func(ctx context.Context, indexID string, ids []string) error,
) error {
	ids := combine(datasourceID, rawIDs)
	var errs []error
	for _, e := range m.usersOf(datasourceID) {
		e.mu.Lock()
		idx := e.index.Load()
		err := track(ctx, idx.ID(), ids)
		if err == nil && idx.config.IndexDirectly() {
			err = m.indexNow(ctx, idx, ids)
		}
		e.mu.Unlock()
		if err != nil {
			errs = append(errs, fmt.Errorf("index %q: %w", idx.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// indexNow indexes specific items outside the batch cycle.
func (m *IndexManager) indexNow(ctx context.Context, idx *Index, ids []string) error {
	items, err := idx.LoadItems(ctx, ids)
	if err != nil || len(items) == 0 {
		return err
	}
	handled, err := idx.Index(ctx, items)
	if err != nil {
		// The items stay pending for the next batch.
		m.log.Warn("index %s: direct indexing failed: %v", idx.ID(), err)
		return nil
	}
	return m.tracker.MarkIndexed(ctx, idx.ID(), handled)
}

// TrackItemsDeleted stops tracking removed items and deletes them from the
// backends of every index that uses the datasource.
func (m *IndexManager) TrackItemsDeleted(ctx context.Context, datasourceID string, rawIDs []string) error {
	ids := combine(datasourceID, rawIDs)
	var errs []error
	for _, e := range m.usersOf(datasourceID) {
		e.mu.Lock()
		cfg := e.index.Load().Config()
		err := m.tracker.TrackItemsDeleted(ctx, cfg.ID, ids)
		if err == nil {
			task := domain.ServerTask{Type: domain.ServerTaskDeleteItems, IndexID: cfg.ID, ItemIDs: ids}
			err = m.onServer(ctx, cfg.ServerID, task, func(b driven.Backend) error {
				return b.DeleteItems(ctx, cfg, ids)
			})
		}
		e.mu.Unlock()
		if err != nil {
			errs = append(errs, fmt.Errorf("index %q: %w", cfg.ID, err))
		}
	}
	return errors.Join(errs...)
}

// usersOf returns the tracking indexes that read from a datasource.
func (m *IndexManager) usersOf(datasourceID string) []*managedIndex {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*managedIndex
	for _, e := range m.entries {
		cfg := e.index.Load().config
		if tracks(cfg) && slices.Contains(cfg.DatasourceIDs, datasourceID) {
			out = append(out, e)
		}
	}
	return out
}

func combine(datasourceID string, rawIDs []string) []string {
	ids := make([]string, len(rawIDs))
	for i, raw := range rawIDs {
		ids[i] = domain.CreateCombinedID(datasourceID, raw)
	}
	return ids
}

// WatchDatasources follows every datasource that reports changes and feeds
// them into tracking until ctx is cancelled. It returns once all watches run.
func (m *IndexManager) WatchDatasources(ctx context.Context) error {
	for _, id := range m.Datasources() {
		notifier, ok := m.datasources[id].(driven.ChangeNotifier)
		if !ok {
			continue
		}
		changes, err := notifier.Watch(ctx)
		if err != nil {
			return fmt.Errorf("watch %s: %w", id, err)
		}
		go m.consume(ctx, changes)
		m.log.Debug("watching %s", id)
	}
	return nil
}

func (m *IndexManager) consume(ctx context.Context, changes <-chan driven.ItemChange) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if err := m.applyChange(ctx, c); err != nil {
				m.log.Error("applying %s change of %s: %v", c.Type, c.DatasourceID, err)
			}
		}
	}
}

func (m *IndexManager) applyChange(ctx context.Context, c driven.ItemChange) error {
	switch c.Type {
	case driven.ChangeInserted:
		return m.TrackItemsInserted(ctx, c.DatasourceID, c.IDs)
	case driven.ChangeUpdated:
		return m.TrackItemsUpdated(ctx, c.DatasourceID, c.IDs)
	case driven.ChangeDeleted:
		return m.TrackItemsDeleted(ctx, c.DatasourceID, c.IDs)
	default:
		return fmt.Errorf("%w: change type %q", domain.ErrInvalidInput, c.Type)
	}
}

// Servers returns all configured servers ordered by id.
func (m *IndexManager) Servers(_ context.Context) ([]domain.Server, error) {
	m.bmu.Lock()
	out := make([]domain.Server, 0, len(m.servers))
	for _, s := range m.servers {
		out = append(out, s)
	}
	m.bmu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveServer creates or updates a server. Indexes on the server are rebuilt,
// and enabling the server replays its queued tasks.
func (m *IndexManager) SaveServer(ctx context.Context, server domain.Server) error {
	if server.ID == "" {
		return fmt.Errorf("server id is required: %w", domain.ErrInvalidInput)
	}
	if !server.Backend.IsValid() {
		return fmt.Errorf("server %q: %w: %q", server.ID, domain.ErrUnknownBackend, server.Backend)
	}
	if err := m.serverStore.Save(ctx, server); err != nil {
		return fmt.Errorf("save server %q: %w", server.ID, err)
	}

	m.bmu.Lock()
	old, existed := m.servers[server.ID]
	m.servers[server.ID] = server
	if existed && old.Backend != server.Backend {
		if b, ok := m.backends[server.ID]; ok {
			if err := b.Close(); err != nil {
				m.log.Warn("closing backend of %s: %v", server.ID, err)
			}
			delete(m.backends, server.ID)
		}
	}
	m.bmu.Unlock()

	m.mu.RLock()
	var attached []*managedIndex
	for _, e := range m.entries {
		if e.index.Load().config.ServerID == server.ID {
			attached = append(attached, e)
		}
	}
	m.mu.RUnlock()
	for _, e := range attached {
		e.mu.Lock()
		e.index.Store(m.buildIndex(e.index.Load().config))
		e.mu.Unlock()
	}

	if server.Enabled && (!existed || !old.Enabled) {
		_, backend, err := m.backendFor(server.ID)
		if err != nil {
			return err
		}
		n, err := m.tasks.Execute(ctx, server, backend)
		if err != nil {
			return err
		}
		if n > 0 {
			m.log.Info("server %s: replayed %d tasks", server.ID, n)
		}
	}
	return nil
}

// ExecuteServerTasks replays queued tasks of every enabled server.
func (m *IndexManager) ExecuteServerTasks(ctx context.Context) (int, error) {
	servers, _ := m.Servers(ctx)
	total := 0
	var errs []error
	for _, server := range servers {
		if !server.Enabled {
			continue
		}
		_, backend, err := m.backendFor(server.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		n, err := m.tasks.Execute(ctx, server, backend)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// PendingServerTasks returns the queued tasks of a server. An empty id lists all.
func (m *IndexManager) PendingServerTasks(ctx context.Context, serverID string) ([]domain.ServerTask, error) {
	return m.tasks.Pending(ctx, serverID)
}

// Close closes every backend.
func (m *IndexManager) Close() error {
	m.bmu.Lock()
	defer m.bmu.Unlock()
	var errs []error
	for id, b := range m.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close backend of %s: %w", id, err))
		}
		delete(m.backends, id)
	}
	return errors.Join(errs...)
}
