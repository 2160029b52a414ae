package cli

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
)

// mockIndexService records the calls the commands make.
type mockIndexService struct {
	configs    map[string]*domain.IndexConfig
	created    []*domain.IndexConfig
	updated    []*domain.IndexConfig
	deleted    []string
	reindexed  []string
	cleared    []string
	batches    map[string]int
	limits     []int
	status     map[string]domain.TrackerStatus
	fields     map[string]*domain.Field
	additional map[string]string
	processors []driven.Processor
	stages     []domain.Stage
	err        error
}

func newMockIndexService() *mockIndexService {
	cfg := domain.NewIndexConfig("articles", "Articles", "default", "node")
	cfg.Fields["node|title"] = domain.FieldConfig{Type: domain.TypeText, Boost: 5}
	cfg.Fields["node|status"] = domain.FieldConfig{Type: domain.TypeBoolean, Boost: 1}
	cfg.Processors["ignorecase"] = domain.ProcessorSettings{Status: true}
	cfg.Processors["stopwords"] = domain.ProcessorSettings{Status: false}

	title := domain.NewField("node|title", domain.TypeText)
	title.Label = "Title"
	title.Indexed = true

	return &mockIndexService{
		configs: map[string]*domain.IndexConfig{"articles": cfg},
		batches: make(map[string]int),
		status: map[string]domain.TrackerStatus{
			"articles": {IndexID: "articles", Indexed: 3, Total: 4},
		},
		fields:     map[string]*domain.Field{"node|title": title, "node|body": domain.NewField("node|body", domain.TypeText)},
		additional: map[string]string{"node|author": "Author"},
	}
}

func (m *mockIndexService) List(_ context.Context) ([]*domain.IndexConfig, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.IndexConfig
	for _, id := range sortedKeys(m.configs) {
		out = append(out, m.configs[id])
	}
	return out, nil
}

func (m *mockIndexService) Config(_ context.Context, indexID string) (*domain.IndexConfig, error) {
	if m.err != nil {
		return nil, m.err
	}
	cfg, ok := m.configs[indexID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cfg.Clone(), nil
}

func (m *mockIndexService) Create(_ context.Context, cfg *domain.IndexConfig) error {
	if m.err != nil {
		return m.err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.created = append(m.created, cfg)
	m.configs[cfg.ID] = cfg
	return nil
}

func (m *mockIndexService) Update(_ context.Context, cfg *domain.IndexConfig) error {
	m.updated = append(m.updated, cfg)
	return m.err
}

func (m *mockIndexService) Delete(_ context.Context, indexID string) error {
	m.deleted = append(m.deleted, indexID)
	return m.err
}

func (m *mockIndexService) IndexBatch(_ context.Context, indexID string, limit int) (int, error) {
	m.limits = append(m.limits, limit)
	return m.batches[indexID], m.err
}

func (m *mockIndexService) IndexAll(_ context.Context, limit int) (int, error) {
	m.limits = append(m.limits, limit)
	total := 0
	for _, n := range m.batches {
		total += n
	}
	return total, m.err
}

func (m *mockIndexService) Reindex(_ context.Context, indexID string) error {
	m.reindexed = append(m.reindexed, indexID)
	return m.err
}

func (m *mockIndexService) Clear(_ context.Context, indexID string) error {
	m.cleared = append(m.cleared, indexID)
	return m.err
}

func (m *mockIndexService) Status(_ context.Context, indexID string) (domain.TrackerStatus, error) {
	return m.status[indexID], m.err
}

func (m *mockIndexService) Fields(_ context.Context, _ string, onlyIndexed bool) (map[string]*domain.Field, error) {
	if !onlyIndexed {
		return m.fields, m.err
	}
	out := make(map[string]*domain.Field)
	for id, f := range m.fields {
		if f.Indexed {
			out[id] = f
		}
	}
	return out, m.err
}

func (m *mockIndexService) AdditionalFields(_ context.Context, _ string) (map[string]string, error) {
	return m.additional, m.err
}

func (m *mockIndexService) Processors(_ context.Context, _ string, stage domain.Stage) ([]driven.Processor, error) {
	m.stages = append(m.stages, stage)
	return m.processors, m.err
}

// mockSearchService returns one result and records the query.
type mockSearchService struct {
	last *domain.Query
	rs   *domain.ResultSet
	err  error
}

func (m *mockSearchService) Search(_ context.Context, q *domain.Query) (*domain.ResultSet, error) {
	m.last = q
	if m.err != nil {
		return nil, m.err
	}
	if m.rs != nil {
		return m.rs, nil
	}
	rs := domain.NewResultSet(q)
	rs.ResultCount = 1
	rs.Results = []domain.Result{{ID: "node|1", DatasourceID: "node", Score: 1.5, Excerpt: "the quick fox"}}
	return rs, nil
}

type mockServerService struct {
	servers  []domain.Server
	saved    []domain.Server
	executed int
	err      error
}

func (m *mockServerService) Servers(_ context.Context) ([]domain.Server, error) {
	return m.servers, m.err
}

func (m *mockServerService) SaveServer(_ context.Context, server domain.Server) error {
	m.saved = append(m.saved, server)
	return m.err
}

func (m *mockServerService) ExecuteServerTasks(_ context.Context) (int, error) {
	return m.executed, m.err
}

type mockConfigSync struct {
	imported int
	exported int
	err      error
}

func (m *mockConfigSync) Import(_ context.Context) (int, error) { return m.imported, m.err }
func (m *mockConfigSync) Export(_ context.Context) (int, error) { return m.exported, m.err }

type mockSettingsService struct {
	settings domain.AppSettings
	saved    *domain.AppSettings
	err      error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.saved = settings
	return m.err
}

func (m *mockSettingsService) Validate() error { return m.err }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

type mockWatcher struct {
	mu      sync.Mutex
	watched int
	err     error
}

func (m *mockWatcher) WatchDatasources(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watched++
	return m.err
}

// mockScheduler blocks in Start until the context ends.
type mockScheduler struct {
	started chan struct{}
	stopped bool
	mu      sync.Mutex

	tasks   []domain.ScheduledTask
	history map[string][]domain.TaskResult
	result  domain.TaskResult
	runErr  error
	ran     string
	limit   int
}

func (m *mockScheduler) Start(ctx context.Context) error {
	close(m.started)
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockScheduler) Tasks(context.Context) ([]domain.ScheduledTask, error) {
	return m.tasks, nil
}

func (m *mockScheduler) History(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	m.limit = limit
	return m.history[taskID], nil
}

func (m *mockScheduler) RunNow(_ context.Context, taskID string) (domain.TaskResult, error) {
	m.ran = taskID
	return m.result, m.runErr
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	index    *mockIndexService
	search   *mockSearchService
	server   *mockServerService
	config   *mockConfigSync
	settings *mockSettingsService
}

// setupTestServices installs mocks for every service and returns them with
// a cleanup that restores the previous services.
func setupTestServices() (*testServices, func()) {
	prev := Services{
		Index:     indexService,
		Search:    searchService,
		Server:    serverService,
		Config:    configSync,
		Settings:  settingsService,
		Watcher:   watcher,
		Scheduler: scheduler,
	}

	ts := &testServices{
		index:  newMockIndexService(),
		search: &mockSearchService{},
		server: &mockServerService{servers: []domain.Server{
			{ID: "default", Name: "Default", Backend: domain.BackendBleve, Enabled: true},
		}},
		config:   &mockConfigSync{},
		settings: &mockSettingsService{settings: domain.DefaultAppSettings()},
	}
	SetServices(Services{
		Index:    ts.index,
		Search:   ts.search,
		Server:   ts.server,
		Config:   ts.config,
		Settings: ts.settings,
	})
	return ts, func() { SetServices(prev) }
}

// execute runs the root command with args and returns its output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

var errBoom = errors.New("boom")
