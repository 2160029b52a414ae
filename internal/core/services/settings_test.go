package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/searchapi/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/searchapi/internal/core/domain"
)

func TestNewSettingsService(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	require.NotNil(t, service)
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	settings, err := service.Get()

	require.NoError(t, err)
	require.NotNil(t, settings)

	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Storage, settings.Storage)
	assert.Equal(t, defaults.DefaultBackend, settings.DefaultBackend)
	assert.Empty(t, settings.DataDir)
	assert.False(t, settings.Verbose)
	assert.Equal(t, defaults.Scheduler, settings.Scheduler)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("data_dir", "/var/lib/searchapi")
	_ = store.Set("storage", "memory")
	_ = store.Set("backend", "memory")
	_ = store.Set("verbose", true)
	_ = store.Set("search.default_limit", 25)

	service := NewSettingsService(store)

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, "/var/lib/searchapi", settings.DataDir)
	assert.Equal(t, domain.StorageMemory, settings.Storage)
	assert.Equal(t, domain.BackendMemory, settings.DefaultBackend)
	assert.True(t, settings.Verbose)
	assert.Equal(t, 25, settings.SearchLimit)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("storage", "postgres")
	_ = store.Set("backend", "solr")
	_ = store.Set("search.default_limit", 0)

	service := NewSettingsService(store)

	settings, err := service.Get()

	require.NoError(t, err)
	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Storage, settings.Storage)
	assert.Equal(t, defaults.DefaultBackend, settings.DefaultBackend)
	assert.Equal(t, defaults.SearchLimit, settings.SearchLimit)
}

func TestSettingsService_Save(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	scheduler := domain.DefaultSchedulerConfig()
	scheduler.Enabled = false
	scheduler.TaskConfigs[domain.TaskIDIndexBatch] = domain.TaskConfig{Enabled: true, Interval: 90 * time.Second}

	settings := &domain.AppSettings{
		DataDir:        "/tmp/data",
		Storage:        domain.StorageMemory,
		DefaultBackend: domain.BackendMemory,
		Verbose:        true,
		SearchLimit:    50,
		Scheduler:      scheduler,
	}

	require.NoError(t, service.Save(settings))

	retrieved, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, settings, retrieved)
}

func TestSettingsService_Save_Nil(t *testing.T) {
	err := NewSettingsService(memory.NewConfigStore()).Save(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsService_SetDefaultBackend(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	require.NoError(t, service.SetDefaultBackend(domain.BackendMemory))
	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.BackendMemory, settings.DefaultBackend)

	err = service.SetDefaultBackend("solr")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid backend")
}

func TestSettingsService_Validate(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		wantErr string
	}{
		{name: "defaults", values: nil},
		{name: "valid values", values: map[string]any{
			"storage": "sqlite", "backend": "bleve", "scheduler.index_batch.interval": "10m",
		}},
		{name: "invalid storage", values: map[string]any{"storage": "redis"}, wantErr: "invalid storage"},
		{name: "invalid backend", values: map[string]any{"backend": "solr"}, wantErr: "invalid backend"},
		{name: "zero search limit", values: map[string]any{"search.default_limit": 0}, wantErr: "search.default_limit"},
		{name: "search limit wrong type", values: map[string]any{"search.default_limit": "ten"}, wantErr: "search.default_limit"},
		{
			name:    "unparseable interval",
			values:  map[string]any{"scheduler.server_tasks.interval": "often"},
			wantErr: "scheduler.server_tasks.interval",
		},
		{
			name:    "negative interval",
			values:  map[string]any{"scheduler.index_batch.interval": "-5m"},
			wantErr: "must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewSettingsService(memory.NewConfigStoreFrom(tt.values))
			err := service.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSettingsService_GetDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	assert.Equal(t, domain.DefaultAppSettings(), service.GetDefaults())
}

func TestSettingsService_GetBool_WithoutKey(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	assert.True(t, service.getBool("missing", true))
	assert.False(t, service.getBool("missing", false))
}

func TestSettingsService_GetSchedulerConfig(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("scheduler.enabled", false)
	_ = store.Set("scheduler.index_batch.interval", "1h")
	_ = store.Set("scheduler.server_tasks.enabled", false)

	cfg := NewSettingsService(store).GetSchedulerConfig()

	assert.False(t, cfg.Enabled)
	batch := cfg.Task(domain.TaskIDIndexBatch)
	assert.True(t, batch.Enabled)
	assert.Equal(t, time.Hour, batch.Interval)
	assert.False(t, cfg.Task(domain.TaskIDServerTasks).Enabled)
}

func TestSettingsService_GetSchedulerConfig_BadIntervalKeepsDefault(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("scheduler.index_batch.interval", "soon")
	_ = store.Set("scheduler.server_tasks.interval", "0s")

	cfg := NewSettingsService(store).GetSchedulerConfig()

	assert.Equal(t, domain.DefaultIndexBatchInterval, cfg.Task(domain.TaskIDIndexBatch).Interval)
	assert.Equal(t, domain.DefaultServerTasksInterval, cfg.Task(domain.TaskIDServerTasks).Interval)
}

type failingConfigStore struct {
	*memory.ConfigStore
	updates int
}

func (f *failingConfigStore) Update(map[string]any) error {
	f.updates++
	return assert.AnError
}

func (f *failingConfigStore) Set(key string, value any) error {
	return f.Update(map[string]any{key: value})
}

func TestSettingsService_Save_Error(t *testing.T) {
	store := &failingConfigStore{ConfigStore: memory.NewConfigStore()}
	service := NewSettingsService(store)

	defaults := service.GetDefaults()
	err := service.Save(&defaults)

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), ":memory:")
	assert.Equal(t, 1, store.updates, "settings are written in one update")

	_, ok := store.Get("storage")
	assert.False(t, ok)
}

func TestSettingsService_SetDefaultBackend_Error(t *testing.T) {
	store := &failingConfigStore{ConfigStore: memory.NewConfigStore()}

	err := NewSettingsService(store).SetDefaultBackend(domain.BackendMemory)
	assert.ErrorIs(t, err, assert.AnError)
}
