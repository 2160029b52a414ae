package services

import (
	"fmt"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/core/ports/driving"
)

var _ driving.SettingsService = (*SettingsService)(nil)

// Keys in config.toml.
const (
	keyDataDir          = "data_dir"
	keyStorage          = "storage"
	keyBackend          = "backend"
	keyVerbose          = "verbose"
	keySearchLimit      = "search.default_limit"
	keySchedulerEnabled = "scheduler.enabled"
)

// taskSections maps built-in task ids to their [scheduler.<section>] table.
var taskSections = map[string]string{
	domain.TaskIDIndexBatch:  "index_batch",
	domain.TaskIDServerTasks: "server_tasks",
}

func taskKey(taskID, field string) string {
	return "scheduler." + taskSections[taskID] + "." + field
}

// SettingsService reads and writes AppSettings through a ConfigStore.
// Missing or unusable values fall back to domain.DefaultAppSettings.
type SettingsService struct {
	configStore driven.ConfigStore
}

func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		DataDir:        s.configStore.GetString(keyDataDir),
		Storage:        defaults.Storage,
		DefaultBackend: defaults.DefaultBackend,
		Verbose:        s.getBool(keyVerbose, defaults.Verbose),
		SearchLimit:    defaults.SearchLimit,
		Scheduler:      s.GetSchedulerConfig(),
	}
	if kind := domain.StorageKind(s.configStore.GetString(keyStorage)); kind.IsValid() {
		settings.Storage = kind
	}
	if kind := domain.BackendKind(s.configStore.GetString(keyBackend)); kind.IsValid() {
		settings.DefaultBackend = kind
	}
	if n := s.configStore.GetInt(keySearchLimit); n > 0 {
		settings.SearchLimit = n
	}
	return settings, nil
}

// Save writes every setting in one update.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if settings == nil {
		return domain.ErrInvalidInput
	}
	values := map[string]any{
		keyDataDir:          settings.DataDir,
		keyStorage:          settings.Storage.String(),
		keyBackend:          settings.DefaultBackend.String(),
		keyVerbose:          settings.Verbose,
		keySchedulerEnabled: settings.Scheduler.Enabled,
	}
	if settings.SearchLimit > 0 {
		values[keySearchLimit] = settings.SearchLimit
	}
	for taskID := range taskSections {
		tc, ok := settings.Scheduler.TaskConfigs[taskID]
		if !ok {
			continue
		}
		values[taskKey(taskID, "enabled")] = tc.Enabled
		values[taskKey(taskID, "interval")] = tc.Interval.String()
	}

	if err := s.configStore.Update(values); err != nil {
		return fmt.Errorf("saving settings to %s: %w", s.configStore.Path(), err)
	}
	return nil
}

// SetDefaultBackend updates the backend used for servers that name none.
func (s *SettingsService) SetDefaultBackend(kind domain.BackendKind) error {
	if !kind.IsValid() {
		return fmt.Errorf("invalid backend: %s", kind)
	}
	return s.configStore.Set(keyBackend, kind.String())
}

// Validate rejects values Get would silently replace with defaults.
func (s *SettingsService) Validate() error {
	if v := s.configStore.GetString(keyStorage); v != "" && !domain.StorageKind(v).IsValid() {
		return fmt.Errorf("invalid storage: %s", v)
	}
	if v := s.configStore.GetString(keyBackend); v != "" && !domain.BackendKind(v).IsValid() {
		return fmt.Errorf("invalid backend: %s", v)
	}
	if _, ok := s.configStore.Get(keySearchLimit); ok && s.configStore.GetInt(keySearchLimit) <= 0 {
		return fmt.Errorf("invalid %s: must be a positive integer", keySearchLimit)
	}

	for taskID := range taskSections {
		key := taskKey(taskID, "interval")
		d, err := s.configStore.GetDuration(key)
		if err != nil {
			return fmt.Errorf("invalid %w", err)
		}
		if _, set := s.configStore.Get(key); set && d <= 0 {
			return fmt.Errorf("invalid %s: must be positive", key)
		}
	}
	return nil
}

func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

// GetSchedulerConfig overlays configured values on the defaults. Intervals
// that do not parse or are not positive keep their default.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	cfg := domain.DefaultSchedulerConfig()
	cfg.Enabled = s.getBool(keySchedulerEnabled, cfg.Enabled)

	for taskID := range taskSections {
		tc := cfg.TaskConfigs[taskID]
		tc.Enabled = s.getBool(taskKey(taskID, "enabled"), tc.Enabled)
		if d, err := s.configStore.GetDuration(taskKey(taskID, "interval")); err == nil && d > 0 {
			tc.Interval = d
		}
		cfg.TaskConfigs[taskID] = tc
	}
	return cfg
}
