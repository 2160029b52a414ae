package domain

import "time"

// StorageKind names where tracker, task, and scheduler state is kept.
type StorageKind string

// Available storage kinds.
const (
	// StorageMemory keeps state in process memory.
	StorageMemory StorageKind = "memory"

	// StorageSQLite keeps state in a SQLite database in the data directory.
	StorageSQLite StorageKind = "sqlite"
)

// IsValid returns true if the storage kind is recognised.
func (k StorageKind) IsValid() bool {
	return k == StorageMemory || k == StorageSQLite
}

// String returns the string representation.
func (k StorageKind) String() string {
	return string(k)
}

// Description returns a human-readable description of the storage kind.
func (k StorageKind) Description() string {
	switch k {
	case StorageMemory:
		return "In-memory (lost on exit)"
	case StorageSQLite:
		return "SQLite database"
	default:
		return unknownDescription
	}
}

// AppSettings holds all application settings.
type AppSettings struct {
	// DataDir holds the database, bleve indexes, and index configs.
	DataDir string

	// Storage selects the tracker and task store.
	Storage StorageKind

	// DefaultBackend is used for servers that name no backend.
	DefaultBackend BackendKind

	// Verbose enables debug logging.
	Verbose bool

	// SearchLimit is used for queries that set no limit.
	SearchLimit int

	// Scheduler holds background task configuration.
	Scheduler SchedulerConfig
}

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Storage:        StorageSQLite,
		DefaultBackend: BackendBleve,
		SearchLimit:    DefaultSearchLimit,
		Scheduler:      DefaultSchedulerConfig(),
	}
}

// DefaultSearchLimit is applied to queries that do not set a limit.
const DefaultSearchLimit = 10

// DefaultIndexBatchInterval is how often the scheduler runs batch indexing.
const DefaultIndexBatchInterval = 5 * time.Minute
