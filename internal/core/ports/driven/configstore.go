package driven

import "time"

// ConfigStore holds the application settings of config.toml. Keys are
// dotted paths into nested tables, so "scheduler.index_batch.interval" is
// the interval key of the [scheduler.index_batch] table.
type ConfigStore interface {
	// Get returns the raw value. Arrays of tables come back as a []any of
	// map[string]any.
	Get(key string) (any, bool)

	// GetString, GetInt and GetBool return the zero value for a missing
	// key or one of another type.
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool

	// GetDuration parses a Go duration string such as "90s". A missing key
	// returns zero and no error.
	GetDuration(key string) (time.Duration, error)

	// Set stores one value and persists it.
	Set(key string, value any) error

	// Update stores several values and persists them together.
	Update(values map[string]any) error

	// Path names where the configuration lives.
	Path() string
}
