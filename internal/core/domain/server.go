package domain

import "time"

// BackendKind names a backend implementation.
type BackendKind string

// Available backends.
const (
	// BackendMemory keeps indexed items in process memory.
	BackendMemory BackendKind = "memory"

	// BackendBleve stores items in a bleve fulltext index.
	BackendBleve BackendKind = "bleve"
)

// IsValid returns true if the backend kind is recognised.
func (k BackendKind) IsValid() bool {
	return k == BackendMemory || k == BackendBleve
}

// String returns the string representation.
func (k BackendKind) String() string {
	return string(k)
}

// Description returns a human-readable description of the backend.
func (k BackendKind) Description() string {
	switch k {
	case BackendMemory:
		return "In-memory (volatile)"
	case BackendBleve:
		return "Bleve fulltext index"
	default:
		return unknownDescription
	}
}

// Server is a configured backend instance that indexes can attach to.
type Server struct {
	ID      string
	Name    string
	Backend BackendKind
	Enabled bool
	Options map[string]any
}

// ServerTaskType names a deferred server operation.
type ServerTaskType string

// Server task types.
const (
	ServerTaskAddIndex    ServerTaskType = "addIndex"
	ServerTaskRemoveIndex ServerTaskType = "removeIndex"
	ServerTaskDeleteItems ServerTaskType = "deleteItems"
	ServerTaskClearIndex  ServerTaskType = "deleteAllIndexItems"
	ServerTaskFieldsDirty ServerTaskType = "fieldsUpdated"
)

// IsValid returns true if the task type is recognised.
func (t ServerTaskType) IsValid() bool {
	switch t {
	case ServerTaskAddIndex, ServerTaskRemoveIndex, ServerTaskDeleteItems,
		ServerTaskClearIndex, ServerTaskFieldsDirty:
		return true
	default:
		return false
	}
}

// ServerTask is an operation queued while its server could not accept it.
type ServerTask struct {
	ID       string
	ServerID string
	Type     ServerTaskType
	IndexID  string
	ItemIDs  []string
	Created  time.Time
}

// TrackerStatus summarises the tracking state of an index.
type TrackerStatus struct {
	IndexID string
	Indexed int
	Total   int
}

// Pending returns the number of items still waiting to be indexed.
func (s TrackerStatus) Pending() int {
	return s.Total - s.Indexed
}

// Progress returns the share of indexed items between 0 and 1.
// An empty index counts as fully indexed.
func (s TrackerStatus) Progress() float64 {
	if s.Total == 0 {
		return 1
	}
	return float64(s.Indexed) / float64(s.Total)
}
