// Package sqlite provides a SQLite-based implementation of the driven storage ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. A single database connection backs several store interfaces:
//
//   - Tracker: pending/indexed state of every item per index
//   - IndexStore: index configurations
//   - ServerStore: server configurations
//   - ServerTaskStore: operations queued for disabled servers
//   - SchedulerStore: scheduled task state and history
//
// # Schema
//
// The schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.searchapi/data/searchapi.db
//
// # Thread Safety
//
// All operations are thread-safe. The store relies on SQLite's WAL mode
// and a busy timeout for concurrent writers.
package sqlite
