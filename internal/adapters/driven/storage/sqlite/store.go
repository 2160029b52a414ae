package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/searchapi/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/logger"
)

// jsonNull is the JSON representation of null.
const jsonNull = "null"

// Store is a unified SQLite-based storage that provides access to
// all store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.searchapi/data/searchapi.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".searchapi", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "searchapi.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Tracker returns a Tracker backed by this store.
func (s *Store) Tracker() driven.Tracker {
	return &tracker{store: s}
}

// IndexStore returns an IndexStore backed by this store.
func (s *Store) IndexStore() driven.IndexStore {
	return &indexStore{store: s}
}

// ServerStore returns a ServerStore backed by this store.
func (s *Store) ServerStore() driven.ServerStore {
	return &serverStore{store: s}
}

// ServerTaskStore returns a ServerTaskStore backed by this store.
func (s *Store) ServerTaskStore() driven.ServerTaskStore {
	return &serverTaskStore{store: s}
}

// SchedulerStore returns a SchedulerStore backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate applies each NNN_name.up.sql above the recorded schema version,
// one transaction per file.
func (s *Store) migrate(fsys fs.FS) error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	names, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		prefix, _, _ := strings.Cut(name, "_")
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return fmt.Errorf("migration %s: version prefix: %w", name, err)
		}
		if version <= current {
			continue
		}
		script, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.applyMigration(version, string(script)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		logger.Debug("sqlite: applied migration %s", name)
	}
	return nil
}

func (s *Store) applyMigration(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit
	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		version, time.Now().UnixMilli()); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== Index Store ====================

// indexStore implements driven.IndexStore. Configurations are stored as JSON.
type indexStore struct {
	store *Store
}

var _ driven.IndexStore = (*indexStore)(nil)

// Save stores or updates an index configuration.
func (s *indexStore) Save(ctx context.Context, index *domain.IndexConfig) error {
	if index == nil || index.ID == "" {
		return domain.ErrInvalidInput
	}
	configJSON, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("marshalling index %s: %w", index.ID, err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO index_configs (id, server_id, config, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			server_id = excluded.server_id,
			config = excluded.config,
			updated_at = excluded.updated_at
	`, index.ID, nullString(index.ServerID), string(configJSON), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving index %s: %w", index.ID, err)
	}
	return nil
}

// Get retrieves an index configuration by ID.
func (s *indexStore) Get(ctx context.Context, id string) (*domain.IndexConfig, error) {
	var configJSON string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT config FROM index_configs WHERE id = ?", id).Scan(&configJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying index %s: %w", id, err)
	}
	return decodeIndexConfig(configJSON)
}

// Delete removes an index configuration.
func (s *indexStore) Delete(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM index_configs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting index %s: %w", id, err)
	}
	return nil
}

// List returns all index configurations ordered by id.
func (s *indexStore) List(ctx context.Context) ([]*domain.IndexConfig, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT config FROM index_configs ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying indexes: %w", err)
	}
	defer rows.Close()

	var result []*domain.IndexConfig //nolint:prealloc // size unknown from query
	for rows.Next() {
		var configJSON string
		if err := rows.Scan(&configJSON); err != nil {
			return nil, fmt.Errorf("scanning index: %w", err)
		}
		cfg, err := decodeIndexConfig(configJSON)
		if err != nil {
			return nil, err
		}
		result = append(result, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating indexes: %w", err)
	}
	return result, nil
}

func decodeIndexConfig(configJSON string) (*domain.IndexConfig, error) {
	var cfg domain.IndexConfig
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling index config: %w", err)
	}
	if cfg.Fields == nil {
		cfg.Fields = make(map[string]domain.FieldConfig)
	}
	if cfg.Processors == nil {
		cfg.Processors = make(map[string]domain.ProcessorSettings)
	}
	if cfg.Options == nil {
		cfg.Options = make(map[string]any)
	}
	return &cfg, nil
}

// ==================== Server Store ====================

// serverStore implements driven.ServerStore.
type serverStore struct {
	store *Store
}

var _ driven.ServerStore = (*serverStore)(nil)

// Save stores or updates a server.
func (s *serverStore) Save(ctx context.Context, server domain.Server) error {
	optionsJSON, err := json.Marshal(server.Options)
	if err != nil {
		return fmt.Errorf("marshalling options: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO servers (id, name, backend, enabled, options)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			backend = excluded.backend,
			enabled = excluded.enabled,
			options = excluded.options
	`, server.ID, server.Name, string(server.Backend), boolToInt(server.Enabled), string(optionsJSON))
	if err != nil {
		return fmt.Errorf("saving server %s: %w", server.ID, err)
	}
	return nil
}

// Get retrieves a server by ID.
func (s *serverStore) Get(ctx context.Context, id string) (*domain.Server, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT id, name, backend, enabled, options FROM servers WHERE id = ?", id)
	server, err := scanServer(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return server, err
}

// Delete removes a server.
func (s *serverStore) Delete(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM servers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting server %s: %w", id, err)
	}
	return nil
}

// List returns all servers ordered by id.
func (s *serverStore) List(ctx context.Context) ([]domain.Server, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT id, name, backend, enabled, options FROM servers ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying servers: %w", err)
	}
	defer rows.Close()

	var result []domain.Server //nolint:prealloc // size unknown from query
	for rows.Next() {
		server, err := scanServer(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *server)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating servers: %w", err)
	}
	return result, nil
}

func scanServer(scan func(dest ...any) error) (*domain.Server, error) {
	var server domain.Server
	var backend string
	var enabled int
	var optionsJSON sql.NullString
	if err := scan(&server.ID, &server.Name, &backend, &enabled, &optionsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning server: %w", err)
	}
	server.Backend = domain.BackendKind(backend)
	server.Enabled = enabled == 1
	if optionsJSON.Valid && optionsJSON.String != jsonNull {
		if err := json.Unmarshal([]byte(optionsJSON.String), &server.Options); err != nil {
			return nil, fmt.Errorf("unmarshalling server options: %w", err)
		}
	}
	return &server, nil
}

// ==================== Server Task Store ====================

// serverTaskStore implements driven.ServerTaskStore.
type serverTaskStore struct {
	store *Store
}

var _ driven.ServerTaskStore = (*serverTaskStore)(nil)

// Add queues a task.
func (s *serverTaskStore) Add(ctx context.Context, task domain.ServerTask) error {
	if task.ID == "" || task.ServerID == "" {
		return domain.ErrInvalidInput
	}
	itemsJSON, err := json.Marshal(task.ItemIDs)
	if err != nil {
		return fmt.Errorf("marshalling item ids: %w", err)
	}
	created := task.Created
	if created.IsZero() {
		created = time.Now()
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO server_tasks (id, server_id, type, index_id, item_ids, created)
		VALUES (?, ?, ?, ?, ?, ?)
	`, task.ID, task.ServerID, string(task.Type), nullString(task.IndexID),
		string(itemsJSON), created.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("adding server task: %w", err)
	}
	return nil
}

// List returns the tasks of a server in creation order.
func (s *serverTaskStore) List(ctx context.Context, serverID string) ([]domain.ServerTask, error) {
	query := "SELECT id, server_id, type, index_id, item_ids, created FROM server_tasks"
	var args []any
	if serverID != "" {
		query += " WHERE server_id = ?"
		args = append(args, serverID)
	}
	query += " ORDER BY seq"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying server tasks: %w", err)
	}
	defer rows.Close()

	var result []domain.ServerTask //nolint:prealloc // size unknown from query
	for rows.Next() {
		var task domain.ServerTask
		var taskType, created string
		var indexID, itemsJSON sql.NullString
		if err := rows.Scan(&task.ID, &task.ServerID, &taskType, &indexID, &itemsJSON, &created); err != nil {
			return nil, fmt.Errorf("scanning server task: %w", err)
		}
		task.Type = domain.ServerTaskType(taskType)
		task.IndexID = indexID.String
		if itemsJSON.Valid && itemsJSON.String != jsonNull {
			if err := json.Unmarshal([]byte(itemsJSON.String), &task.ItemIDs); err != nil {
				return nil, fmt.Errorf("unmarshalling item ids: %w", err)
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			task.Created = t
		}
		result = append(result, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating server tasks: %w", err)
	}
	return result, nil
}

// Delete removes tasks by id.
func (s *serverTaskStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := "DELETE FROM server_tasks WHERE id IN (" + placeholders(len(ids)) + ")"
	if _, err := s.store.db.ExecContext(ctx, query, stringArgs(ids)...); err != nil {
		return fmt.Errorf("deleting server tasks: %w", err)
	}
	return nil
}

// DeleteForIndex removes every task concerning an index.
func (s *serverTaskStore) DeleteForIndex(ctx context.Context, indexID string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM server_tasks WHERE index_id = ?", indexID); err != nil {
		return fmt.Errorf("deleting server tasks of %s: %w", indexID, err)
	}
	return nil
}

// ==================== Helper Functions ====================

// placeholders returns "?, ?, ?" for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
