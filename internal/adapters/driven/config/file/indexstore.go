package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
)

// Ensure the stores implement the interfaces.
var (
	_ driven.IndexStore  = (*IndexStore)(nil)
	_ driven.ServerStore = (*ServerStore)(nil)
)

type fieldDoc struct {
	Type     string  `toml:"type"`
	RealType string  `toml:"real_type,omitempty"`
	Boost    float64 `toml:"boost,omitempty"`
}

type processorDoc struct {
	Status   bool           `toml:"status"`
	Weights  map[string]int `toml:"weights,omitempty"`
	Settings map[string]any `toml:"settings,omitempty"`
}

// indexDoc is the TOML layout of an index file.
type indexDoc struct {
	ID          string                  `toml:"id"`
	Name        string                  `toml:"name"`
	Description string                  `toml:"description,omitempty"`
	Server      string                  `toml:"server,omitempty"`
	Datasources []string                `toml:"datasources"`
	Enabled     bool                    `toml:"enabled"`
	ReadOnly    bool                    `toml:"read_only"`
	Options     map[string]any          `toml:"options,omitempty"`
	Fields      map[string]fieldDoc     `toml:"fields,omitempty"`
	Processors  map[string]processorDoc `toml:"processors,omitempty"`
}

func toIndexDoc(cfg *domain.IndexConfig) indexDoc {
	doc := indexDoc{
		ID:          cfg.ID,
		Name:        cfg.Name,
		Description: cfg.Description,
		Server:      cfg.ServerID,
		Datasources: cfg.DatasourceIDs,
		Enabled:     cfg.Enabled,
		ReadOnly:    cfg.ReadOnly,
		Options:     cfg.Options,
		Fields:      make(map[string]fieldDoc, len(cfg.Fields)),
		Processors:  make(map[string]processorDoc, len(cfg.Processors)),
	}
	for id, f := range cfg.Fields {
		doc.Fields[id] = fieldDoc{Type: f.Type, RealType: f.RealType, Boost: f.Boost}
	}
	for id, p := range cfg.Processors {
		pd := processorDoc{Status: p.Status, Settings: p.Settings}
		if len(p.Weights) > 0 {
			pd.Weights = make(map[string]int, len(p.Weights))
			for stage, w := range p.Weights {
				pd.Weights[string(stage)] = w
			}
		}
		doc.Processors[id] = pd
	}
	return doc
}

func (d indexDoc) config() (*domain.IndexConfig, error) {
	cfg := domain.NewIndexConfig(d.ID, d.Name, d.Server, d.Datasources...)
	cfg.Description = d.Description
	cfg.Enabled = d.Enabled
	cfg.ReadOnly = d.ReadOnly
	if d.Options != nil {
		cfg.Options = d.Options
	}
	for id, f := range d.Fields {
		cfg.Fields[id] = domain.FieldConfig{Type: f.Type, RealType: f.RealType, Boost: f.Boost}
	}
	for id, p := range d.Processors {
		ps := domain.ProcessorSettings{Status: p.Status, Settings: p.Settings}
		if len(p.Weights) > 0 {
			ps.Weights = make(map[domain.Stage]int, len(p.Weights))
			for stage, w := range p.Weights {
				if !domain.Stage(stage).IsValid() {
					return nil, fmt.Errorf("processor %s: unknown stage %q: %w", id, stage, domain.ErrInvalidInput)
				}
				ps.Weights[domain.Stage(stage)] = w
			}
		}
		cfg.Processors[id] = ps
	}
	return cfg, nil
}

// tomlDir stores one TOML document per id in a directory.
type tomlDir struct {
	mu  sync.RWMutex
	dir string
}

func (d *tomlDir) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("invalid id %q: %w", id, domain.ErrInvalidInput)
	}
	return filepath.Join(d.dir, id+".toml"), nil
}

func (d *tomlDir) write(id string, v any) error {
	path, err := d.path(id)
	if err != nil {
		return err
	}
	data, err := toml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := os.MkdirAll(d.dir, 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (d *tomlDir) read(id string, v any) error {
	path, err := d.path(id)
	if err != nil {
		return err
	}
	d.mu.RLock()
	data, err := os.ReadFile(path)
	d.mu.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (d *tomlDir) remove(id string) error {
	path, err := d.path(id)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ids lists the stored ids in order.
func (d *tomlDir) ids() ([]string, error) {
	d.mu.RLock()
	entries, err := os.ReadDir(d.dir)
	d.mu.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".toml" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".toml"))
	}
	sort.Strings(ids)
	return ids, nil
}

// IndexStore keeps index configurations in <dir>/indexes/<id>.toml so they
// can be edited by hand.
type IndexStore struct {
	files tomlDir
}

// NewIndexStore creates a store below configDir.
func NewIndexStore(configDir string) *IndexStore {
	return &IndexStore{files: tomlDir{dir: filepath.Join(configDir, "indexes")}}
}

// Save writes the index file.
func (s *IndexStore) Save(_ context.Context, index *domain.IndexConfig) error {
	if index == nil {
		return domain.ErrInvalidInput
	}
	return s.files.write(index.ID, toIndexDoc(index))
}

// Get reads an index file. The file name wins over the id inside it.
func (s *IndexStore) Get(_ context.Context, id string) (*domain.IndexConfig, error) {
	var doc indexDoc
	if err := s.files.read(id, &doc); err != nil {
		return nil, err
	}
	doc.ID = id
	return doc.config()
}

// Delete removes an index file.
func (s *IndexStore) Delete(_ context.Context, id string) error {
	return s.files.remove(id)
}

// List reads every index file.
func (s *IndexStore) List(ctx context.Context) ([]*domain.IndexConfig, error) {
	ids, err := s.files.ids()
	if err != nil {
		return nil, err
	}
	out := make([]*domain.IndexConfig, 0, len(ids))
	for _, id := range ids {
		cfg, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

type serverDoc struct {
	ID      string         `toml:"id"`
	Name    string         `toml:"name"`
	Backend string         `toml:"backend"`
	Enabled bool           `toml:"enabled"`
	Options map[string]any `toml:"options,omitempty"`
}

// ServerStore keeps servers in <dir>/servers/<id>.toml.
type ServerStore struct {
	files tomlDir
}

// NewServerStore creates a store below configDir.
func NewServerStore(configDir string) *ServerStore {
	return &ServerStore{files: tomlDir{dir: filepath.Join(configDir, "servers")}}
}

// Save writes the server file.
func (s *ServerStore) Save(_ context.Context, server domain.Server) error {
	return s.files.write(server.ID, serverDoc{
		ID:      server.ID,
		Name:    server.Name,
		Backend: string(server.Backend),
		Enabled: server.Enabled,
		Options: server.Options,
	})
}

// Get reads a server file.
func (s *ServerStore) Get(_ context.Context, id string) (*domain.Server, error) {
	var doc serverDoc
	if err := s.files.read(id, &doc); err != nil {
		return nil, err
	}
	return &domain.Server{
		ID:      id,
		Name:    doc.Name,
		Backend: domain.BackendKind(doc.Backend),
		Enabled: doc.Enabled,
		Options: doc.Options,
	}, nil
}

// Delete removes a server file.
func (s *ServerStore) Delete(_ context.Context, id string) error {
	return s.files.remove(id)
}

// List reads every server file.
func (s *ServerStore) List(ctx context.Context) ([]domain.Server, error) {
	ids, err := s.files.ids()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Server, 0, len(ids))
	for _, id := range ids {
		server, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *server)
	}
	return out, nil
}
