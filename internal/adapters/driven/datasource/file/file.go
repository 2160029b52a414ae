// Package file provides a datasource reading one item per JSON or YAML
// file from a directory. The property schema is read from a YAML file and
// directory changes are reported through fsnotify.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/extraction"
	"github.com/custodia-labs/searchapi/internal/logger"
)

// SchemaFileName is the schema looked up in the item directory when no
// schema path is configured. Files starting with "_" or "." are never items.
const SchemaFileName = "_schema.yaml"

// Item properties with a meaning beyond extraction.
const (
	LanguageKey = "langcode"
	StatusKey   = "status"
)

// extensions are tried in order when loading an item.
var extensions = []string{".yaml", ".yml", ".json"}

// ErrNoDirectory is returned when the configured directory is missing.
var ErrNoDirectory = errors.New("datasource directory does not exist")

// Verify interface compliance.
var (
	_ driven.Datasource     = (*Datasource)(nil)
	_ driven.ChangeNotifier = (*Datasource)(nil)
)

// Config configures a file datasource.
type Config struct {
	ID         string
	EntityType string
	Dir        string
	// Schema is the path of the schema file. Defaults to Dir/_schema.yaml.
	Schema string
}

// Document is the original object of a loaded item.
type Document struct {
	Path   string
	Values map[string]any
}

// PublishableDocument is attached to items with a boolean status property.
type PublishableDocument struct {
	Document
	Published bool
}

// IsPublished implements domain.Publishable.
func (d PublishableDocument) IsPublished() bool { return d.Published }

// Datasource reads items from a directory.
type Datasource struct {
	cfg Config
	def *domain.DataDefinition
	log *logger.Logger
}

// New validates the directory and loads the schema.
func New(cfg Config) (*Datasource, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: datasource id is required", domain.ErrInvalidInput)
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoDirectory, cfg.Dir)
	}
	if cfg.Schema == "" {
		cfg.Schema = filepath.Join(cfg.Dir, SchemaFileName)
	}
	def, err := LoadSchema(cfg.Schema)
	if err != nil {
		return nil, err
	}
	return &Datasource{cfg: cfg, def: def, log: logger.With("datasource " + cfg.ID)}, nil
}

func (d *Datasource) ID() string                                  { return d.cfg.ID }
func (d *Datasource) EntityType() string                          { return d.cfg.EntityType }
func (d *Datasource) PropertyDefinitions() *domain.DataDefinition { return d.def }

// isItemFile reports whether a file name holds an item and returns its raw id.
func isItemFile(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return "", false
	}
	ext := filepath.Ext(name)
	for _, e := range extensions {
		if strings.EqualFold(ext, e) {
			return strings.TrimSuffix(name, ext), true
		}
	}
	return "", false
}

// ItemIDs lists the raw ids of all item files.
func (d *Datasource) ItemIDs(context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.cfg.Dir, err)
	}
	seen := make(map[string]bool)
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := isItemFile(e.Name()); ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadItems parses the files of the requested ids. Missing or unreadable
// files are left out.
func (d *Datasource) LoadItems(ctx context.Context, ids []string) (map[string]*domain.Item, error) {
	out := make(map[string]*domain.Item, len(ids))
	for _, raw := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if raw == "" || strings.ContainsAny(raw, `/\`) {
			continue
		}
		path, ok := d.find(raw)
		if !ok {
			continue
		}
		values, err := readValues(path)
		if err != nil {
			d.log.Warn("skipping %s: %v", path, err)
			continue
		}
		out[domain.CreateCombinedID(d.cfg.ID, raw)] = d.item(raw, path, values)
	}
	return out, nil
}

func (d *Datasource) find(raw string) (string, bool) {
	for _, ext := range extensions {
		path := filepath.Join(d.cfg.Dir, raw+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

func (d *Datasource) item(raw, path string, values map[string]any) *domain.Item {
	item := domain.NewItem(d.cfg.ID, raw, extraction.WrapItem(d.def, values))
	if lang, ok := values[LanguageKey].(string); ok {
		item.Language = lang
	}
	doc := Document{Path: path, Values: values}
	if status, ok := values[StatusKey].(bool); ok {
		item.Object = PublishableDocument{Document: doc, Published: status}
	} else {
		item.Object = doc
	}
	return item
}

// readValues decodes a JSON or YAML document. JSON is valid YAML.
func readValues(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}

// Watch reports item file changes until ctx is cancelled.
func (d *Datasource) Watch(ctx context.Context) (<-chan driven.ItemChange, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(d.cfg.Dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", d.cfg.Dir, err)
	}

	changes := make(chan driven.ItemChange)
	go func() {
		defer close(changes)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				change, ok := d.handleFsEvent(event)
				if !ok {
					continue
				}
				select {
				case changes <- change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.log.Warn("watcher error: %v", err)
			}
		}
	}()
	return changes, nil
}

// handleFsEvent maps a file event to an item change. Chmod events and
// non-item files are ignored.
func (d *Datasource) handleFsEvent(event fsnotify.Event) (driven.ItemChange, bool) {
	raw, ok := isItemFile(filepath.Base(event.Name))
	if !ok {
		return driven.ItemChange{}, false
	}
	change := driven.ItemChange{DatasourceID: d.cfg.ID, IDs: []string{raw}}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		change.Type = driven.ChangeDeleted
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
			return driven.ItemChange{}, false
		}
		change.Type = driven.ChangeInserted
	case event.Has(fsnotify.Write):
		change.Type = driven.ChangeUpdated
	default:
		return driven.ItemChange{}, false
	}
	return change, true
}
