// Package memory provides a datasource over property maps held in memory.
// Changes made through Put and Delete are pushed to watchers.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/extraction"
)

// Verify interface compliance.
var (
	_ driven.Datasource     = (*Datasource)(nil)
	_ driven.ChangeNotifier = (*Datasource)(nil)
)

// Record is one stored item.
type Record struct {
	// Values is the property map, shaped after the datasource definition.
	Values map[string]any

	// Language is the item language. Empty means none.
	Language string

	// Published is the publication status. Nil means the item has none.
	Published *bool
}

// Object is the original object attached to loaded items.
type Object struct {
	Values map[string]any
}

// PublishableObject is attached to items that carry a publication status.
type PublishableObject struct {
	Object
	Published bool
}

// IsPublished implements domain.Publishable.
func (o PublishableObject) IsPublished() bool { return o.Published }

type subscriber struct {
	ch  chan driven.ItemChange
	ctx context.Context
}

// Datasource is an in-memory implementation of driven.Datasource.
type Datasource struct {
	id         string
	entityType string
	def        *domain.DataDefinition

	mu      sync.RWMutex
	records map[string]Record

	subMu sync.RWMutex
	subs  map[*subscriber]struct{}
}

// New creates an empty datasource.
func New(id, entityType string, def *domain.DataDefinition) *Datasource {
	return &Datasource{
		id:         id,
		entityType: entityType,
		def:        def,
		records:    make(map[string]Record),
		subs:       make(map[*subscriber]struct{}),
	}
}

func (d *Datasource) ID() string                                  { return d.id }
func (d *Datasource) EntityType() string                          { return d.entityType }
func (d *Datasource) PropertyDefinitions() *domain.DataDefinition { return d.def }

// Put stores a record and notifies watchers of an insert or update.
func (d *Datasource) Put(rawID string, r Record) {
	d.mu.Lock()
	_, exists := d.records[rawID]
	d.records[rawID] = r
	d.mu.Unlock()

	change := driven.ChangeInserted
	if exists {
		change = driven.ChangeUpdated
	}
	d.notify(driven.ItemChange{DatasourceID: d.id, Type: change, IDs: []string{rawID}})
}

// Delete removes records and notifies watchers. Unknown ids are skipped.
func (d *Datasource) Delete(rawIDs ...string) {
	d.mu.Lock()
	var removed []string
	for _, id := range rawIDs {
		if _, ok := d.records[id]; ok {
			delete(d.records, id)
			removed = append(removed, id)
		}
	}
	d.mu.Unlock()

	if len(removed) > 0 {
		d.notify(driven.ItemChange{DatasourceID: d.id, Type: driven.ChangeDeleted, IDs: removed})
	}
}

// LoadItems wraps the stored property maps. Unknown ids are absent from the result.
func (d *Datasource) LoadItems(_ context.Context, ids []string) (map[string]*domain.Item, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]*domain.Item, len(ids))
	for _, raw := range ids {
		r, ok := d.records[raw]
		if !ok {
			continue
		}
		item := domain.NewItem(d.id, raw, extraction.WrapItem(d.def, r.Values))
		item.Language = r.Language
		if r.Published != nil {
			item.Object = PublishableObject{Object: Object{Values: r.Values}, Published: *r.Published}
		} else {
			item.Object = Object{Values: r.Values}
		}
		out[item.ID] = item
	}
	return out, nil
}

// ItemIDs returns all raw ids in sorted order.
func (d *Datasource) ItemIDs(context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.records))
	for id := range d.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Watch returns a channel receiving every change until ctx is cancelled.
func (d *Datasource) Watch(ctx context.Context) (<-chan driven.ItemChange, error) {
	sub := &subscriber{ch: make(chan driven.ItemChange, 16), ctx: ctx}

	d.subMu.Lock()
	d.subs[sub] = struct{}{}
	d.subMu.Unlock()

	go func() {
		<-ctx.Done()
		d.subMu.Lock()
		delete(d.subs, sub)
		close(sub.ch)
		d.subMu.Unlock()
	}()
	return sub.ch, nil
}

// notify delivers a change to every watcher. The read lock keeps
// subscribers from being closed mid-send.
func (d *Datasource) notify(change driven.ItemChange) {
	d.subMu.RLock()
	defer d.subMu.RUnlock()
	for sub := range d.subs {
		select {
		case sub.ch <- change:
		case <-sub.ctx.Done():
		}
	}
}
