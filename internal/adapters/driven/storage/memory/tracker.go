package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
)

// Ensure Tracker implements the interface.
var _ driven.Tracker = (*Tracker)(nil)

// trackedItem is the tracking state of one item.
type trackedItem struct {
	pending bool
	changed uint64
}

// Tracker is an in-memory implementation of driven.Tracker.
// Pending items are returned in the order they became pending.
type Tracker struct {
	mu      sync.Mutex
	clock   uint64
	indexes map[string]map[string]*trackedItem
}

// NewTracker creates a new in-memory tracker.
func NewTracker() *Tracker {
	return &Tracker{
		indexes: make(map[string]map[string]*trackedItem),
	}
}

func (t *Tracker) items(indexID string) map[string]*trackedItem {
	items, ok := t.indexes[indexID]
	if !ok {
		items = make(map[string]*trackedItem)
		t.indexes[indexID] = items
	}
	return items
}

// tick returns a new change timestamp. Caller holds mu.
func (t *Tracker) tick() uint64 {
	t.clock++
	return t.clock
}

// TrackItemsInserted starts tracking new items as pending. Items already
// tracked are left alone.
func (t *Tracker) TrackItemsInserted(_ context.Context, indexID string, ids []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	items := t.items(indexID)
	now := t.tick()
	for _, id := range ids {
		if _, ok := items[id]; !ok {
			items[id] = &trackedItem{pending: true, changed: now}
		}
	}
	return nil
}

// TrackItemsUpdated marks tracked items as pending again. Items that are
// already pending keep their position. Untracked ids are ignored.
func (t *Tracker) TrackItemsUpdated(_ context.Context, indexID string, ids []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	items := t.items(indexID)
	now := t.tick()
	for _, id := range ids {
		if item, ok := items[id]; ok && !item.pending {
			item.pending = true
			item.changed = now
		}
	}
	return nil
}

// TrackItemsDeleted stops tracking items.
func (t *Tracker) TrackItemsDeleted(_ context.Context, indexID string, ids []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	items := t.items(indexID)
	for _, id := range ids {
		delete(items, id)
	}
	return nil
}

// TrackAllItemsUpdated marks every tracked item of the index as pending.
func (t *Tracker) TrackAllItemsUpdated(_ context.Context, indexID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.tick()
	for _, item := range t.items(indexID) {
		if !item.pending {
			item.pending = true
			item.changed = now
		}
	}
	return nil
}

// RemainingItems returns up to limit pending ids, oldest change first.
func (t *Tracker) RemainingItems(_ context.Context, indexID string, limit int) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	items := t.items(indexID)
	pending := make([]string, 0, len(items))
	for id, item := range items {
		if item.pending {
			pending = append(pending, id)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		a, b := items[pending[i]], items[pending[j]]
		if a.changed != b.changed {
			return a.changed < b.changed
		}
		return pending[i] < pending[j]
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// MarkIndexed marks items as indexed. Untracked ids are ignored.
func (t *Tracker) MarkIndexed(_ context.Context, indexID string, ids []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	items := t.items(indexID)
	for _, id := range ids {
		if item, ok := items[id]; ok {
			item.pending = false
		}
	}
	return nil
}

// Clear stops tracking every item of the index.
func (t *Tracker) Clear(_ context.Context, indexID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.indexes, indexID)
	return nil
}

// Status returns indexed and total counts.
func (t *Tracker) Status(_ context.Context, indexID string) (domain.TrackerStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	status := domain.TrackerStatus{IndexID: indexID}
	for _, item := range t.indexes[indexID] {
		status.Total++
		if !item.pending {
			status.Indexed++
		}
	}
	return status, nil
}
