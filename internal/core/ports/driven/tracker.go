package driven

import (
	"context"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

// Tracker records which items of an index still need indexing.
// Item ids are combined ids ("datasource|raw").
type Tracker interface {
	// TrackItemsInserted starts tracking new items as pending.
	TrackItemsInserted(ctx context.Context, indexID string, ids []string) error

	// TrackItemsUpdated marks items as pending again.
	TrackItemsUpdated(ctx context.Context, indexID string, ids []string) error

	// TrackItemsDeleted stops tracking items.
	TrackItemsDeleted(ctx context.Context, indexID string, ids []string) error

	// TrackAllItemsUpdated marks every tracked item of the index as pending.
	TrackAllItemsUpdated(ctx context.Context, indexID string) error

	// RemainingItems returns up to limit pending ids in tracking order.
	// A limit of zero or less returns all.
	RemainingItems(ctx context.Context, indexID string, limit int) ([]string, error)

	// MarkIndexed marks items as indexed.
	MarkIndexed(ctx context.Context, indexID string, ids []string) error

	// Clear stops tracking every item of the index.
	Clear(ctx context.Context, indexID string) error

	// Status returns indexed and total counts.
	Status(ctx context.Context, indexID string) (domain.TrackerStatus, error)
}
