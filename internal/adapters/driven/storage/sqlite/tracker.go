package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
)

// trackerBatchSize bounds the number of ids bound to one statement.
const trackerBatchSize = 500

// tracker implements driven.Tracker on the tracker_items table.
// Every change gets the next value of a per-index counter, so pending
// items come back in the order they became pending.
type tracker struct {
	store *Store
}

var _ driven.Tracker = (*tracker)(nil)

// TrackItemsInserted starts tracking new items as pending.
func (t *tracker) TrackItemsInserted(ctx context.Context, indexID string, ids []string) error {
	return t.inTx(ctx, indexID, func(tx *sql.Tx, changed int64) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO tracker_items (index_id, item_id, datasource_id, changed, pending)
			VALUES (?, ?, ?, ?, 1)
			ON CONFLICT(index_id, item_id) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for _, id := range ids {
			ds, _ := domain.SplitCombinedID(id)
			if _, err := stmt.ExecContext(ctx, indexID, id, ds, changed); err != nil {
				return fmt.Errorf("tracking item %s: %w", id, err)
			}
		}
		return nil
	})
}

// TrackItemsUpdated marks tracked items as pending again. Items that are
// already pending keep their position.
func (t *tracker) TrackItemsUpdated(ctx context.Context, indexID string, ids []string) error {
	return t.inTx(ctx, indexID, func(tx *sql.Tx, changed int64) error {
		for _, batch := range batches(ids) {
			args := append([]any{changed, indexID}, stringArgs(batch)...)
			_, err := tx.ExecContext(ctx, `
				UPDATE tracker_items SET pending = 1, changed = ?
				WHERE index_id = ? AND pending = 0 AND item_id IN (`+placeholders(len(batch))+`)
			`, args...)
			if err != nil {
				return fmt.Errorf("marking items updated: %w", err)
			}
		}
		return nil
	})
}

// TrackItemsDeleted stops tracking items.
func (t *tracker) TrackItemsDeleted(ctx context.Context, indexID string, ids []string) error {
	for _, batch := range batches(ids) {
		args := append([]any{indexID}, stringArgs(batch)...)
		_, err := t.store.db.ExecContext(ctx,
			"DELETE FROM tracker_items WHERE index_id = ? AND item_id IN ("+placeholders(len(batch))+")", args...)
		if err != nil {
			return fmt.Errorf("deleting tracked items: %w", err)
		}
	}
	return nil
}

// TrackAllItemsUpdated marks every tracked item of the index as pending.
func (t *tracker) TrackAllItemsUpdated(ctx context.Context, indexID string) error {
	return t.inTx(ctx, indexID, func(tx *sql.Tx, changed int64) error {
		_, err := tx.ExecContext(ctx,
			"UPDATE tracker_items SET pending = 1, changed = ? WHERE index_id = ? AND pending = 0",
			changed, indexID)
		if err != nil {
			return fmt.Errorf("marking all items updated: %w", err)
		}
		return nil
	})
}

// RemainingItems returns up to limit pending ids, oldest change first.
func (t *tracker) RemainingItems(ctx context.Context, indexID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := t.store.db.QueryContext(ctx, `
		SELECT item_id FROM tracker_items
		WHERE index_id = ? AND pending = 1
		ORDER BY changed, item_id
		LIMIT ?
	`, indexID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying remaining items: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning item id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating remaining items: %w", err)
	}
	return ids, nil
}

// MarkIndexed marks items as indexed.
func (t *tracker) MarkIndexed(ctx context.Context, indexID string, ids []string) error {
	for _, batch := range batches(ids) {
		args := append([]any{indexID}, stringArgs(batch)...)
		_, err := t.store.db.ExecContext(ctx,
			"UPDATE tracker_items SET pending = 0 WHERE index_id = ? AND item_id IN ("+placeholders(len(batch))+")", args...)
		if err != nil {
			return fmt.Errorf("marking items indexed: %w", err)
		}
	}
	return nil
}

// Clear stops tracking every item of the index.
func (t *tracker) Clear(ctx context.Context, indexID string) error {
	if _, err := t.store.db.ExecContext(ctx, "DELETE FROM tracker_items WHERE index_id = ?", indexID); err != nil {
		return fmt.Errorf("clearing tracker for %s: %w", indexID, err)
	}
	return nil
}

// Status returns indexed and total counts.
func (t *tracker) Status(ctx context.Context, indexID string) (domain.TrackerStatus, error) {
	status := domain.TrackerStatus{IndexID: indexID}
	err := t.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN pending = 0 THEN 1 ELSE 0 END), 0)
		FROM tracker_items WHERE index_id = ?
	`, indexID).Scan(&status.Total, &status.Indexed)
	if err != nil {
		return status, fmt.Errorf("querying tracker status: %w", err)
	}
	return status, nil
}

// inTx runs fn in a transaction with the next change counter of the index.
func (t *tracker) inTx(ctx context.Context, indexID string, fn func(tx *sql.Tx, changed int64) error) error {
	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var changed int64
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(changed), 0) + 1 FROM tracker_items WHERE index_id = ?", indexID).Scan(&changed)
	if err != nil {
		return fmt.Errorf("reading change counter: %w", err)
	}
	if err := fn(tx, changed); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tracker change: %w", err)
	}
	return nil
}

// batches splits ids into chunks of at most trackerBatchSize.
func batches(ids []string) [][]string {
	var out [][]string
	for len(ids) > trackerBatchSize {
		out = append(out, ids[:trackerBatchSize])
		ids = ids[trackerBatchSize:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
