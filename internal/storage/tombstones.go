// ABOUTME: Local deletes, the per-kind tombstone outbox, and sync finalization.
// ABOUTME: Tombstones are removed only for the exact (id, deleted_at) the remote confirmed.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/lift/internal/models"
)

func tablesFor(kind models.Kind) (tables, error) {
	t, ok := kindTables[kind]
	if !ok {
		return tables{}, fmt.Errorf("unknown kind %q", kind)
	}
	return t, nil
}

// Delete removes an entity's row; links to it cascade but referenced entities stay.
// With tombstone set, the outbox row is written in the same transaction and returned.
func (d *DB) Delete(ctx context.Context, kind models.Kind, id string, tombstone bool) (*models.Tombstone, error) {
	op := "delete " + string(kind)
	t, err := tablesFor(kind)
	if err != nil {
		return nil, wrap(op, err)
	}

	var ts *models.Tombstone
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.entity), id)
		if err != nil {
			return fmt.Errorf("delete %s %s: %w", kind, id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete %s %s: %w", kind, id, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
		}
		if !tombstone {
			return nil
		}

		ts = &models.Tombstone{ID: id, DeletedAt: d.Now()}
		return addTombstone(ctx, tx, t.tombstone, *ts)
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	return ts, nil
}

// DeleteExercise removes an exercise locally without a tombstone.
func (d *DB) DeleteExercise(ctx context.Context, id string) error {
	_, err := d.Delete(ctx, models.KindExercise, id, false)
	return err
}

// DeleteWorkout removes a workout locally without a tombstone.
func (d *DB) DeleteWorkout(ctx context.Context, id string) error {
	_, err := d.Delete(ctx, models.KindWorkout, id, false)
	return err
}

// DeleteRoutine removes a routine locally without a tombstone.
func (d *DB) DeleteRoutine(ctx context.Context, id string) error {
	_, err := d.Delete(ctx, models.KindRoutine, id, false)
	return err
}

// Purge deletes every listed row of kind, ignoring ids that are already gone.
func (d *DB) Purge(ctx context.Context, kind models.Kind, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	op := "purge " + string(kind)
	t, err := tablesFor(kind)
	if err != nil {
		return wrap(op, err)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", t.entity, placeholders(len(ids)))
	if _, err := d.db.ExecContext(ctx, query, stringArgs(ids)...); err != nil {
		return wrap(op, err)
	}
	return nil
}

// AddTombstone records a delete that still has to reach the remote store.
func (d *DB) AddTombstone(ctx context.Context, kind models.Kind, ts models.Tombstone) error {
	t, err := tablesFor(kind)
	if err != nil {
		return wrap("add tombstone", err)
	}
	if ts.DeletedAt.IsZero() {
		ts.DeletedAt = d.Now()
	}
	return wrap("add tombstone", addTombstone(ctx, d.db, t.tombstone, ts))
}

func addTombstone(ctx context.Context, q querier, table string, ts models.Tombstone) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, deleted_at) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET deleted_at = excluded.deleted_at`, table)
	if _, err := q.ExecContext(ctx, query, ts.ID, models.ToMillis(ts.DeletedAt)); err != nil {
		return fmt.Errorf("insert tombstone %s: %w", ts.ID, err)
	}
	return nil
}

// ListTombstones returns every pending tombstone of kind, oldest first.
func (d *DB) ListTombstones(ctx context.Context, kind models.Kind) ([]models.Tombstone, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, wrap("list tombstones", err)
	}
	rows, err := d.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, deleted_at FROM %s ORDER BY deleted_at, id", t.tombstone))
	if err != nil {
		return nil, wrap("list tombstones", err)
	}
	defer rows.Close()

	var out []models.Tombstone
	for rows.Next() {
		var id string
		var deletedAt int64
		if err := rows.Scan(&id, &deletedAt); err != nil {
			return nil, wrap("list tombstones", fmt.Errorf("scan tombstone: %w", err))
		}
		out = append(out, models.Tombstone{ID: id, DeletedAt: models.FromMillis(deletedAt)})
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list tombstones", err)
	}
	return out, nil
}

// RemoveTombstones deletes the given tombstones. A tombstone rewritten since it
// was read carries a new deleted_at and survives.
func (d *DB) RemoveTombstones(ctx context.Context, kind models.Kind, tombstones []models.Tombstone) error {
	if len(tombstones) == 0 {
		return nil
	}
	t, err := tablesFor(kind)
	if err != nil {
		return wrap("remove tombstones", err)
	}
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		return removeTombstones(ctx, tx, t.tombstone, tombstones)
	})
	return wrap("remove tombstones", err)
}

func removeTombstones(ctx context.Context, tx *sql.Tx, table string, tombstones []models.Tombstone) error {
	if len(tombstones) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ? AND deleted_at = ?", table))
	if err != nil {
		return fmt.Errorf("prepare tombstone delete: %w", err)
	}
	defer stmt.Close()

	for _, ts := range tombstones {
		if _, err := stmt.ExecContext(ctx, ts.ID, models.ToMillis(ts.DeletedAt)); err != nil {
			return fmt.Errorf("delete tombstone %s: %w", ts.ID, err)
		}
	}
	return nil
}

// Finalization is the bookkeeping written at the end of a successful sync cycle.
type Finalization struct {
	LastSync  time.Time
	Clean     map[models.Kind][]models.Stamp     // rows the remote acknowledged
	Confirmed map[models.Kind][]models.Tombstone // deletes the remote applied
}

// FinalizeSync records a completed sync cycle in one transaction. A row is only
// marked clean if it still carries the acknowledged timestamp, so edits made
// during the cycle stay dirty.
func (d *DB) FinalizeSync(ctx context.Context, f Finalization) error {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE user SET last_sync_date = ? WHERE id = 1",
			models.ToMillis(f.LastSync)); err != nil {
			return fmt.Errorf("update last sync: %w", err)
		}

		for kind, stamps := range f.Clean {
			t, err := tablesFor(kind)
			if err != nil {
				return err
			}
			if err := markClean(ctx, tx, t.entity, stamps); err != nil {
				return err
			}
		}

		for kind, tombstones := range f.Confirmed {
			t, err := tablesFor(kind)
			if err != nil {
				return err
			}
			if err := removeTombstones(ctx, tx, t.tombstone, tombstones); err != nil {
				return err
			}
		}
		return nil
	})
	return wrap("finalize sync", err)
}

func markClean(ctx context.Context, tx *sql.Tx, table string, stamps []models.Stamp) error {
	if len(stamps) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf("UPDATE %s SET dirty = 0 WHERE id = ? AND last_modified = ?", table))
	if err != nil {
		return fmt.Errorf("prepare clean update: %w", err)
	}
	defer stmt.Close()

	for _, s := range stamps {
		if _, err := stmt.ExecContext(ctx, s.ID, models.ToMillis(s.LastModified)); err != nil {
			return fmt.Errorf("mark %s clean: %w", s.ID, err)
		}
	}
	return nil
}
