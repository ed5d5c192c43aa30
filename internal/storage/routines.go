// ABOUTME: Routine persistence with weekday workout links in workout_instances.
// ABOUTME: Deep pulls hydrate workouts and their exercises in three queries total.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/harperreed/lift/internal/models"
)

// PullRoutine loads one routine by id. Deep loads hydrate workouts and their exercises.
func (d *DB) PullRoutine(ctx context.Context, id string, deep bool) (*models.Routine, error) {
	routines, err := d.PullRoutines(ctx, IDs(id), deep)
	if err != nil {
		return nil, err
	}
	if len(routines) == 0 {
		return nil, &Error{Op: "pull routine", Err: fmt.Errorf("%w: routine %s", ErrNotFound, id)}
	}
	return routines[0], nil
}

// PullRoutines loads every routine matching f, ordered by name.
func (d *DB) PullRoutines(ctx context.Context, f Filter, deep bool) ([]*models.Routine, error) {
	where, args := f.restrict("r", "routines")
	query := `
		SELECT r.id, r.name, r.dirty, r.last_modified, wi.position, wi.workout_id
		FROM routines r
		LEFT JOIN workout_instances wi ON wi.routine_id = r.id` + where + `
		ORDER BY r.name COLLATE NOCASE, r.id, wi.position`

	routines, err := d.selectRoutines(ctx, query, args...)
	if err != nil {
		return nil, wrap("pull routines", err)
	}
	if !deep {
		return routines, nil
	}

	var ids []string
	seen := make(map[string]bool)
	for _, r := range routines {
		for _, id := range r.WorkoutIDSet() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return routines, nil
	}

	workouts, err := d.selectWorkouts(ctx, d.db, IDs(ids...))
	if err != nil {
		return nil, wrap("pull routines", err)
	}
	if err := d.hydrateWorkouts(ctx, d.db, workouts); err != nil {
		return nil, wrap("pull routines", err)
	}

	byID := make(map[string]*models.Workout, len(workouts))
	for _, w := range workouts {
		byID[w.ID] = w
	}
	for _, r := range routines {
		for day, id := range r.WorkoutIDs {
			if id != "" {
				r.Workouts[day] = byID[id]
			}
		}
	}
	return routines, nil
}

func (d *DB) selectRoutines(ctx context.Context, query string, args ...any) ([]*models.Routine, error) {
	rows, err := d.queryRows(ctx, d.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query routines: %w", err)
	}
	defer rows.Close()

	var routines []*models.Routine
	var cur *models.Routine
	for rows.Next() {
		var id, name string
		var dirty int
		var lastModified int64
		var position sql.NullInt64
		var workoutID sql.NullString
		if err := rows.Scan(&id, &name, &dirty, &lastModified, &position, &workoutID); err != nil {
			return nil, fmt.Errorf("scan routine: %w", err)
		}
		if cur == nil || cur.ID != id {
			cur = &models.Routine{
				ID:           id,
				Name:         name,
				LastModified: models.FromMillis(lastModified),
				Dirty:        dirty == 1,
			}
			routines = append(routines, cur)
		}
		if position.Valid && workoutID.Valid {
			cur.WorkoutIDs[position.Int64] = workoutID.String
		}
	}
	return routines, rows.Err()
}

// SaveRoutines upserts a batch of routines and replaces their weekday links in one transaction.
func (d *DB) SaveRoutines(ctx context.Context, routines []*models.Routine, opts SaveOptions) (SaveResult, error) {
	var result SaveResult
	for _, r := range routines {
		if r.ID == "" {
			return result, fmt.Errorf("save routine: %w", &models.ValidationError{Field: "id", Reason: "must not be empty"})
		}
	}

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var refs []string
		for _, r := range routines {
			refs = append(refs, r.WorkoutIDSet()...)
		}
		found, err := existingIDs(ctx, tx, "workouts", refs)
		if err != nil {
			return err
		}

		upsert, err := tx.PrepareContext(ctx, upsertSQL("routines", "id, name, dirty, last_modified",
			"name = excluded.name, dirty = excluded.dirty, last_modified = excluded.last_modified",
			opts.LocalOnly))
		if err != nil {
			return fmt.Errorf("prepare routine upsert: %w", err)
		}
		defer upsert.Close()

		unlink, err := tx.PrepareContext(ctx, "DELETE FROM workout_instances WHERE routine_id = ?")
		if err != nil {
			return fmt.Errorf("prepare link delete: %w", err)
		}
		defer unlink.Close()

		link, err := tx.PrepareContext(ctx,
			"INSERT INTO workout_instances (routine_id, position, workout_id) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare link insert: %w", err)
		}
		defer link.Close()

		for _, r := range routines {
			slots := r.WorkoutIDs
			for day, id := range slots {
				if id == "" || found[id] {
					continue
				}
				if !opts.DropDangling {
					return fmt.Errorf("save routine %s: %w", r.ID, missing("workout", id))
				}
				slots[day] = ""
			}

			d.stamp(&r.LastModified, opts)
			res, err := upsert.ExecContext(ctx, r.ID, r.Name, boolInt(!opts.LocalOnly), models.ToMillis(r.LastModified))
			if err != nil {
				return fmt.Errorf("upsert routine %s: %w", r.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("upsert routine %s: %w", r.ID, err)
			}
			result.record(r.ID, n > 0)
			if n == 0 {
				continue
			}

			if _, err := unlink.ExecContext(ctx, r.ID); err != nil {
				return fmt.Errorf("clear links of routine %s: %w", r.ID, err)
			}
			for day, workoutID := range slots {
				if workoutID == "" {
					continue
				}
				if _, err := link.ExecContext(ctx, r.ID, day, workoutID); err != nil {
					return fmt.Errorf("link workout %s to routine %s: %w", workoutID, r.ID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return SaveResult{}, wrap("save routines", err)
	}

	for _, r := range routines {
		r.Dirty = !opts.LocalOnly
	}
	return result, nil
}
