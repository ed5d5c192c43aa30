// ABOUTME: Workout persistence with ordered exercise links in exercise_instances.
// ABOUTME: Deep pulls hydrate exercises with one extra bulk query.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/harperreed/lift/internal/models"
)

// PullWorkout loads one workout by id, hydrating its exercises when deep is set.
func (d *DB) PullWorkout(ctx context.Context, id string, deep bool) (*models.Workout, error) {
	workouts, err := d.PullWorkouts(ctx, IDs(id), deep)
	if err != nil {
		return nil, err
	}
	if len(workouts) == 0 {
		return nil, &Error{Op: "pull workout", Err: fmt.Errorf("%w: workout %s", ErrNotFound, id)}
	}
	return workouts[0], nil
}

// PullWorkouts loads every workout matching f, ordered by name.
// Shallow loads carry exercise ids only.
func (d *DB) PullWorkouts(ctx context.Context, f Filter, deep bool) ([]*models.Workout, error) {
	workouts, err := d.selectWorkouts(ctx, d.db, f)
	if err != nil {
		return nil, wrap("pull workouts", err)
	}
	if deep {
		if err := d.hydrateWorkouts(ctx, d.db, workouts); err != nil {
			return nil, wrap("pull workouts", err)
		}
	}
	return workouts, nil
}

// selectWorkouts reads workouts and their ordered exercise ids in one joined query.
func (d *DB) selectWorkouts(ctx context.Context, q querier, f Filter) ([]*models.Workout, error) {
	where, args := f.restrict("w", "workouts")
	query := `
		SELECT w.id, w.name, w.dirty, w.last_modified, ei.exercise_id
		FROM workouts w
		LEFT JOIN exercise_instances ei ON ei.workout_id = w.id` + where + `
		ORDER BY w.name COLLATE NOCASE, w.id, ei.position`

	rows, err := d.queryRows(ctx, q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query workouts: %w", err)
	}
	defer rows.Close()

	var workouts []*models.Workout
	var cur *models.Workout
	for rows.Next() {
		var id, name string
		var dirty int
		var lastModified int64
		var exerciseID sql.NullString
		if err := rows.Scan(&id, &name, &dirty, &lastModified, &exerciseID); err != nil {
			return nil, fmt.Errorf("scan workout: %w", err)
		}
		if cur == nil || cur.ID != id {
			cur = &models.Workout{
				ID:           id,
				Name:         name,
				ExerciseIDs:  []string{},
				LastModified: models.FromMillis(lastModified),
				Dirty:        dirty == 1,
			}
			workouts = append(workouts, cur)
		}
		if exerciseID.Valid {
			cur.ExerciseIDs = append(cur.ExerciseIDs, exerciseID.String)
		}
	}
	return workouts, rows.Err()
}

// hydrateWorkouts fills Exercises for every workout using one bulk query.
func (d *DB) hydrateWorkouts(ctx context.Context, q querier, workouts []*models.Workout) error {
	var ids []string
	seen := make(map[string]bool)
	for _, w := range workouts {
		for _, id := range w.ExerciseIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	byID, err := d.loadExercisesByIDs(ctx, q, ids)
	if err != nil {
		return err
	}
	for _, w := range workouts {
		w.Exercises = make([]*models.Exercise, 0, len(w.ExerciseIDs))
		for _, id := range w.ExerciseIDs {
			w.Exercises = append(w.Exercises, byID[id])
		}
	}
	return nil
}

// SaveWorkouts upserts a batch of workouts and replaces their exercise links in one transaction.
func (d *DB) SaveWorkouts(ctx context.Context, workouts []*models.Workout, opts SaveOptions) (SaveResult, error) {
	var result SaveResult
	for _, w := range workouts {
		if err := w.Validate(); err != nil {
			return result, fmt.Errorf("save workout %s: %w", w.ID, err)
		}
	}

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var refs []string
		for _, w := range workouts {
			refs = append(refs, w.ExerciseIDs...)
		}
		found, err := existingIDs(ctx, tx, "exercises", refs)
		if err != nil {
			return err
		}

		upsert, err := tx.PrepareContext(ctx, upsertSQL("workouts", "id, name, dirty, last_modified",
			"name = excluded.name, dirty = excluded.dirty, last_modified = excluded.last_modified",
			opts.LocalOnly))
		if err != nil {
			return fmt.Errorf("prepare workout upsert: %w", err)
		}
		defer upsert.Close()

		unlink, err := tx.PrepareContext(ctx, "DELETE FROM exercise_instances WHERE workout_id = ?")
		if err != nil {
			return fmt.Errorf("prepare link delete: %w", err)
		}
		defer unlink.Close()

		link, err := tx.PrepareContext(ctx,
			"INSERT INTO exercise_instances (workout_id, position, exercise_id) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare link insert: %w", err)
		}
		defer link.Close()

		for _, w := range workouts {
			ids, err := resolveRefs(w.ExerciseIDs, found, opts.DropDangling, "exercise")
			if err != nil {
				return fmt.Errorf("save workout %s: %w", w.ID, err)
			}

			d.stamp(&w.LastModified, opts)
			res, err := upsert.ExecContext(ctx, w.ID, w.Name, boolInt(!opts.LocalOnly), models.ToMillis(w.LastModified))
			if err != nil {
				return fmt.Errorf("upsert workout %s: %w", w.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("upsert workout %s: %w", w.ID, err)
			}
			result.record(w.ID, n > 0)
			if n == 0 {
				continue
			}

			if _, err := unlink.ExecContext(ctx, w.ID); err != nil {
				return fmt.Errorf("clear links of workout %s: %w", w.ID, err)
			}
			for pos, exerciseID := range ids {
				if _, err := link.ExecContext(ctx, w.ID, pos, exerciseID); err != nil {
					return fmt.Errorf("link exercise %s to workout %s: %w", exerciseID, w.ID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return SaveResult{}, wrap("save workouts", err)
	}

	for _, w := range workouts {
		w.Dirty = !opts.LocalOnly
	}
	return result, nil
}

// resolveRefs checks ids against found, dropping the missing ones when drop is set.
func resolveRefs(ids []string, found map[string]bool, drop bool, kind string) ([]string, error) {
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if found[id] {
			kept = append(kept, id)
			continue
		}
		if !drop {
			return nil, missing(kind, id)
		}
	}
	return kept, nil
}

// ResolveID finds the full id of an entity from an id prefix.
func (d *DB) ResolveID(ctx context.Context, kind models.Kind, idOrPrefix string) (string, error) {
	t, ok := kindTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown kind %q", kind)
	}
	if len(idOrPrefix) == 36 && strings.Count(idOrPrefix, "-") == 4 {
		return idOrPrefix, nil
	}

	query := fmt.Sprintf(`SELECT id FROM %s WHERE id LIKE ? || '%%'`, t.entity)
	rows, err := d.db.QueryContext(ctx, query, idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("resolve %s ID: %w", kind, err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan %s ID: %w", kind, err)
		}
		matches = append(matches, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve %s ID: %w", kind, err)
	}

	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s %s", ErrNotFound, kind, idOrPrefix)
	}
	if len(matches) > 1 {
		return "", fmt.Errorf("ambiguous prefix %s: matches multiple records", idOrPrefix)
	}

	return matches[0], nil
}
