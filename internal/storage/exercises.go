// ABOUTME: Exercise persistence: bulk pulls and transactional batch saves.
// ABOUTME: Remote-origin saves are last-write-wins gated and never mark rows dirty.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/lift/internal/models"
)

// SaveOptions controls how a batch save stamps and flags rows.
type SaveOptions struct {
	// OverwriteTimestamp stamps every entity with the store clock before writing.
	OverwriteTimestamp bool
	// LocalOnly marks a remote-origin write: rows are stored clean and an incoming
	// row older than the stored one is skipped.
	LocalOnly bool
	// DropDangling removes references to entities that are not stored locally
	// instead of failing with ErrMissingReference.
	DropDangling bool
}

// SaveResult reports which entities a batch save wrote.
type SaveResult struct {
	Applied []string
	Skipped []string // superseded by a newer stored row
}

func (r *SaveResult) record(id string, applied bool) {
	if applied {
		r.Applied = append(r.Applied, id)
	} else {
		r.Skipped = append(r.Skipped, id)
	}
}

const exerciseColumns = `id, name, volume_type, intensity_types, sets, notes, categories, dirty, last_modified`

// upsertSQL writes a row, updating in place only when the gate allows it.
// The gate is only armed for remote-origin writes.
func upsertSQL(table, columns, updates string, gated bool) string {
	n := 1
	for _, c := range columns {
		if c == ',' {
			n++
		}
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		table, columns, placeholders(n), updates)
	if gated {
		q += fmt.Sprintf(" WHERE excluded.last_modified >= %s.last_modified", table)
	}
	return q
}

// PullExercise loads one exercise by id.
func (d *DB) PullExercise(ctx context.Context, id string) (*models.Exercise, error) {
	exercises, err := d.PullExercises(ctx, IDs(id))
	if err != nil {
		return nil, err
	}
	if len(exercises) == 0 {
		return nil, &Error{Op: "pull exercise", Err: fmt.Errorf("%w: exercise %s", ErrNotFound, id)}
	}
	return exercises[0], nil
}

// PullExercises loads every exercise matching f, ordered by name.
func (d *DB) PullExercises(ctx context.Context, f Filter) ([]*models.Exercise, error) {
	query := `SELECT ` + exerciseColumns + ` FROM exercises`
	if f.Clause != "" {
		query += " WHERE " + f.Clause
	}
	query += " ORDER BY name COLLATE NOCASE, id"

	exercises, err := d.selectExercises(ctx, d.db, query, f.Args...)
	if err != nil {
		return nil, wrap("pull exercises", err)
	}
	return exercises, nil
}

// loadExercisesByIDs fetches the given exercises in one query, keyed by id.
func (d *DB) loadExercisesByIDs(ctx context.Context, q querier, ids []string) (map[string]*models.Exercise, error) {
	byID := make(map[string]*models.Exercise, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	query := `SELECT ` + exerciseColumns + ` FROM exercises WHERE id IN (` + placeholders(len(ids)) + `)`
	exercises, err := d.selectExercises(ctx, q, query, stringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	for _, e := range exercises {
		byID[e.ID] = e
	}
	return byID, nil
}

func (d *DB) selectExercises(ctx context.Context, q querier, query string, args ...any) ([]*models.Exercise, error) {
	rows, err := d.queryRows(ctx, q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}
	defer rows.Close()

	var exercises []*models.Exercise
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		exercises = append(exercises, e)
	}
	return exercises, rows.Err()
}

// scanExercise scans one exercises row.
func scanExercise(rows *sql.Rows) (*models.Exercise, error) {
	var raw models.RawExercise
	var dirty int
	err := rows.Scan(&raw.ID, &raw.Name, &raw.VolumeType, &raw.IntensityTypes, &raw.Sets,
		&raw.Notes, &raw.Categories, &dirty, &raw.LastModified)
	if err != nil {
		return nil, fmt.Errorf("scan exercise: %w", err)
	}
	e, err := models.ExerciseFromRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("decode exercise %s: %w", raw.ID, err)
	}
	e.Dirty = dirty == 1
	return e, nil
}

// SaveExercises upserts a batch of exercises in one transaction.
func (d *DB) SaveExercises(ctx context.Context, exercises []*models.Exercise, opts SaveOptions) (SaveResult, error) {
	var result SaveResult
	for _, e := range exercises {
		if opts.LocalOnly {
			e.MigrateSets()
		}
		if err := e.Validate(); err != nil {
			return result, fmt.Errorf("save exercise %s: %w", e.ID, err)
		}
	}

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		upsert, err := tx.PrepareContext(ctx, upsertSQL("exercises", exerciseColumns,
			`name = excluded.name, volume_type = excluded.volume_type,
			intensity_types = excluded.intensity_types, sets = excluded.sets,
			notes = excluded.notes, categories = excluded.categories,
			dirty = excluded.dirty, last_modified = excluded.last_modified`, opts.LocalOnly))
		if err != nil {
			return fmt.Errorf("prepare exercise upsert: %w", err)
		}
		defer upsert.Close()

		for _, e := range exercises {
			d.stamp(&e.LastModified, opts)
			raw := e.ToRaw()
			res, err := upsert.ExecContext(ctx, raw.ID, raw.Name, raw.VolumeType, raw.IntensityTypes,
				raw.Sets, raw.Notes, raw.Categories, boolInt(!opts.LocalOnly), raw.LastModified)
			if err != nil {
				return fmt.Errorf("upsert exercise %s: %w", e.ID, err)
			}
			applied, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("upsert exercise %s: %w", e.ID, err)
			}
			result.record(e.ID, applied > 0)
		}
		return nil
	})
	if err != nil {
		return SaveResult{}, wrap("save exercises", err)
	}

	for _, e := range exercises {
		e.Dirty = !opts.LocalOnly
	}
	return result, nil
}

// stamp applies the store clock when the save overwrites timestamps.
func (d *DB) stamp(ts *time.Time, opts SaveOptions) {
	if opts.OverwriteTimestamp || ts.IsZero() {
		*ts = d.Now()
	} else {
		*ts = models.Truncate(*ts)
	}
}

// existingIDs returns the subset of ids present in table.
func existingIDs(ctx context.Context, q querier, table string, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	query := fmt.Sprintf("SELECT id FROM %s WHERE id IN (%s)", table, placeholders(len(ids)))
	rows, err := q.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("check %s references: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", table, err)
		}
		found[id] = true
	}
	return found, rows.Err()
}
