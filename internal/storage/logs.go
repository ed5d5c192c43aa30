// ABOUTME: WorkoutLog rows keyed by calendar date.
// ABOUTME: Exercise snapshots and completion are opaque JSON blobs keyed by exercise id.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harperreed/lift/internal/models"
)

const logColumns = `date, routine_name, workout_name, exercises_json, completion_json`

// GetLog reads the log for a date (YYYY-MM-DD).
func (d *DB) GetLog(ctx context.Context, date string) (*models.WorkoutLog, error) {
	row := d.db.QueryRowContext(ctx, "SELECT "+logColumns+" FROM workout_logs WHERE date = ?", date)
	l, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Op: "get log", Err: fmt.Errorf("%w: log %s", ErrNotFound, date)}
	}
	if err != nil {
		return nil, wrap("get log", err)
	}
	return l, nil
}

// ListLogs returns logs with from <= date <= to in date order. Empty bounds are open.
func (d *DB) ListLogs(ctx context.Context, from, to string) ([]*models.WorkoutLog, error) {
	query := "SELECT " + logColumns + " FROM workout_logs WHERE 1 = 1"
	var args []any
	if from != "" {
		query += " AND date >= ?"
		args = append(args, from)
	}
	if to != "" {
		query += " AND date <= ?"
		args = append(args, to)
	}
	query += " ORDER BY date"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("list logs", err)
	}
	defer rows.Close()

	var logs []*models.WorkoutLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, wrap("list logs", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list logs", err)
	}
	return logs, nil
}

// InsertLogIfAbsent writes l unless a log for its date exists. It reports whether l was written.
func (d *DB) InsertLogIfAbsent(ctx context.Context, l *models.WorkoutLog) (bool, error) {
	exercises, completion, err := encodeLog(l)
	if err != nil {
		return false, wrap("insert log", err)
	}
	res, err := d.db.ExecContext(ctx, `INSERT INTO workout_logs (`+logColumns+`)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT(date) DO NOTHING`,
		l.Date, l.RoutineName, l.WorkoutName, exercises, completion)
	if err != nil {
		return false, wrap("insert log", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("insert log", err)
	}
	return n > 0, nil
}

// UpdateLog overwrites an existing log.
func (d *DB) UpdateLog(ctx context.Context, l *models.WorkoutLog) error {
	exercises, completion, err := encodeLog(l)
	if err != nil {
		return wrap("update log", err)
	}
	res, err := d.db.ExecContext(ctx, `UPDATE workout_logs
		SET routine_name = ?, workout_name = ?, exercises_json = ?, completion_json = ?
		WHERE date = ?`, l.RoutineName, l.WorkoutName, exercises, completion, l.Date)
	if err != nil {
		return wrap("update log", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("update log", err)
	}
	if n == 0 {
		return &Error{Op: "update log", Err: fmt.Errorf("%w: log %s", ErrNotFound, l.Date)}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLog(row rowScanner) (*models.WorkoutLog, error) {
	var l models.WorkoutLog
	var exercises, completion string
	if err := row.Scan(&l.Date, &l.RoutineName, &l.WorkoutName, &exercises, &completion); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(exercises), &l.Exercises); err != nil {
		return nil, fmt.Errorf("decode log %s exercises: %w", l.Date, err)
	}
	if err := json.Unmarshal([]byte(completion), &l.Completion); err != nil {
		return nil, fmt.Errorf("decode log %s completion: %w", l.Date, err)
	}
	if l.Exercises == nil {
		l.Exercises = map[string]models.ExerciseSnapshot{}
	}
	if l.Completion == nil {
		l.Completion = map[string]models.Completion{}
	}
	return &l, nil
}

func encodeLog(l *models.WorkoutLog) (string, string, error) {
	exercises, err := json.Marshal(l.Exercises)
	if err != nil {
		return "", "", fmt.Errorf("encode exercises: %w", err)
	}
	completion, err := json.Marshal(l.Completion)
	if err != nil {
		return "", "", fmt.Errorf("encode completion: %w", err)
	}
	return string(exercises), string(completion), nil
}
