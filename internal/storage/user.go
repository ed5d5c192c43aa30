// ABOUTME: Singleton user row: active routine, log and sync bookkeeping, units.
// ABOUTME: The row is created with the schema and never deleted.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/harperreed/lift/internal/models"
)

// GetUser reads the singleton user row.
func (d *DB) GetUser(ctx context.Context) (*models.User, error) {
	var u models.User
	var active sql.NullString
	var lastSync int64
	var units string
	err := d.db.QueryRowContext(ctx,
		"SELECT active_routine_id, last_log_date, last_sync_date, units FROM user WHERE id = 1").
		Scan(&active, &u.LastLogDate, &lastSync, &units)
	if err != nil {
		return nil, wrap("get user", err)
	}
	u.ActiveRoutineID = active.String
	u.LastSyncDate = models.FromMillis(lastSync)
	u.Units = models.Units(units)
	return &u, nil
}

// SetActiveRoutine selects the routine the daily log follows; "" clears it.
func (d *DB) SetActiveRoutine(ctx context.Context, routineID string) error {
	var arg any
	if routineID != "" {
		found, err := existingIDs(ctx, d.db, "routines", []string{routineID})
		if err != nil {
			return wrap("set active routine", err)
		}
		if !found[routineID] {
			return wrap("set active routine", fmt.Errorf("%w: routine %s", ErrNotFound, routineID))
		}
		arg = routineID
	}
	_, err := d.db.ExecContext(ctx, "UPDATE user SET active_routine_id = ? WHERE id = 1", arg)
	return wrap("set active routine", err)
}

// SetLastLogDate records the last day the log was brought up to date.
func (d *DB) SetLastLogDate(ctx context.Context, date string) error {
	_, err := d.db.ExecContext(ctx, "UPDATE user SET last_log_date = ? WHERE id = 1", date)
	return wrap("set last log date", err)
}

// SetUnits stores the preferred measurement system.
func (d *DB) SetUnits(ctx context.Context, units models.Units) error {
	if units != models.UnitsMetric && units != models.UnitsImperial {
		return &models.ValidationError{Field: "units", Reason: fmt.Sprintf("unknown units %q", units)}
	}
	_, err := d.db.ExecContext(ctx, "UPDATE user SET units = ? WHERE id = 1", string(units))
	return wrap("set units", err)
}
