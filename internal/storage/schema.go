// ABOUTME: SQLite schema definition and initialization.
// ABOUTME: Entity tables, ordered link tables, tombstone outboxes, logs and the user singleton.
package storage

import "github.com/harperreed/lift/internal/models"

// tables names the row, link and tombstone tables owned by each entity kind.
type tables struct {
	entity    string
	tombstone string
}

var kindTables = map[models.Kind]tables{
	models.KindExercise: {entity: "exercises", tombstone: "deleted_exercises"},
	models.KindWorkout:  {entity: "workouts", tombstone: "deleted_workouts"},
	models.KindRoutine:  {entity: "routines", tombstone: "deleted_routines"},
}

// initSchema creates or updates the database schema.
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exercises (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		volume_type TEXT NOT NULL,
		intensity_types TEXT NOT NULL DEFAULT '',
		sets TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		categories TEXT NOT NULL DEFAULT '',
		dirty INTEGER NOT NULL DEFAULT 1,
		last_modified INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workouts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		dirty INTEGER NOT NULL DEFAULT 1,
		last_modified INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exercise_instances (
		workout_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		exercise_id TEXT NOT NULL,
		PRIMARY KEY (workout_id, position),
		FOREIGN KEY (workout_id) REFERENCES workouts(id) ON DELETE CASCADE,
		FOREIGN KEY (exercise_id) REFERENCES exercises(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS routines (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		dirty INTEGER NOT NULL DEFAULT 1,
		last_modified INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workout_instances (
		routine_id TEXT NOT NULL,
		position INTEGER NOT NULL CHECK (position BETWEEN 0 AND 6),
		workout_id TEXT NOT NULL,
		PRIMARY KEY (routine_id, position),
		FOREIGN KEY (routine_id) REFERENCES routines(id) ON DELETE CASCADE,
		FOREIGN KEY (workout_id) REFERENCES workouts(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS workout_logs (
		date TEXT PRIMARY KEY,
		routine_name TEXT NOT NULL DEFAULT '',
		workout_name TEXT NOT NULL DEFAULT '',
		exercises_json TEXT NOT NULL DEFAULT '{}',
		completion_json TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS deleted_exercises (
		id TEXT PRIMARY KEY,
		deleted_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deleted_workouts (
		id TEXT PRIMARY KEY,
		deleted_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deleted_routines (
		id TEXT PRIMARY KEY,
		deleted_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		active_routine_id TEXT REFERENCES routines(id) ON DELETE SET NULL,
		last_log_date TEXT NOT NULL DEFAULT '',
		last_sync_date INTEGER NOT NULL DEFAULT 0,
		units TEXT NOT NULL DEFAULT 'metric'
	);

	INSERT OR IGNORE INTO user (id) VALUES (1);

	CREATE INDEX IF NOT EXISTS idx_exercises_dirty ON exercises(dirty);
	CREATE INDEX IF NOT EXISTS idx_workouts_dirty ON workouts(dirty);
	CREATE INDEX IF NOT EXISTS idx_routines_dirty ON routines(dirty);
	CREATE INDEX IF NOT EXISTS idx_exercise_instances_exercise ON exercise_instances(exercise_id);
	CREATE INDEX IF NOT EXISTS idx_workout_instances_workout ON workout_instances(workout_id);
	`

	_, err := d.db.Exec(schema)
	return err
}
