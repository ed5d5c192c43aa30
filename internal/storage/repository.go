// ABOUTME: Repository interface for the local fitness data store.
// ABOUTME: Defines the contract the store, sync and log layers depend on.
package storage

import (
	"context"
	"time"

	"github.com/harperreed/lift/internal/models"
)

// Repository defines the storage interface for exercises, workouts, routines and logs.
// This interface allows swapping implementations (e.g., for testing).
type Repository interface {
	// Entity reads
	PullExercise(ctx context.Context, id string) (*models.Exercise, error)
	PullExercises(ctx context.Context, f Filter) ([]*models.Exercise, error)
	PullWorkout(ctx context.Context, id string, deep bool) (*models.Workout, error)
	PullWorkouts(ctx context.Context, f Filter, deep bool) ([]*models.Workout, error)
	PullRoutine(ctx context.Context, id string, deep bool) (*models.Routine, error)
	PullRoutines(ctx context.Context, f Filter, deep bool) ([]*models.Routine, error)
	ResolveID(ctx context.Context, kind models.Kind, idOrPrefix string) (string, error)

	// Entity writes
	SaveExercises(ctx context.Context, exercises []*models.Exercise, opts SaveOptions) (SaveResult, error)
	SaveWorkouts(ctx context.Context, workouts []*models.Workout, opts SaveOptions) (SaveResult, error)
	SaveRoutines(ctx context.Context, routines []*models.Routine, opts SaveOptions) (SaveResult, error)
	Delete(ctx context.Context, kind models.Kind, id string, tombstone bool) (*models.Tombstone, error)

	// Sync bookkeeping
	Purge(ctx context.Context, kind models.Kind, ids []string) error
	AddTombstone(ctx context.Context, kind models.Kind, ts models.Tombstone) error
	ListTombstones(ctx context.Context, kind models.Kind) ([]models.Tombstone, error)
	RemoveTombstones(ctx context.Context, kind models.Kind, tombstones []models.Tombstone) error
	FinalizeSync(ctx context.Context, f Finalization) error

	// User settings
	GetUser(ctx context.Context) (*models.User, error)
	SetActiveRoutine(ctx context.Context, routineID string) error
	SetLastLogDate(ctx context.Context, date string) error
	SetUnits(ctx context.Context, units models.Units) error

	// Workout logs
	GetLog(ctx context.Context, date string) (*models.WorkoutLog, error)
	ListLogs(ctx context.Context, from, to string) ([]*models.WorkoutLog, error)
	InsertLogIfAbsent(ctx context.Context, l *models.WorkoutLog) (bool, error)
	UpdateLog(ctx context.Context, l *models.WorkoutLog) error

	// Lifecycle
	Now() time.Time
	Close() error
}

var _ Repository = (*DB)(nil)
