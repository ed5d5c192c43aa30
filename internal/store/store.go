// ABOUTME: Store is the interactive entry point for saving, loading and deleting entities.
// ABOUTME: Remote failures on delete fall back to the tombstone outbox and are never surfaced.
package store

import (
	"context"
	"time"

	"github.com/harperreed/lift/internal/logging"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/remote"
	"github.com/harperreed/lift/internal/storage"
)

// DefaultDeleteTimeout bounds the authoritative remote delete.
const DefaultDeleteTimeout = 10 * time.Second

// Options tunes a Store.
type Options struct {
	// DeleteTimeout bounds each remote delete. Zero uses DefaultDeleteTimeout.
	DeleteTimeout time.Duration
	// AfterWrite is called after every successful local write that still has
	// to reach the remote, e.g. to trigger a background sync.
	AfterWrite func()
}

// Store combines the local repository with the remote canonical store.
type Store struct {
	repo   storage.Repository
	remote remote.Remote
	logger *logging.Logger
	opts   Options
}

// New creates a Store. r may be nil when no remote is configured; deletes
// are then queued as tombstones.
func New(repo storage.Repository, r remote.Remote, logger *logging.Logger, opts Options) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.DeleteTimeout <= 0 {
		opts.DeleteTimeout = DefaultDeleteTimeout
	}
	return &Store{repo: repo, remote: r, logger: logger.WithComponent("store"), opts: opts}
}

// Repository returns the underlying local repository.
func (s *Store) Repository() storage.Repository {
	return s.repo
}

func (s *Store) changed() {
	if s.opts.AfterWrite != nil {
		s.opts.AfterWrite()
	}
}

var interactive = storage.SaveOptions{OverwriteTimestamp: true}

// SaveExercise stamps e with the current time and stores it dirty.
func (s *Store) SaveExercise(ctx context.Context, e *models.Exercise) error {
	_, err := s.SaveExercises(ctx, []*models.Exercise{e}, interactive)
	return err
}

// SaveWorkout stamps w with the current time and stores it dirty.
func (s *Store) SaveWorkout(ctx context.Context, w *models.Workout) error {
	_, err := s.SaveWorkouts(ctx, []*models.Workout{w}, interactive)
	return err
}

// SaveRoutine stamps r with the current time and stores it dirty.
func (s *Store) SaveRoutine(ctx context.Context, r *models.Routine) error {
	_, err := s.SaveRoutines(ctx, []*models.Routine{r}, interactive)
	return err
}

// SaveExercises writes a batch in one transaction.
func (s *Store) SaveExercises(ctx context.Context, es []*models.Exercise, opts storage.SaveOptions) (storage.SaveResult, error) {
	res, err := s.repo.SaveExercises(ctx, es, opts)
	if err == nil && !opts.LocalOnly {
		s.changed()
	}
	return res, err
}

// SaveWorkouts writes a batch in one transaction.
func (s *Store) SaveWorkouts(ctx context.Context, ws []*models.Workout, opts storage.SaveOptions) (storage.SaveResult, error) {
	res, err := s.repo.SaveWorkouts(ctx, ws, opts)
	if err == nil && !opts.LocalOnly {
		s.changed()
	}
	return res, err
}

// SaveRoutines writes a batch in one transaction.
func (s *Store) SaveRoutines(ctx context.Context, rs []*models.Routine, opts storage.SaveOptions) (storage.SaveResult, error) {
	res, err := s.repo.SaveRoutines(ctx, rs, opts)
	if err == nil && !opts.LocalOnly {
		s.changed()
	}
	return res, err
}

func remoteOrigin(dropDangling bool) storage.SaveOptions {
	return storage.SaveOptions{LocalOnly: true, DropDangling: dropDangling}
}

// ApplyRemoteExercise stores a remote version of e, keeping its timestamp.
// It reports false when the local copy is newer.
func (s *Store) ApplyRemoteExercise(ctx context.Context, e *models.Exercise) (bool, error) {
	res, err := s.repo.SaveExercises(ctx, []*models.Exercise{e}, remoteOrigin(false))
	return len(res.Applied) > 0, err
}

// ApplyRemoteWorkout stores a remote version of w. Unless dropDangling is set,
// references to exercises not stored locally fail with storage.ErrMissingReference.
func (s *Store) ApplyRemoteWorkout(ctx context.Context, w *models.Workout, dropDangling bool) (bool, error) {
	res, err := s.repo.SaveWorkouts(ctx, []*models.Workout{w}, remoteOrigin(dropDangling))
	return len(res.Applied) > 0, err
}

// ApplyRemoteRoutine stores a remote version of r; see ApplyRemoteWorkout.
func (s *Store) ApplyRemoteRoutine(ctx context.Context, r *models.Routine, dropDangling bool) (bool, error) {
	res, err := s.repo.SaveRoutines(ctx, []*models.Routine{r}, remoteOrigin(dropDangling))
	return len(res.Applied) > 0, err
}

// DeleteExercise removes an exercise; see Delete.
func (s *Store) DeleteExercise(ctx context.Context, id string, localOnly bool) error {
	return s.Delete(ctx, models.KindExercise, id, localOnly)
}

// DeleteWorkout removes a workout; its exercises are kept.
func (s *Store) DeleteWorkout(ctx context.Context, id string, localOnly bool) error {
	return s.Delete(ctx, models.KindWorkout, id, localOnly)
}

// DeleteRoutine removes a routine; its workouts are kept.
func (s *Store) DeleteRoutine(ctx context.Context, id string, localOnly bool) error {
	return s.Delete(ctx, models.KindRoutine, id, localOnly)
}

// Delete removes the local row immediately. Unless localOnly, the delete is
// then confirmed against the remote; until it is, a tombstone keeps it queued
// for the next sync. Only local storage failures are returned.
func (s *Store) Delete(ctx context.Context, kind models.Kind, id string, localOnly bool) error {
	if localOnly {
		_, err := s.repo.Delete(ctx, kind, id, false)
		return err
	}

	ts, err := s.repo.Delete(ctx, kind, id, true)
	if err != nil {
		return err
	}
	if s.remote == nil {
		s.logger.Debug("no remote configured, delete queued", "kind", kind, "id", id)
		s.changed()
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, s.opts.DeleteTimeout)
	defer cancel()
	if err := s.remote.Delete(rctx, kind, id); err != nil {
		s.logger.Warn("remote delete failed, tombstone kept", "kind", kind, "id", id, "error", err)
		return nil
	}

	if err := s.repo.RemoveTombstones(ctx, kind, []models.Tombstone{*ts}); err != nil {
		s.logger.Warn("clear confirmed tombstone", "kind", kind, "id", id, "error", err)
	}
	return nil
}

// PullExercise loads one exercise.
func (s *Store) PullExercise(ctx context.Context, id string) (*models.Exercise, error) {
	return s.repo.PullExercise(ctx, id)
}

// PullExercises loads every exercise matching f.
func (s *Store) PullExercises(ctx context.Context, f storage.Filter) ([]*models.Exercise, error) {
	return s.repo.PullExercises(ctx, f)
}

// PullWorkout loads one workout, with its exercises when deep.
func (s *Store) PullWorkout(ctx context.Context, id string, deep bool) (*models.Workout, error) {
	return s.repo.PullWorkout(ctx, id, deep)
}

// PullWorkouts loads every workout matching f.
func (s *Store) PullWorkouts(ctx context.Context, f storage.Filter, deep bool) ([]*models.Workout, error) {
	return s.repo.PullWorkouts(ctx, f, deep)
}

// PullRoutine loads one routine, with its full graph when deep.
func (s *Store) PullRoutine(ctx context.Context, id string, deep bool) (*models.Routine, error) {
	return s.repo.PullRoutine(ctx, id, deep)
}

// PullRoutines loads every routine matching f.
func (s *Store) PullRoutines(ctx context.Context, f storage.Filter, deep bool) ([]*models.Routine, error) {
	return s.repo.PullRoutines(ctx, f, deep)
}

// ResolveID expands an id prefix to a full id.
func (s *Store) ResolveID(ctx context.Context, kind models.Kind, idOrPrefix string) (string, error) {
	return s.repo.ResolveID(ctx, kind, idOrPrefix)
}
