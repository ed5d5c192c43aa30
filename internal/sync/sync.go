// ABOUTME: Syncer reconciles the local store with the remote in one round trip.
// ABOUTME: Gather, exchange, apply, purge and finalize; dirty flags clear only on acknowledgment.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/harperreed/lift/internal/logging"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/remote"
	"github.com/harperreed/lift/internal/storage"
)

// ErrInProgress is returned when a cycle is requested while another is running.
var ErrInProgress = errors.New("sync already in progress")

// Options tunes a Syncer.
type Options struct {
	// Timeout bounds the remote exchange. Zero means no limit.
	Timeout time.Duration
	// AfterSync runs after a finalized cycle, e.g. to back-fill workout logs.
	// Its error is logged and does not fail the cycle.
	AfterSync func(ctx context.Context) error
}

// Result summarizes one completed cycle.
type Result struct {
	Pushed   int // dirty rows sent
	Deleted  int // tombstones sent
	Pending  int // sent but not acknowledged; retried next cycle
	Applied  int // remote rows written locally
	Skipped  int // remote rows older than the local copy
	Dropped  int // remote rows that failed to decode or validate
	Purged   int // local rows removed for remote deletions
	LastSync time.Time
}

// Status reports what is waiting to be pushed.
type Status struct {
	LastSync   time.Time
	Dirty      map[models.Kind]int
	Tombstones map[models.Kind]int
}

// Syncer manages sync operations for lift data.
type Syncer struct {
	repo    storage.Repository
	remote  remote.Remote
	logger  *logging.Logger
	opts    Options
	running atomic.Bool
	trigger chan struct{}
}

// New creates a Syncer over repo and r.
func New(repo storage.Repository, r remote.Remote, logger *logging.Logger, opts Options) *Syncer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Syncer{
		repo:    repo,
		remote:  r,
		logger:  logger.WithComponent("sync"),
		opts:    opts,
		trigger: make(chan struct{}, 1),
	}
}

// Running reports whether a cycle is in flight.
func (s *Syncer) Running() bool {
	return s.running.Load()
}

// Trigger requests a background cycle. Requests made while one is pending coalesce.
func (s *Syncer) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Start runs triggered cycles until ctx is done.
func (s *Syncer) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.trigger:
			if _, err := s.Run(ctx); err != nil && !errors.Is(err, ErrInProgress) {
				s.logger.Debug("triggered sync did not complete", "error", err)
			}
		}
	}
}

// Run executes one full sync cycle. Any failure before finalization leaves the
// dirty flags, tombstones and last-sync timestamp untouched.
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrInProgress
	}
	defer s.running.Store(false)

	start := time.Now()
	res, err := s.cycle(ctx)
	if err != nil {
		s.logger.Warn("sync failed", "error", err, "duration", time.Since(start))
		return nil, err
	}
	s.logger.Info("sync complete",
		"pushed", res.Pushed,
		"deleted", res.Deleted,
		"pending", res.Pending,
		"applied", res.Applied,
		"purged", res.Purged,
		"duration", time.Since(start),
	)

	if s.opts.AfterSync != nil {
		if err := s.opts.AfterSync(ctx); err != nil {
			s.logger.Warn("post-sync hook failed", "error", err)
		}
	}
	return res, nil
}

// batch is the gathered local state of one cycle.
type batch struct {
	req        *remote.ExchangeRequest
	exercises  []*models.Exercise
	workouts   []*models.Workout
	routines   []*models.Routine
	tombstones map[models.Kind][]models.Tombstone
}

func (s *Syncer) cycle(ctx context.Context) (*Result, error) {
	b, err := s.gather(ctx)
	if err != nil {
		return nil, fmt.Errorf("gather: %w", err)
	}
	startedAt := s.repo.Now()

	resp, err := s.exchange(ctx, b.req)
	if err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}

	res := &Result{Pushed: len(b.exercises) + len(b.workouts) + len(b.routines)}
	for _, ts := range b.tombstones {
		res.Deleted += len(ts)
	}
	if err := s.apply(ctx, resp, res); err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}
	if err := s.purge(ctx, resp, res); err != nil {
		return nil, fmt.Errorf("purge: %w", err)
	}

	fin := s.finalization(b, resp, res)
	fin.LastSync = startedAt
	if resp.ServerTime > 0 {
		fin.LastSync = models.FromMillis(resp.ServerTime)
	}
	if err := s.repo.FinalizeSync(ctx, fin); err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}
	res.LastSync = fin.LastSync
	return res, nil
}

func (s *Syncer) gather(ctx context.Context) (*batch, error) {
	user, err := s.repo.GetUser(ctx)
	if err != nil {
		return nil, err
	}
	b := &batch{
		req:        &remote.ExchangeRequest{LastSyncTimestamp: models.ToMillis(user.LastSyncDate)},
		tombstones: make(map[models.Kind][]models.Tombstone),
	}

	if b.exercises, err = s.repo.PullExercises(ctx, storage.Dirty); err != nil {
		return nil, err
	}
	if b.workouts, err = s.repo.PullWorkouts(ctx, storage.Dirty, false); err != nil {
		return nil, err
	}
	if b.routines, err = s.repo.PullRoutines(ctx, storage.Dirty, false); err != nil {
		return nil, err
	}
	for _, e := range b.exercises {
		b.req.Exercises = append(b.req.Exercises, e.ToRaw())
	}
	for _, w := range b.workouts {
		b.req.Workouts = append(b.req.Workouts, w.ToRaw())
	}
	for _, r := range b.routines {
		b.req.Routines = append(b.req.Routines, r.ToRaw())
	}

	for _, kind := range []models.Kind{models.KindExercise, models.KindWorkout, models.KindRoutine} {
		ts, err := s.repo.ListTombstones(ctx, kind)
		if err != nil {
			return nil, err
		}
		b.tombstones[kind] = ts
		refs := deletedRefs(ts)
		switch kind {
		case models.KindExercise:
			b.req.DeletedExercises = refs
		case models.KindWorkout:
			b.req.DeletedWorkouts = refs
		case models.KindRoutine:
			b.req.DeletedRoutines = refs
		}
	}
	return b, nil
}

func deletedRefs(ts []models.Tombstone) []remote.DeletedRef {
	refs := make([]remote.DeletedRef, 0, len(ts))
	for _, t := range ts {
		refs = append(refs, remote.DeletedRef{ID: t.ID, DeletedAt: models.ToMillis(t.DeletedAt)})
	}
	return refs
}

func (s *Syncer) exchange(ctx context.Context, req *remote.ExchangeRequest) (*remote.ExchangeResponse, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	resp, err := s.remote.Exchange(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", remote.ErrUnavailable)
	}
	return resp, nil
}

// apply writes remote rows referenced-first: exercises, then workouts, then routines.
func (s *Syncer) apply(ctx context.Context, resp *remote.ExchangeResponse, res *Result) error {
	opts := storage.SaveOptions{LocalOnly: true, DropDangling: true}

	exercises := make([]*models.Exercise, 0, len(resp.NewExercises))
	for _, raw := range resp.NewExercises {
		e, err := models.ExerciseFromRaw(raw)
		if err == nil {
			e.MigrateSets()
			err = e.Validate()
		}
		if err != nil {
			s.logger.Warn("dropping invalid exercise", "id", raw.ID, "error", err)
			res.Dropped++
			continue
		}
		exercises = append(exercises, e)
	}
	r, err := s.repo.SaveExercises(ctx, exercises, opts)
	if err != nil {
		return err
	}
	res.record(r)

	workouts := make([]*models.Workout, 0, len(resp.NewWorkouts))
	for _, raw := range resp.NewWorkouts {
		w, err := models.WorkoutFromRaw(raw)
		if err == nil {
			err = w.Validate()
		}
		if err != nil {
			s.logger.Warn("dropping invalid workout", "id", raw.ID, "error", err)
			res.Dropped++
			continue
		}
		workouts = append(workouts, w)
	}
	if r, err = s.repo.SaveWorkouts(ctx, workouts, opts); err != nil {
		return err
	}
	res.record(r)

	routines := make([]*models.Routine, 0, len(resp.NewRoutines))
	for _, raw := range resp.NewRoutines {
		rt, err := models.RoutineFromRaw(raw)
		if err != nil {
			s.logger.Warn("dropping invalid routine", "id", raw.ID, "error", err)
			res.Dropped++
			continue
		}
		routines = append(routines, rt)
	}
	if r, err = s.repo.SaveRoutines(ctx, routines, opts); err != nil {
		return err
	}
	res.record(r)
	return nil
}

func (r *Result) record(sr storage.SaveResult) {
	r.Applied += len(sr.Applied)
	r.Skipped += len(sr.Skipped)
}

// purge removes remotely deleted rows, referencing kinds first.
func (s *Syncer) purge(ctx context.Context, resp *remote.ExchangeResponse, res *Result) error {
	steps := []struct {
		kind models.Kind
		ids  []string
	}{
		{models.KindRoutine, resp.DeletedRoutines},
		{models.KindWorkout, resp.DeletedWorkouts},
		{models.KindExercise, resp.DeletedExercises},
	}
	for _, step := range steps {
		if err := s.repo.Purge(ctx, step.kind, step.ids); err != nil {
			return err
		}
		res.Purged += len(step.ids)
	}
	return nil
}

// finalization maps the remote's acknowledgment onto the pushed versions.
func (s *Syncer) finalization(b *batch, resp *remote.ExchangeResponse, res *Result) storage.Finalization {
	ack := resp.Acknowledged
	all := ack == nil
	if all {
		ack = &remote.Acknowledgement{}
	}

	fin := storage.Finalization{
		Clean:     make(map[models.Kind][]models.Stamp),
		Confirmed: make(map[models.Kind][]models.Tombstone),
	}

	exAcked := idSet(ack.Exercises)
	for _, e := range b.exercises {
		if all || exAcked[e.ID] {
			fin.Clean[models.KindExercise] = append(fin.Clean[models.KindExercise],
				models.Stamp{ID: e.ID, LastModified: e.LastModified})
		} else {
			res.Pending++
		}
	}
	wAcked := idSet(ack.Workouts)
	for _, w := range b.workouts {
		if all || wAcked[w.ID] {
			fin.Clean[models.KindWorkout] = append(fin.Clean[models.KindWorkout],
				models.Stamp{ID: w.ID, LastModified: w.LastModified})
		} else {
			res.Pending++
		}
	}
	rAcked := idSet(ack.Routines)
	for _, r := range b.routines {
		if all || rAcked[r.ID] {
			fin.Clean[models.KindRoutine] = append(fin.Clean[models.KindRoutine],
				models.Stamp{ID: r.ID, LastModified: r.LastModified})
		} else {
			res.Pending++
		}
	}

	deleted := map[models.Kind]map[string]bool{
		models.KindExercise: idSet(ack.DeletedExercises),
		models.KindWorkout:  idSet(ack.DeletedWorkouts),
		models.KindRoutine:  idSet(ack.DeletedRoutines),
	}
	for kind, tombstones := range b.tombstones {
		for _, ts := range tombstones {
			if all || deleted[kind][ts.ID] {
				fin.Confirmed[kind] = append(fin.Confirmed[kind], ts)
			} else {
				res.Pending++
			}
		}
	}

	if res.Pending > 0 {
		s.logger.Warn("remote left changes unacknowledged", "pending", res.Pending)
	}
	return fin
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Status returns the current sync status.
func (s *Syncer) Status(ctx context.Context) (*Status, error) {
	user, err := s.repo.GetUser(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{
		LastSync:   user.LastSyncDate,
		Dirty:      make(map[models.Kind]int),
		Tombstones: make(map[models.Kind]int),
	}

	exercises, err := s.repo.PullExercises(ctx, storage.Dirty)
	if err != nil {
		return nil, err
	}
	st.Dirty[models.KindExercise] = len(exercises)
	workouts, err := s.repo.PullWorkouts(ctx, storage.Dirty, false)
	if err != nil {
		return nil, err
	}
	st.Dirty[models.KindWorkout] = len(workouts)
	routines, err := s.repo.PullRoutines(ctx, storage.Dirty, false)
	if err != nil {
		return nil, err
	}
	st.Dirty[models.KindRoutine] = len(routines)

	for _, kind := range []models.Kind{models.KindExercise, models.KindWorkout, models.KindRoutine} {
		ts, err := s.repo.ListTombstones(ctx, kind)
		if err != nil {
			return nil, err
		}
		st.Tombstones[kind] = len(ts)
	}
	return st, nil
}

// Pending reports the total number of unsynced changes.
func (st *Status) Pending() int {
	n := 0
	for _, c := range st.Dirty {
		n += c
	}
	for _, c := range st.Tombstones {
		n += c
	}
	return n
}
