// ABOUTME: Maintains the per-day WorkoutLog projection of the active routine.
// ABOUTME: Back-fills missed days insert-if-absent and records set progress.
package workoutlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/lift/internal/logging"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/storage"
)

// DefaultMaxBackfillDays bounds how far back a single update reaches.
const DefaultMaxBackfillDays = 31

// Maintainer keeps workout logs up to date.
type Maintainer struct {
	repo    storage.Repository
	logger  *logging.Logger
	maxDays int
}

// New creates a Maintainer. maxBackfillDays <= 0 uses DefaultMaxBackfillDays.
func New(repo storage.Repository, logger *logging.Logger, maxBackfillDays int) *Maintainer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if maxBackfillDays <= 0 {
		maxBackfillDays = DefaultMaxBackfillDays
	}
	return &Maintainer{repo: repo, logger: logger.WithComponent("workoutlog"), maxDays: maxBackfillDays}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// UpdateLogs creates a log for every scheduled day from the last log date
// (inclusive) through today, never overwriting an existing log, then records
// today as the last log date. It returns the number of logs created.
func (m *Maintainer) UpdateLogs(ctx context.Context, today time.Time) (int, error) {
	user, err := m.repo.GetUser(ctx)
	if err != nil {
		return 0, err
	}
	end := midnight(today)
	todayKey := end.Format(models.DateLayout)

	start := end
	if user.LastLogDate != "" {
		last, err := time.ParseInLocation(models.DateLayout, user.LastLogDate, end.Location())
		if err != nil {
			m.logger.Warn("ignoring unparseable last log date", "value", user.LastLogDate, "error", err)
		} else if !last.After(end) {
			start = last
		}
	}
	if earliest := end.AddDate(0, 0, -(m.maxDays - 1)); start.Before(earliest) {
		m.logger.Info("log gap exceeds back-fill window", "from", start.Format(models.DateLayout),
			"window_days", m.maxDays)
		start = earliest
	}

	created := 0
	if user.ActiveRoutineID != "" {
		created, err = m.backfill(ctx, user.ActiveRoutineID, start, end)
		if err != nil {
			return created, err
		}
	}

	if err := m.repo.SetLastLogDate(ctx, todayKey); err != nil {
		return created, err
	}
	if created > 0 {
		m.logger.Info("workout logs created", "count", created, "through", todayKey)
	}
	return created, nil
}

func (m *Maintainer) backfill(ctx context.Context, routineID string, start, end time.Time) (int, error) {
	routine, err := m.repo.PullRoutine(ctx, routineID, true)
	if errors.Is(err, storage.ErrNotFound) {
		m.logger.Warn("active routine missing, no logs created", "routine", routineID)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	created := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		w := routine.Workouts[day.Weekday()]
		if w == nil {
			continue
		}
		ok, err := m.repo.InsertLogIfAbsent(ctx, models.NewWorkoutLog(day, routine.Name, w))
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// loggedExercise loads a log and checks it covers exerciseID.
func (m *Maintainer) loggedExercise(ctx context.Context, date, exerciseID string) (*models.WorkoutLog, error) {
	l, err := m.repo.GetLog(ctx, date)
	if err != nil {
		return nil, err
	}
	if _, ok := l.Exercises[exerciseID]; !ok {
		return nil, fmt.Errorf("%w: exercise %s not in log %s", storage.ErrNotFound, exerciseID, date)
	}
	return l, nil
}

// ApplySetChanges refreshes a log's snapshot of one exercise from its current
// definition, clamping recorded progress to the new set count.
func (m *Maintainer) ApplySetChanges(ctx context.Context, date, exerciseID string) (*models.WorkoutLog, error) {
	l, err := m.loggedExercise(ctx, date, exerciseID)
	if err != nil {
		return nil, err
	}
	e, err := m.repo.PullExercise(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	l.ApplySetChanges(e)
	if err := m.repo.UpdateLog(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// CompleteSets records how many sets of an exercise are done, clamped to the
// logged set count.
func (m *Maintainer) CompleteSets(ctx context.Context, date, exerciseID string, n int) (*models.WorkoutLog, error) {
	l, err := m.loggedExercise(ctx, date, exerciseID)
	if err != nil {
		return nil, err
	}
	n = max(0, min(n, len(l.Exercises[exerciseID].Sets)))
	l.Completion[exerciseID] = models.Completion{SetsCompleted: n}
	if err := m.repo.UpdateLog(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}
