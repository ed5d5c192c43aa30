// ABOUTME: Tests for the interactive store: stamping, remote-origin applies and delete fallback.
// ABOUTME: Uses a temp-dir database and a scripted remote.
package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harperreed/lift/internal/logging"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/remote"
	"github.com/harperreed/lift/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu      sync.Mutex
	deletes []string
	err     error
	block   bool
}

func (f *fakeRemote) Exchange(ctx context.Context, req *remote.ExchangeRequest) (*remote.ExchangeResponse, error) {
	return &remote.ExchangeResponse{}, nil
}

func (f *fakeRemote) Delete(ctx context.Context, kind models.Kind, id string) error {
	f.mu.Lock()
	f.deletes = append(f.deletes, string(kind)+":"+id)
	err, block := f.err, f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func setupTestStore(t *testing.T, r remote.Remote) (*Store, *storage.DB, *int) {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "lift.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	writes := 0
	s := New(db, r, logging.NewNop(), Options{
		DeleteTimeout: 50 * time.Millisecond,
		AfterWrite:    func() { writes++ },
	})
	return s, db, &writes
}

func TestSaveExerciseStampsAndMarksDirty(t *testing.T) {
	ctx := context.Background()
	s, db, writes := setupTestStore(t, nil)
	fixed := time.UnixMilli(1_750_000_000_123)
	db.SetClock(func() time.Time { return fixed })

	e := models.NewExercise("Deadlift", models.VolumeReps, models.IntensityWeight).
		AddSet(models.NewSet(5).With(models.IntensityWeight, 140))
	e.LastModified = time.UnixMilli(1)
	require.NoError(t, s.SaveExercise(ctx, e))

	got, err := s.PullExercise(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, got.Dirty)
	assert.Equal(t, fixed, got.LastModified)
	assert.Equal(t, 1, *writes)
}

func TestSaveExerciseRejectsInvalidShape(t *testing.T) {
	ctx := context.Background()
	s, _, writes := setupTestStore(t, nil)

	e := models.NewExercise("Sled", models.VolumeDistance, models.IntensityWeight).
		AddSet(models.NewSet(20))
	err := s.SaveExercise(ctx, e)

	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, *writes)
}

func TestApplyRemoteIsLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s, _, writes := setupTestStore(t, nil)

	e := models.NewExercise("Curl", models.VolumeReps)
	e.LastModified = time.UnixMilli(2_000)
	applied, err := s.ApplyRemoteExercise(ctx, e)
	require.NoError(t, err)
	assert.True(t, applied)

	older := *e
	older.Name = "Old Curl"
	older.LastModified = time.UnixMilli(1_000)
	applied, err = s.ApplyRemoteExercise(ctx, &older)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := s.PullExercise(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Curl", got.Name)
	assert.False(t, got.Dirty)
	assert.Equal(t, time.UnixMilli(2_000), got.LastModified)
	assert.Equal(t, 0, *writes, "remote-origin writes never trigger a push")
}

func TestApplyRemoteWorkoutMissingReference(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupTestStore(t, nil)

	w := models.NewWorkout("Arms", "not-here-yet")
	_, err := s.ApplyRemoteWorkout(ctx, w, false)
	assert.ErrorIs(t, err, storage.ErrMissingReference)

	applied, err := s.ApplyRemoteWorkout(ctx, w, true)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := s.PullWorkout(ctx, w.ID, false)
	require.NoError(t, err)
	assert.Empty(t, got.ExerciseIDs)
}

func TestDeleteConfirmedRemotely(t *testing.T) {
	ctx := context.Background()
	r := &fakeRemote{}
	s, db, _ := setupTestStore(t, r)

	e := models.NewExercise("Row", models.VolumeReps)
	require.NoError(t, s.SaveExercise(ctx, e))
	require.NoError(t, s.DeleteExercise(ctx, e.ID, false))

	assert.Equal(t, []string{"exercise:" + e.ID}, r.deletes)
	ts, err := db.ListTombstones(ctx, models.KindExercise)
	require.NoError(t, err)
	assert.Empty(t, ts)
	_, err = s.PullExercise(ctx, e.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteFallsBackToTombstone(t *testing.T) {
	tests := []struct {
		name   string
		remote remote.Remote
	}{
		{"remote error", &fakeRemote{err: remote.ErrUnavailable}},
		{"remote timeout", &fakeRemote{block: true}},
		{"no remote", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, db, _ := setupTestStore(t, tt.remote)

			w := models.NewWorkout("Legs")
			require.NoError(t, s.SaveWorkout(ctx, w))
			require.NoError(t, s.DeleteWorkout(ctx, w.ID, false))

			ts, err := db.ListTombstones(ctx, models.KindWorkout)
			require.NoError(t, err)
			require.Len(t, ts, 1)
			assert.Equal(t, w.ID, ts[0].ID)

			_, err = s.PullWorkout(ctx, w.ID, false)
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestDeleteLocalOnly(t *testing.T) {
	ctx := context.Background()
	r := &fakeRemote{}
	s, db, _ := setupTestStore(t, r)

	rt := models.NewRoutine("Full body")
	require.NoError(t, s.SaveRoutine(ctx, rt))
	require.NoError(t, s.DeleteRoutine(ctx, rt.ID, true))

	assert.Empty(t, r.deletes)
	ts, err := db.ListTombstones(ctx, models.KindRoutine)
	require.NoError(t, err)
	assert.Empty(t, ts)
}

func TestDeleteMissingIsStorageError(t *testing.T) {
	ctx := context.Background()
	r := &fakeRemote{}
	s, _, _ := setupTestStore(t, r)

	err := s.DeleteExercise(ctx, "nope", false)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.True(t, storage.IsStorageError(err))
	assert.Empty(t, r.deletes)
}

func TestRemoteErrorsAreNeverSurfaced(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupTestStore(t, &fakeRemote{err: errors.New("connection reset")})

	e := models.NewExercise("Burpee", models.VolumeReps)
	require.NoError(t, s.SaveExercise(ctx, e))
	assert.NoError(t, s.DeleteExercise(ctx, e.ID, false))
}
