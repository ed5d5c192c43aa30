// ABOUTME: Tests for the SQLite entity stores, tombstones and sync bookkeeping.
// ABOUTME: Uses a fresh temp-dir database per test.
package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/lift/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "lift-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	dbPath := filepath.Join(tmpDir, "lift.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func saveExercises(t *testing.T, db *DB, es ...*models.Exercise) {
	t.Helper()
	_, err := db.SaveExercises(context.Background(), es, SaveOptions{})
	require.NoError(t, err)
}

func TestExerciseSaveAndPull(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	e := models.NewExercise("bench", models.VolumeReps, models.IntensityWeight).
		WithNotes("pause; then press").
		WithCategories("push", "chest").
		AddSet(models.NewSet(12).With(models.IntensityWeight, 25))
	saveExercises(t, db, e)

	got, err := db.PullExercise(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Name, got.Name)
	assert.Equal(t, e.Notes, got.Notes)
	assert.Equal(t, e.Categories, got.Categories)
	assert.Equal(t, e.Sets, got.Sets)
	assert.True(t, got.Dirty)
	assert.True(t, e.LastModified.Equal(got.LastModified))

	_, err = db.PullExercise(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, IsStorageError(err))
}

func TestSaveExercisesRejectsInvalidShape(t *testing.T) {
	db := setupTestDB(t)

	e := models.NewExercise("row", models.VolumeReps, models.IntensityWeight).
		AddSet(models.NewSet(8))
	_, err := db.SaveExercises(context.Background(), []*models.Exercise{e}, SaveOptions{})

	var verr *models.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestOverwriteTimestampUsesStoreClock(t *testing.T) {
	db := setupTestDB(t)
	fixed := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	db.SetClock(func() time.Time { return fixed })

	e := models.NewExercise("squat", models.VolumeReps)
	_, err := db.SaveExercises(context.Background(), []*models.Exercise{e}, SaveOptions{OverwriteTimestamp: true})
	require.NoError(t, err)
	assert.True(t, fixed.Equal(e.LastModified))
}

func TestRemoteSaveIsLastWriteWins(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	local := models.NewExercise("curl", models.VolumeReps, models.IntensityWeight).
		AddSet(models.NewSet(12).With(models.IntensityWeight, 25))
	saveExercises(t, db, local)

	older := *local
	older.Name = "stale curl"
	older.LastModified = local.LastModified.Add(-time.Minute)
	res, err := db.SaveExercises(ctx, []*models.Exercise{&older}, SaveOptions{LocalOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{local.ID}, res.Skipped)

	got, err := db.PullExercise(ctx, local.ID)
	require.NoError(t, err)
	assert.Equal(t, "curl", got.Name)
	assert.True(t, got.Dirty)

	newer := *local
	newer.Name = "hammer curl"
	newer.LastModified = local.LastModified.Add(time.Minute)
	for i := 0; i < 2; i++ {
		res, err = db.SaveExercises(ctx, []*models.Exercise{&newer}, SaveOptions{LocalOnly: true})
		require.NoError(t, err)
		assert.Equal(t, []string{local.ID}, res.Applied)
	}

	all, err := db.PullExercises(ctx, All)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "hammer curl", all[0].Name)
	assert.False(t, all[0].Dirty)
}

func TestRemoteSaveMigratesStraySetKeys(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	e := models.NewExercise("bike", models.VolumeTime, models.IntensityLevel)
	e.Sets = []models.Set{models.NewSet(600).With(models.IntensitySpeed, 30)}
	_, err := db.SaveExercises(ctx, []*models.Exercise{e}, SaveOptions{LocalOnly: true})
	require.NoError(t, err)

	got, err := db.PullExercise(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, map[models.IntensityType]float64{models.IntensityLevel: 0}, got.Sets[0].Intensity)
}

func TestDeepRoutinePullPreservesOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	squat := models.NewExercise("squat", models.VolumeReps)
	press := models.NewExercise("press", models.VolumeReps)
	row := models.NewExercise("row", models.VolumeReps)
	saveExercises(t, db, squat, press, row)

	a := models.NewWorkout("A", press.ID, squat.ID, row.ID)
	b := models.NewWorkout("B", row.ID, press.ID)
	_, err := db.SaveWorkouts(ctx, []*models.Workout{a, b}, SaveOptions{})
	require.NoError(t, err)

	r := models.NewRoutine("split")
	r.SetDay(time.Monday, a).SetDay(time.Thursday, b).SetDay(time.Saturday, a)
	_, err = db.SaveRoutines(ctx, []*models.Routine{r}, SaveOptions{})
	require.NoError(t, err)

	before := db.queries.Load()
	got, err := db.PullRoutine(ctx, r.ID, true)
	require.NoError(t, err)
	assert.LessOrEqual(t, db.queries.Load()-before, int64(3))

	assert.Equal(t, r.WorkoutIDs, got.WorkoutIDs)
	for _, day := range []time.Weekday{time.Sunday, time.Tuesday, time.Wednesday, time.Friday} {
		assert.Nilf(t, got.Workouts[day], "%s should be a rest day", day)
	}

	names := func(w *models.Workout) []string {
		var out []string
		for _, e := range w.Exercises {
			out = append(out, e.Name)
		}
		return out
	}
	require.NotNil(t, got.Workouts[time.Monday])
	assert.Equal(t, []string{"press", "squat", "row"}, names(got.Workouts[time.Monday]))
	assert.Equal(t, []string{"row", "press"}, names(got.Workouts[time.Thursday]))
	assert.Equal(t, []string{"press", "squat", "row"}, names(got.Workouts[time.Saturday]))
}

func TestShallowPullCarriesIDsOnly(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	e := models.NewExercise("lunge", models.VolumeReps)
	saveExercises(t, db, e)
	w := models.NewWorkout("legs", e.ID, e.ID)
	_, err := db.SaveWorkouts(ctx, []*models.Workout{w}, SaveOptions{})
	require.NoError(t, err)

	got, err := db.PullWorkout(ctx, w.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{e.ID, e.ID}, got.ExerciseIDs)
	assert.Nil(t, got.Exercises)
}

func TestSaveWorkoutRelinksOnReorder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	e1 := models.NewExercise("one", models.VolumeReps)
	e2 := models.NewExercise("two", models.VolumeReps)
	saveExercises(t, db, e1, e2)

	w := models.NewWorkout("w", e1.ID, e2.ID)
	_, err := db.SaveWorkouts(ctx, []*models.Workout{w}, SaveOptions{})
	require.NoError(t, err)

	w.ExerciseIDs = []string{e2.ID}
	_, err = db.SaveWorkouts(ctx, []*models.Workout{w}, SaveOptions{})
	require.NoError(t, err)

	got, err := db.PullWorkout(ctx, w.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{e2.ID}, got.ExerciseIDs)
}

func TestMissingReferences(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	e := models.NewExercise("dip", models.VolumeReps)
	saveExercises(t, db, e)

	w := models.NewWorkout("w", e.ID, "ghost")
	_, err := db.SaveWorkouts(ctx, []*models.Workout{w}, SaveOptions{})
	assert.True(t, errors.Is(err, ErrMissingReference))

	_, err = db.PullWorkout(ctx, w.ID, false)
	assert.True(t, errors.Is(err, ErrNotFound), "failed batch must roll back")

	_, err = db.SaveWorkouts(ctx, []*models.Workout{w}, SaveOptions{LocalOnly: true, DropDangling: true})
	require.NoError(t, err)
	got, err := db.PullWorkout(ctx, w.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{e.ID}, got.ExerciseIDs)

	r := models.NewRoutine("r")
	r.WorkoutIDs[time.Monday] = "ghost"
	_, err = db.SaveRoutines(ctx, []*models.Routine{r}, SaveOptions{})
	assert.True(t, errors.Is(err, ErrMissingReference))
}

func TestDeleteCascadesLinksOnly(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	e1 := models.NewExercise("one", models.VolumeReps)
	e2 := models.NewExercise("two", models.VolumeReps)
	saveExercises(t, db, e1, e2)
	w := models.NewWorkout("w", e1.ID, e2.ID)
	_, err := db.SaveWorkouts(ctx, []*models.Workout{w}, SaveOptions{})
	require.NoError(t, err)
	r := models.NewRoutine("r")
	r.SetDay(time.Monday, w)
	_, err = db.SaveRoutines(ctx, []*models.Routine{r}, SaveOptions{})
	require.NoError(t, err)
	require.NoError(t, db.SetActiveRoutine(ctx, r.ID))

	require.NoError(t, db.DeleteExercise(ctx, e1.ID))
	got, err := db.PullWorkout(ctx, w.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{e2.ID}, got.ExerciseIDs)

	require.NoError(t, db.DeleteWorkout(ctx, w.ID))
	_, err = db.PullExercise(ctx, e2.ID)
	assert.NoError(t, err, "deleting a workout must not delete its exercises")
	rt, err := db.PullRoutine(ctx, r.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "", rt.WorkoutIDs[time.Monday])

	require.NoError(t, db.DeleteRoutine(ctx, r.ID))
	u, err := db.GetUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", u.ActiveRoutineID)

	assert.True(t, errors.Is(db.DeleteRoutine(ctx, r.ID), ErrNotFound))
}

func TestDeleteWithTombstone(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	w := models.NewWorkout("w")
	_, err := db.SaveWorkouts(ctx, []*models.Workout{w}, SaveOptions{})
	require.NoError(t, err)

	ts, err := db.Delete(ctx, models.KindWorkout, w.ID, true)
	require.NoError(t, err)
	require.NotNil(t, ts)

	pending, err := db.ListTombstones(ctx, models.KindWorkout)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, w.ID, pending[0].ID)

	stale := models.Tombstone{ID: w.ID, DeletedAt: ts.DeletedAt.Add(-time.Second)}
	require.NoError(t, db.RemoveTombstones(ctx, models.KindWorkout, []models.Tombstone{stale}))
	pending, err = db.ListTombstones(ctx, models.KindWorkout)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, db.RemoveTombstones(ctx, models.KindWorkout, pending))
	pending, err = db.ListTombstones(ctx, models.KindWorkout)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestFinalizeSyncClearsOnlyAcknowledgedVersions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	acked := models.NewExercise("acked", models.VolumeReps)
	edited := models.NewExercise("edited", models.VolumeReps)
	saveExercises(t, db, acked, edited)
	require.NoError(t, db.AddTombstone(ctx, models.KindRoutine, models.Tombstone{ID: "gone"}))
	pending, err := db.ListTombstones(ctx, models.KindRoutine)
	require.NoError(t, err)

	syncedAt := time.UnixMilli(1_700_000_000_000)
	err = db.FinalizeSync(ctx, Finalization{
		LastSync: syncedAt,
		Clean: map[models.Kind][]models.Stamp{
			models.KindExercise: {
				{ID: acked.ID, LastModified: acked.LastModified},
				{ID: edited.ID, LastModified: edited.LastModified.Add(-time.Second)},
			},
		},
		Confirmed: map[models.Kind][]models.Tombstone{models.KindRoutine: pending},
	})
	require.NoError(t, err)

	dirty, err := db.PullExercises(ctx, Dirty)
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	assert.Equal(t, edited.ID, dirty[0].ID)

	pending, err = db.ListTombstones(ctx, models.KindRoutine)
	require.NoError(t, err)
	assert.Empty(t, pending)

	u, err := db.GetUser(ctx)
	require.NoError(t, err)
	assert.True(t, syncedAt.Equal(u.LastSyncDate))
}

func TestPurgeIgnoresMissingRows(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	e := models.NewExercise("gone", models.VolumeReps)
	saveExercises(t, db, e)

	require.NoError(t, db.Purge(ctx, models.KindExercise, []string{e.ID, "never-existed"}))
	_, err := db.PullExercise(ctx, e.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveIDByPrefix(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	e := models.NewExercise("plank", models.VolumeTime)
	saveExercises(t, db, e)

	id, err := db.ResolveID(ctx, models.KindExercise, e.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, e.ID, id)

	_, err = db.ResolveID(ctx, models.KindExercise, "zzzz")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUserSettings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	u, err := db.GetUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.UnitsMetric, u.Units)
	assert.True(t, u.LastSyncDate.IsZero())

	require.NoError(t, db.SetUnits(ctx, models.UnitsImperial))
	require.NoError(t, db.SetLastLogDate(ctx, "2024-03-01"))
	assert.Error(t, db.SetUnits(ctx, "furlongs"))
	assert.True(t, errors.Is(db.SetActiveRoutine(ctx, "ghost"), ErrNotFound))

	u, err = db.GetUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.UnitsImperial, u.Units)
	assert.Equal(t, "2024-03-01", u.LastLogDate)
}

func TestWorkoutLogs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	e := models.NewExercise("squat", models.VolumeReps).AddSet(models.NewSet(5))
	w := models.NewWorkout("legs", e.ID)
	w.Exercises = []*models.Exercise{e}

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.Local)
	first := models.NewWorkoutLog(day, "ppl", w)
	inserted, err := db.InsertLogIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	first.Completion[e.ID] = models.Completion{SetsCompleted: 1}
	require.NoError(t, db.UpdateLog(ctx, first))

	again := models.NewWorkoutLog(day, "other", w)
	inserted, err = db.InsertLogIfAbsent(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := db.GetLog(ctx, "2024-03-04")
	require.NoError(t, err)
	assert.Equal(t, "ppl", got.RoutineName)
	assert.Equal(t, 1, got.Completion[e.ID].SetsCompleted)
	assert.Equal(t, "squat", got.Exercises[e.ID].Name)

	_, err = db.InsertLogIfAbsent(ctx, models.NewWorkoutLog(day.AddDate(0, 0, 2), "ppl", w))
	require.NoError(t, err)

	logs, err := db.ListLogs(ctx, "2024-03-05", "")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "2024-03-06", logs[0].Date)

	_, err = db.GetLog(ctx, "1999-01-01")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(db.UpdateLog(ctx, &models.WorkoutLog{Date: "1999-01-01"}), ErrNotFound))
}
