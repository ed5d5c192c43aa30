// ABOUTME: Tests for the realtime listener: event application, parking and the websocket feed.
// ABOUTME: Events are applied through a real store over a temp-dir database.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/harperreed/lift/internal/logging"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/storage"
	"github.com/harperreed/lift/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupListener(t *testing.T, cfg Config) (*Listener, *storage.DB) {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "lift.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := store.New(db, nil, logging.NewNop(), store.Options{})
	return New(cfg, s, logging.NewNop()), db
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func upsert(t *testing.T, table string, raw any) Event {
	return Event{Table: table, Type: Insert, Record: mustJSON(t, raw)}
}

func remove(t *testing.T, table, id string) Event {
	return Event{Table: table, Type: Delete, OldRecord: mustJSON(t, map[string]string{"id": id})}
}

func TestHandleInsertIsStoredClean(t *testing.T) {
	ctx := context.Background()
	l, db := setupListener(t, Config{})

	e := models.NewExercise("Clean", models.VolumeReps, models.IntensityWeight).
		AddSet(models.NewSet(3).With(models.IntensityWeight, 80))
	require.NoError(t, l.Handle(ctx, upsert(t, "exercises", e.ToRaw())))

	got, err := db.PullExercise(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Clean", got.Name)
	assert.Equal(t, e.LastModified, got.LastModified)
	assert.False(t, got.Dirty)
}

func TestHandleStaleUpdateIsSkipped(t *testing.T) {
	ctx := context.Background()
	l, db := setupListener(t, Config{})

	e := models.NewExercise("Jerk", models.VolumeReps)
	require.NoError(t, l.Handle(ctx, upsert(t, "exercises", e.ToRaw())))

	stale := e.ToRaw()
	stale.Name = "Old Jerk"
	stale.LastModified -= 1000
	require.NoError(t, l.Handle(ctx, Event{Table: "exercises", Type: Update, Record: mustJSON(t, stale)}))

	got, err := db.PullExercise(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jerk", got.Name)
}

func TestWorkoutBeforeItsExercisesIsParked(t *testing.T) {
	ctx := context.Background()
	l, db := setupListener(t, Config{MaxAttempts: 5})

	e := models.NewExercise("Thruster", models.VolumeReps)
	w := models.NewWorkout("Fran", e.ID)

	require.NoError(t, l.Handle(ctx, upsert(t, "workouts", w.ToRaw())))
	assert.Equal(t, 1, l.Pending())
	_, err := db.PullWorkout(ctx, w.ID, false)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, l.Handle(ctx, upsert(t, "exercises", e.ToRaw())))
	assert.Equal(t, 0, l.Pending())

	got, err := db.PullWorkout(ctx, w.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{e.ID}, got.ExerciseIDs)
}

func TestParkedEventDropsDanglingAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	l, db := setupListener(t, Config{MaxAttempts: 2})

	row := models.NewExercise("Row", models.VolumeDistance)
	require.NoError(t, l.Handle(ctx, upsert(t, "exercises", row.ToRaw())))

	w := models.NewWorkout("Erg", row.ID, "never-arrives")
	require.NoError(t, l.Handle(ctx, upsert(t, "workouts", w.ToRaw())))
	assert.Equal(t, 1, l.Pending())

	// First retry counts an attempt, second applies with the reference dropped.
	require.NoError(t, l.Handle(ctx, upsert(t, "exercises", models.NewExercise("A", models.VolumeReps).ToRaw())))
	assert.Equal(t, 1, l.Pending())
	require.NoError(t, l.Handle(ctx, upsert(t, "exercises", models.NewExercise("B", models.VolumeReps).ToRaw())))
	assert.Equal(t, 0, l.Pending())

	got, err := db.PullWorkout(ctx, w.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{row.ID}, got.ExerciseIDs)
}

func TestHandleDeleteLeavesNoTombstone(t *testing.T) {
	ctx := context.Background()
	l, db := setupListener(t, Config{})

	rt := models.NewRoutine("Split")
	require.NoError(t, l.Handle(ctx, upsert(t, "routines", rt.ToRaw())))
	require.NoError(t, l.Handle(ctx, remove(t, "routines", rt.ID)))

	_, err := db.PullRoutine(ctx, rt.ID, false)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	ts, err := db.ListTombstones(ctx, models.KindRoutine)
	require.NoError(t, err)
	assert.Empty(t, ts)

	// Already gone locally.
	assert.NoError(t, l.Handle(ctx, remove(t, "routines", rt.ID)))
}

func TestDeleteDiscardsParkedChanges(t *testing.T) {
	ctx := context.Background()
	l, db := setupListener(t, Config{MaxAttempts: 1})

	w := models.NewWorkout("Ghost", "missing-exercise")
	require.NoError(t, l.Handle(ctx, upsert(t, "workouts", w.ToRaw())))
	require.Equal(t, 1, l.Pending())

	require.NoError(t, l.Handle(ctx, remove(t, "workouts", w.ID)))
	assert.Equal(t, 0, l.Pending())

	_, err := db.PullWorkout(ctx, w.ID, false)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHandleIgnoresUnknownTables(t *testing.T) {
	l, _ := setupListener(t, Config{})
	assert.NoError(t, l.Handle(context.Background(), Event{Table: "profiles", Type: Insert}))
	assert.NoError(t, l.Handle(context.Background(), Event{}))
}

func TestHandleBadRecord(t *testing.T) {
	l, _ := setupListener(t, Config{})
	err := l.Handle(context.Background(), Event{Table: "exercises", Type: Insert, Record: json.RawMessage(`"nope"`)})
	assert.Error(t, err)
}

func TestRunAppliesFeedAndReconnects(t *testing.T) {
	e1 := models.NewExercise("Swing", models.VolumeReps)
	e2 := models.NewExercise("Get-up", models.VolumeReps)
	first := upsert(t, "exercises", e1.ToRaw())
	second := upsert(t, "exercises", e2.ToRaw())

	var conns atomic.Int32
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		if conns.Add(1) == 1 {
			_ = conn.Write(ctx, websocket.MessageText, []byte("{garbage"))
			_ = wsjson.Write(ctx, conn, first)
			_ = conn.Close(websocket.StatusGoingAway, "restart")
			return
		}
		_ = wsjson.Write(ctx, conn, second)
		_, _, _ = conn.Read(ctx)
	}))
	defer srv.Close()

	l, db := setupListener(t, Config{
		URL:          "ws" + strings.TrimPrefix(srv.URL, "http"),
		Token:        "secret",
		ReconnectMin: 10 * time.Millisecond,
		ReconnectMax: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	assert.Eventually(t, func() bool {
		_, err1 := db.PullExercise(context.Background(), e1.ID)
		_, err2 := db.PullExercise(context.Background(), e2.ID)
		return err1 == nil && err2 == nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, conns.Load(), int32(2))
	assert.Equal(t, "Bearer secret", auth.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
}
