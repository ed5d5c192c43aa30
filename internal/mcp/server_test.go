// ABOUTME: Tests for MCP server, tools, and resources.
// ABOUTME: Calls handlers directly and through an in-memory client session.
package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/lift/internal/logging"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/remote"
	"github.com/harperreed/lift/internal/storage"
	"github.com/harperreed/lift/internal/store"
	"github.com/harperreed/lift/internal/sync"
	"github.com/harperreed/lift/internal/workoutlog"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday.
var testNow = time.Date(2026, 3, 4, 9, 30, 0, 0, time.Local)

type fixture struct {
	server *Server
	db     *storage.DB
	squat  *models.Exercise
	row    *models.Exercise
	legs   *models.Workout
	split  *models.Routine
}

// setupTestServer stores a routine with legs on Wednesday, activates it and
// wires a server with an in-memory remote.
func setupTestServer(t *testing.T, withSync bool) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open(filepath.Join(t.TempDir(), "lift.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var syncer *sync.Syncer
	var r remote.Remote
	if withSync {
		r = remote.NewKVStore(remote.NewMemoryKV())
		syncer = sync.New(db, r, logging.NewNop(), sync.Options{})
	}
	st := store.New(db, r, logging.NewNop(), store.Options{})

	f := &fixture{db: db}
	f.squat = models.NewExercise("Squat", models.VolumeReps, models.IntensityWeight).
		WithCategories("legs").
		AddSet(models.NewSet(5).With(models.IntensityWeight, 100)).
		AddSet(models.NewSet(5).With(models.IntensityWeight, 100))
	f.row = models.NewExercise("Row", models.VolumeDistance).
		WithCategories("cardio").
		AddSet(models.NewSet(2000))
	require.NoError(t, st.SaveExercise(ctx, f.squat))
	require.NoError(t, st.SaveExercise(ctx, f.row))
	f.legs = models.NewWorkout("Legs", f.squat.ID, f.row.ID)
	require.NoError(t, st.SaveWorkout(ctx, f.legs))
	f.split = models.NewRoutine("Split").SetDay(time.Wednesday, f.legs)
	require.NoError(t, st.SaveRoutine(ctx, f.split))
	require.NoError(t, db.SetActiveRoutine(ctx, f.split.ID))

	srv, err := NewServer(st, workoutlog.New(db, logging.NewNop(), 7), syncer)
	require.NoError(t, err)
	srv.now = func() time.Time { return testNow }
	f.server = srv
	return f
}

func TestNewServer(t *testing.T) {
	f := setupTestServer(t, false)
	assert.NotNil(t, f.server.mcpServer)
	assert.NotNil(t, f.server.store)
	assert.NotNil(t, f.server.logs)
	assert.Nil(t, f.server.syncer)
}

func TestHandleListExercises(t *testing.T) {
	f := setupTestServer(t, false)
	ctx := context.Background()

	_, out, err := f.server.handleListExercises(ctx, &mcp.CallToolRequest{}, listExercisesInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)

	_, out, err = f.server.handleListExercises(ctx, &mcp.CallToolRequest{}, listExercisesInput{Category: "LEGS"})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	squat := out.Exercises[0]
	assert.Equal(t, "Squat", squat.Name)
	assert.Equal(t, []string{"weight"}, squat.IntensityTypes)
	require.Len(t, squat.Sets, 2)
	assert.Equal(t, map[string]float64{"reps": 5, "weight": 100}, squat.Sets[0])

	_, out, err = f.server.handleListExercises(ctx, &mcp.CallToolRequest{}, listExercisesInput{Category: "swim"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Count)
	assert.NotNil(t, out.Exercises)
}

func TestHandleGetRoutine(t *testing.T) {
	f := setupTestServer(t, false)
	ctx := context.Background()

	_, out, err := f.server.handleGetRoutine(ctx, &mcp.CallToolRequest{}, getRoutineInput{})
	require.NoError(t, err)
	assert.Equal(t, "Split", out.Name)
	assert.True(t, out.Active)
	require.Len(t, out.Days, 7)
	assert.Equal(t, "Sunday", out.Days[0].Day)
	assert.Empty(t, out.Days[0].Workout)
	assert.Equal(t, "Legs", out.Days[time.Wednesday].Workout)
	assert.Equal(t, []string{"Squat", "Row"}, out.Days[time.Wednesday].Exercises)

	_, out, err = f.server.handleGetRoutine(ctx, &mcp.CallToolRequest{}, getRoutineInput{ID: f.split.ID[:8]})
	require.NoError(t, err)
	assert.Equal(t, f.split.ID, out.ID)

	_, _, err = f.server.handleGetRoutine(ctx, &mcp.CallToolRequest{}, getRoutineInput{ID: "zzzzzzzz"})
	assert.Error(t, err)
}

func TestHandleGetRoutineWithoutActive(t *testing.T) {
	f := setupTestServer(t, false)
	require.NoError(t, f.db.SetActiveRoutine(context.Background(), ""))

	_, _, err := f.server.handleGetRoutine(context.Background(), &mcp.CallToolRequest{}, getRoutineInput{})
	assert.ErrorContains(t, err, "no active routine")
}

func TestHandleDeleteExercise(t *testing.T) {
	f := setupTestServer(t, false)
	ctx := context.Background()

	_, out, err := f.server.handleDeleteExercise(ctx, &mcp.CallToolRequest{}, deleteExerciseInput{ID: f.row.ID[:8]})
	require.NoError(t, err)
	assert.Contains(t, out.Message, f.row.ID)

	_, err = f.db.PullExercise(ctx, f.row.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	ts, err := f.db.ListTombstones(ctx, models.KindExercise)
	require.NoError(t, err)
	assert.Len(t, ts, 1, "no remote, delete stays queued")

	_, _, err = f.server.handleDeleteExercise(ctx, &mcp.CallToolRequest{}, deleteExerciseInput{ID: f.row.ID})
	assert.Error(t, err)
}

func TestHandleTodayLog(t *testing.T) {
	f := setupTestServer(t, false)
	ctx := context.Background()

	_, out, err := f.server.handleTodayLog(ctx, &mcp.CallToolRequest{}, logInput{})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-04", out.Date)
	assert.Equal(t, "Legs", out.WorkoutName)
	assert.Equal(t, "Split", out.RoutineName)
	require.Len(t, out.Exercises, 2)
	assert.Equal(t, "Row", out.Exercises[0].Name)
	assert.False(t, out.Complete)

	_, out, err = f.server.handleTodayLog(ctx, &mcp.CallToolRequest{}, logInput{Date: "2026-03-03"})
	require.NoError(t, err)
	assert.Contains(t, out.Message, "rest day")

	_, _, err = f.server.handleTodayLog(ctx, &mcp.CallToolRequest{}, logInput{Date: "March 3"})
	assert.ErrorContains(t, err, "invalid date")
}

func TestHandleCompleteSets(t *testing.T) {
	f := setupTestServer(t, false)
	ctx := context.Background()
	_, _, err := f.server.handleTodayLog(ctx, &mcp.CallToolRequest{}, logInput{})
	require.NoError(t, err)

	_, out, err := f.server.handleCompleteSets(ctx, &mcp.CallToolRequest{}, completeSetsInput{
		ExerciseID: f.squat.ID[:8], Sets: 9,
	})
	require.NoError(t, err)
	assert.False(t, out.Complete)
	for _, e := range out.Exercises {
		if e.ID == f.squat.ID {
			assert.Equal(t, 2, e.SetsCompleted, "clamped to planned sets")
		}
	}

	_, out, err = f.server.handleCompleteSets(ctx, &mcp.CallToolRequest{}, completeSetsInput{
		ExerciseID: f.row.ID, Sets: 1,
	})
	require.NoError(t, err)
	assert.True(t, out.Complete)

	_, _, err = f.server.handleCompleteSets(ctx, &mcp.CallToolRequest{}, completeSetsInput{
		ExerciseID: f.row.ID, Sets: 1, Date: "2026-03-03",
	})
	assert.Error(t, err)
}

func TestHandleSyncNow(t *testing.T) {
	f := setupTestServer(t, false)
	_, _, err := f.server.handleSyncNow(context.Background(), &mcp.CallToolRequest{}, syncInput{})
	assert.ErrorContains(t, err, "not configured")

	f = setupTestServer(t, true)
	_, out, err := f.server.handleSyncNow(context.Background(), &mcp.CallToolRequest{}, syncInput{})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Pushed)
	assert.Equal(t, 0, out.Pending)

	dirty, err := f.db.PullExercises(context.Background(), storage.Dirty)
	require.NoError(t, err)
	assert.Empty(t, dirty)
}

func TestTodayResource(t *testing.T) {
	f := setupTestServer(t, false)

	res, err := f.server.handleTodayResource(context.Background(), &mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "lift://today", res.Contents[0].URI)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &body))
	assert.Equal(t, "2026-03-04", body["date"])
	assert.Equal(t, false, body["rest_day"])
	assert.Equal(t, "Legs", body["workout_name"])

	f.server.now = func() time.Time { return testNow.AddDate(0, 0, 1) }
	res, err = f.server.handleTodayResource(context.Background(), &mcp.ReadResourceRequest{})
	require.NoError(t, err)
	body = nil
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &body))
	assert.Equal(t, true, body["rest_day"])
}

func TestRoutineResource(t *testing.T) {
	f := setupTestServer(t, false)

	res, err := f.server.handleRoutineResource(context.Background(), &mcp.ReadResourceRequest{})
	require.NoError(t, err)
	var body routineOutput
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &body))
	assert.Equal(t, "Split", body.Name)
}

func TestClientSession(t *testing.T) {
	f := setupTestServer(t, true)
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := f.server.mcpServer.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer cs.Close()

	tools, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"list_exercises", "get_routine", "delete_exercise", "today_log", "complete_sets", "sync_now",
	}, names)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "complete_sets",
		Arguments: map[string]any{"exercise_id": f.squat.ID, "sets": 1, "date": "2026-03-04"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError, "no log exists until today_log runs")

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{Name: "today_log", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	rr, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: "lift://today"})
	require.NoError(t, err)
	require.Len(t, rr.Contents, 1)
	assert.Contains(t, rr.Contents[0].Text, "Legs")
}
