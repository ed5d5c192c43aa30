// ABOUTME: MCP tool implementations for exercises, routines, workout logs and sync.
// ABOUTME: Ids accept unique prefixes; deletes go through the store's tombstone path.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	// list_exercises
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_exercises",
		Description: "List exercises with their planned sets, optionally filtered by category",
	}, s.handleListExercises)

	// get_routine
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_routine",
		Description: "Get a routine's weekly schedule; defaults to the active routine",
	}, s.handleGetRoutine)

	// delete_exercise
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_exercise",
		Description: "Delete an exercise by ID or ID prefix",
	}, s.handleDeleteExercise)

	// today_log
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "today_log",
		Description: "Get the workout log for today or a given date, creating missed logs first",
	}, s.handleTodayLog)

	// complete_sets
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "complete_sets",
		Description: "Record how many sets of an exercise are done in a day's log",
	}, s.handleCompleteSets)

	// sync_now
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "sync_now",
		Description: "Run a sync cycle against the remote store",
	}, s.handleSyncNow)
}

// Tool input/output types

type listExercisesInput struct {
	Category string `json:"category,omitempty" jsonschema:"Only exercises tagged with this category"`
}

type exerciseOutput struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	VolumeType     string               `json:"volume_type"`
	IntensityTypes []string             `json:"intensity_types"`
	Sets           []map[string]float64 `json:"sets"`
	Categories     []string             `json:"categories,omitempty"`
	Notes          string               `json:"notes,omitempty"`
}

type listExercisesOutput struct {
	Exercises []exerciseOutput `json:"exercises"`
	Count     int              `json:"count"`
}

type getRoutineInput struct {
	ID string `json:"id,omitempty" jsonschema:"Routine ID or prefix; the active routine when empty"`
}

type dayOutput struct {
	Day       string   `json:"day"`
	Workout   string   `json:"workout,omitempty"`
	Exercises []string `json:"exercises,omitempty"`
}

type routineOutput struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Active bool        `json:"active"`
	Days   []dayOutput `json:"days"`
}

type deleteExerciseInput struct {
	ID string `json:"id" jsonschema:"Exercise ID or prefix"`
}

type simpleOutput struct {
	Message string `json:"message"`
}

type logInput struct {
	Date string `json:"date,omitempty" jsonschema:"Day as YYYY-MM-DD; defaults to today"`
}

type loggedExerciseOutput struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Sets          int    `json:"sets"`
	SetsCompleted int    `json:"sets_completed"`
}

type logOutput struct {
	Date        string                 `json:"date"`
	RoutineName string                 `json:"routine_name,omitempty"`
	WorkoutName string                 `json:"workout_name,omitempty"`
	Exercises   []loggedExerciseOutput `json:"exercises,omitempty"`
	Complete    bool                   `json:"complete"`
	Message     string                 `json:"message"`
}

type completeSetsInput struct {
	ExerciseID string `json:"exercise_id" jsonschema:"Exercise ID or prefix"`
	Sets       int    `json:"sets" jsonschema:"Number of sets completed"`
	Date       string `json:"date,omitempty" jsonschema:"Day as YYYY-MM-DD; defaults to today"`
}

type syncInput struct{}

type syncOutput struct {
	Pushed   int    `json:"pushed"`
	Deleted  int    `json:"deleted"`
	Applied  int    `json:"applied"`
	Purged   int    `json:"purged"`
	Pending  int    `json:"pending"`
	LastSync string `json:"last_sync"`
	Message  string `json:"message"`
}

func toExerciseOutput(e *models.Exercise) exerciseOutput {
	out := exerciseOutput{
		ID:             e.ID,
		Name:           e.Name,
		VolumeType:     string(e.VolumeType),
		IntensityTypes: make([]string, 0, len(e.IntensityTypes)),
		Sets:           make([]map[string]float64, 0, len(e.Sets)),
		Categories:     e.Categories,
		Notes:          e.Notes,
	}
	for _, t := range e.IntensityTypes {
		out.IntensityTypes = append(out.IntensityTypes, string(t))
	}
	for _, set := range e.Sets {
		m := map[string]float64{string(e.VolumeType): set.Volume}
		for k, v := range set.Intensity {
			m[string(k)] = v
		}
		out.Sets = append(out.Sets, m)
	}
	return out
}

func toLogOutput(l *models.WorkoutLog) logOutput {
	out := logOutput{
		Date:        l.Date,
		RoutineName: l.RoutineName,
		WorkoutName: l.WorkoutName,
		Complete:    l.IsComplete(),
	}
	for id, snap := range l.Exercises {
		out.Exercises = append(out.Exercises, loggedExerciseOutput{
			ID:            id,
			Name:          snap.Name,
			Sets:          len(snap.Sets),
			SetsCompleted: l.Completion[id].SetsCompleted,
		})
	}
	sort.Slice(out.Exercises, func(i, j int) bool {
		return out.Exercises[i].Name < out.Exercises[j].Name
	})
	done := 0
	for _, e := range out.Exercises {
		if e.SetsCompleted >= e.Sets {
			done++
		}
	}
	out.Message = fmt.Sprintf("%s: %s, %d/%d exercises done", l.Date, l.WorkoutName, done, len(out.Exercises))
	return out
}

// Tool handlers

func (s *Server) handleListExercises(ctx context.Context, req *mcp.CallToolRequest, input listExercisesInput) (*mcp.CallToolResult, listExercisesOutput, error) {
	exercises, err := s.store.PullExercises(ctx, storage.All)
	if err != nil {
		return nil, listExercisesOutput{}, fmt.Errorf("failed to list exercises: %w", err)
	}

	out := listExercisesOutput{Exercises: []exerciseOutput{}}
	for _, e := range exercises {
		if input.Category != "" && !hasCategory(e, input.Category) {
			continue
		}
		out.Exercises = append(out.Exercises, toExerciseOutput(e))
	}
	out.Count = len(out.Exercises)
	return nil, out, nil
}

func hasCategory(e *models.Exercise, category string) bool {
	for _, c := range e.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

func (s *Server) handleGetRoutine(ctx context.Context, req *mcp.CallToolRequest, input getRoutineInput) (*mcp.CallToolResult, routineOutput, error) {
	user, err := s.store.Repository().GetUser(ctx)
	if err != nil {
		return nil, routineOutput{}, fmt.Errorf("failed to load user: %w", err)
	}

	id := user.ActiveRoutineID
	if input.ID != "" {
		id, err = s.store.ResolveID(ctx, models.KindRoutine, input.ID)
		if err != nil {
			return nil, routineOutput{}, fmt.Errorf("routine not found: %s", input.ID)
		}
	}
	if id == "" {
		return nil, routineOutput{}, errors.New("no active routine; pass a routine id")
	}

	r, err := s.store.PullRoutine(ctx, id, true)
	if err != nil {
		return nil, routineOutput{}, fmt.Errorf("routine not found: %s", id)
	}

	out := routineOutput{ID: r.ID, Name: r.Name, Active: r.ID == user.ActiveRoutineID}
	for day := time.Sunday; day <= time.Saturday; day++ {
		d := dayOutput{Day: day.String()}
		if w := r.Workouts[day]; w != nil {
			d.Workout = w.Name
			for _, e := range w.Exercises {
				if e != nil {
					d.Exercises = append(d.Exercises, e.Name)
				}
			}
		}
		out.Days = append(out.Days, d)
	}
	return nil, out, nil
}

func (s *Server) handleDeleteExercise(ctx context.Context, req *mcp.CallToolRequest, input deleteExerciseInput) (*mcp.CallToolResult, simpleOutput, error) {
	id, err := s.store.ResolveID(ctx, models.KindExercise, input.ID)
	if err != nil {
		return nil, simpleOutput{}, fmt.Errorf("exercise not found: %s", input.ID)
	}
	if err := s.store.DeleteExercise(ctx, id, false); err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to delete exercise: %w", err)
	}

	return nil, simpleOutput{
		Message: fmt.Sprintf("Deleted exercise: %s", id),
	}, nil
}

func (s *Server) logDate(date string) (string, error) {
	if date == "" {
		return s.now().Format(models.DateLayout), nil
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return "", fmt.Errorf("invalid date format: %s (use YYYY-MM-DD)", date)
	}
	return date, nil
}

// todayLog brings logs up to date and loads the one for date.
func (s *Server) todayLog(ctx context.Context, date string) (*models.WorkoutLog, error) {
	if _, err := s.logs.UpdateLogs(ctx, s.now()); err != nil {
		return nil, fmt.Errorf("failed to update logs: %w", err)
	}
	return s.store.Repository().GetLog(ctx, date)
}

func (s *Server) handleTodayLog(ctx context.Context, req *mcp.CallToolRequest, input logInput) (*mcp.CallToolResult, logOutput, error) {
	date, err := s.logDate(input.Date)
	if err != nil {
		return nil, logOutput{}, err
	}

	l, err := s.todayLog(ctx, date)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, logOutput{Date: date, Message: fmt.Sprintf("%s: rest day", date)}, nil
	}
	if err != nil {
		return nil, logOutput{}, err
	}
	return nil, toLogOutput(l), nil
}

func (s *Server) handleCompleteSets(ctx context.Context, req *mcp.CallToolRequest, input completeSetsInput) (*mcp.CallToolResult, logOutput, error) {
	date, err := s.logDate(input.Date)
	if err != nil {
		return nil, logOutput{}, err
	}

	// Logs keep exercises that have since been deleted, so an unresolvable
	// prefix is tried as a full id.
	id := input.ExerciseID
	if resolved, err := s.store.ResolveID(ctx, models.KindExercise, id); err == nil {
		id = resolved
	}

	l, err := s.logs.CompleteSets(ctx, date, id, input.Sets)
	if err != nil {
		return nil, logOutput{}, fmt.Errorf("failed to record sets: %w", err)
	}
	return nil, toLogOutput(l), nil
}

func (s *Server) handleSyncNow(ctx context.Context, req *mcp.CallToolRequest, input syncInput) (*mcp.CallToolResult, syncOutput, error) {
	if s.syncer == nil {
		return nil, syncOutput{}, errors.New("sync is not configured; run 'lift sync login' first")
	}

	res, err := s.syncer.Run(ctx)
	if err != nil {
		return nil, syncOutput{}, fmt.Errorf("sync failed: %w", err)
	}

	return nil, syncOutput{
		Pushed:   res.Pushed,
		Deleted:  res.Deleted,
		Applied:  res.Applied,
		Purged:   res.Purged,
		Pending:  res.Pending,
		LastSync: res.LastSync.Format(time.RFC3339),
		Message:  fmt.Sprintf("Synced: %d pushed, %d deleted, %d pulled", res.Pushed, res.Deleted, res.Applied),
	}, nil
}
