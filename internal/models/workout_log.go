// ABOUTME: WorkoutLog model: a per-day frozen snapshot of the scheduled workout.
// ABOUTME: Copies exercise attributes at creation so later edits don't rewrite history.
package models

import "time"

// ExerciseSnapshot is the frozen copy of an exercise held by a log.
type ExerciseSnapshot struct {
	Name           string          `json:"name"`
	VolumeType     VolumeType      `json:"volume_type"`
	IntensityTypes []IntensityType `json:"intensity_types"`
	Sets           []Set           `json:"sets"`
}

// Completion tracks progress against one logged exercise.
type Completion struct {
	SetsCompleted int `json:"sets_completed"`
}

// WorkoutLog is the record for one calendar day.
type WorkoutLog struct {
	Date        string
	RoutineName string
	WorkoutName string
	Exercises   map[string]ExerciseSnapshot
	Completion  map[string]Completion
}

// NewWorkoutLog snapshots a deep-loaded workout for the given day.
func NewWorkoutLog(day time.Time, routineName string, w *Workout) *WorkoutLog {
	log := &WorkoutLog{
		Date:        day.Format(DateLayout),
		RoutineName: routineName,
		WorkoutName: w.Name,
		Exercises:   make(map[string]ExerciseSnapshot, len(w.Exercises)),
		Completion:  make(map[string]Completion, len(w.Exercises)),
	}
	for _, e := range w.Exercises {
		if e == nil {
			continue
		}
		log.Exercises[e.ID] = e.Snapshot()
		log.Completion[e.ID] = Completion{}
	}
	return log
}

// ApplySetChanges replaces the snapshot of e, clamping recorded completion to the new set count.
func (l *WorkoutLog) ApplySetChanges(e *Exercise) {
	l.Exercises[e.ID] = e.Snapshot()
	c := l.Completion[e.ID]
	if c.SetsCompleted > len(e.Sets) {
		c.SetsCompleted = len(e.Sets)
	}
	l.Completion[e.ID] = c
}

// IsComplete reports whether every logged exercise has all of its sets done.
func (l *WorkoutLog) IsComplete() bool {
	for id, snap := range l.Exercises {
		if l.Completion[id].SetsCompleted < len(snap.Sets) {
			return false
		}
	}
	return true
}
