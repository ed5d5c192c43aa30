// ABOUTME: Workout model: an ordered sequence of exercise references.
// ABOUTME: Exercises are referenced by id and hydrated only on deep loads.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Workout is a named, ordered list of exercises.
type Workout struct {
	ID           string
	Name         string
	ExerciseIDs  []string
	Exercises    []*Exercise // Populated on deep loads, parallel to ExerciseIDs
	LastModified time.Time
	Dirty        bool
}

// RawWorkout is the flat wire form of a workout with its child ids.
type RawWorkout struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	ExerciseIDs  []string `json:"exercise_ids" yaml:"exercise_ids"`
	LastModified int64    `json:"last_modified" yaml:"last_modified"`
}

// NewWorkout creates a dirty workout with a fresh id and the current timestamp.
func NewWorkout(name string, exerciseIDs ...string) *Workout {
	return &Workout{
		ID:           uuid.NewString(),
		Name:         name,
		ExerciseIDs:  exerciseIDs,
		LastModified: Truncate(time.Now()),
		Dirty:        true,
	}
}

// WorkoutFromFields builds a validated workout from typed fields.
func WorkoutFromFields(id, name string, exerciseIDs []string, lastModified time.Time) (*Workout, error) {
	w := &Workout{
		ID:           id,
		Name:         name,
		ExerciseIDs:  exerciseIDs,
		LastModified: Truncate(lastModified),
		Dirty:        true,
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// WorkoutFromRaw converts the wire form.
func WorkoutFromRaw(r RawWorkout) (*Workout, error) {
	w := &Workout{
		ID:           r.ID,
		Name:         r.Name,
		ExerciseIDs:  r.ExerciseIDs,
		LastModified: FromMillis(r.LastModified),
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// ToRaw converts the workout to its wire form.
func (w *Workout) ToRaw() RawWorkout {
	ids := w.ExerciseIDs
	if ids == nil {
		ids = []string{}
	}
	return RawWorkout{
		ID:           w.ID,
		Name:         w.Name,
		ExerciseIDs:  ids,
		LastModified: ToMillis(w.LastModified),
	}
}

// Validate checks the workout's identity and references.
func (w *Workout) Validate() error {
	if w.ID == "" {
		return invalid("id", "must not be empty")
	}
	for i, id := range w.ExerciseIDs {
		if id == "" {
			return invalid("exercise_ids", "position %d is empty", i)
		}
	}
	return nil
}

// AddExercise appends an exercise reference.
func (w *Workout) AddExercise(e *Exercise) *Workout {
	w.ExerciseIDs = append(w.ExerciseIDs, e.ID)
	return w
}
