// ABOUTME: Routine model: a weekly schedule of seven workout-or-rest slots.
// ABOUTME: Slot index is the weekday, Sunday=0 through Saturday=6.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Routine maps each weekday to a workout id, "" meaning a rest day.
type Routine struct {
	ID           string
	Name         string
	WorkoutIDs   [DaysPerWeek]string
	Workouts     [DaysPerWeek]*Workout // Populated on deep loads
	LastModified time.Time
	Dirty        bool
}

// RawRoutine is the flat wire form of a routine. Rest days are null.
type RawRoutine struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	WorkoutIDs   []*string `json:"workout_ids" yaml:"workout_ids"`
	LastModified int64     `json:"last_modified" yaml:"last_modified"`
}

// NewRoutine creates a dirty all-rest routine with a fresh id.
func NewRoutine(name string) *Routine {
	return &Routine{
		ID:           uuid.NewString(),
		Name:         name,
		LastModified: Truncate(time.Now()),
		Dirty:        true,
	}
}

// RoutineFromFields builds a routine from a weekday slice, which must have exactly seven entries.
func RoutineFromFields(id, name string, workoutIDs []string, lastModified time.Time) (*Routine, error) {
	if id == "" {
		return nil, invalid("id", "must not be empty")
	}
	if len(workoutIDs) != DaysPerWeek {
		return nil, invalid("workout_ids", "expected %d slots, got %d", DaysPerWeek, len(workoutIDs))
	}
	r := &Routine{
		ID:           id,
		Name:         name,
		LastModified: Truncate(lastModified),
		Dirty:        true,
	}
	copy(r.WorkoutIDs[:], workoutIDs)
	return r, nil
}

// RoutineFromRaw converts the wire form.
func RoutineFromRaw(raw RawRoutine) (*Routine, error) {
	if raw.ID == "" {
		return nil, invalid("id", "must not be empty")
	}
	if len(raw.WorkoutIDs) != DaysPerWeek {
		return nil, invalid("workout_ids", "expected %d slots, got %d", DaysPerWeek, len(raw.WorkoutIDs))
	}
	r := &Routine{
		ID:           raw.ID,
		Name:         raw.Name,
		LastModified: FromMillis(raw.LastModified),
	}
	for i, id := range raw.WorkoutIDs {
		if id != nil {
			r.WorkoutIDs[i] = *id
		}
	}
	return r, nil
}

// ToRaw converts the routine to its wire form.
func (r *Routine) ToRaw() RawRoutine {
	ids := make([]*string, DaysPerWeek)
	for i, id := range r.WorkoutIDs {
		if id != "" {
			ids[i] = &id
		}
	}
	return RawRoutine{
		ID:           r.ID,
		Name:         r.Name,
		WorkoutIDs:   ids,
		LastModified: ToMillis(r.LastModified),
	}
}

// SetDay schedules a workout on a weekday; nil makes it a rest day.
func (r *Routine) SetDay(day time.Weekday, w *Workout) *Routine {
	if w == nil {
		r.WorkoutIDs[day] = ""
		r.Workouts[day] = nil
		return r
	}
	r.WorkoutIDs[day] = w.ID
	r.Workouts[day] = w
	return r
}

// WorkoutIDSet returns the distinct scheduled workout ids in weekday order.
func (r *Routine) WorkoutIDSet() []string {
	var ids []string
	seen := make(map[string]bool)
	for _, id := range r.WorkoutIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
