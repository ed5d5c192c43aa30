// ABOUTME: Enumerations shared by exercises, workouts, routines and logs.
// ABOUTME: Volume and intensity dimensions, entity kinds, and unit systems.
package models

import (
	"fmt"
	"time"
)

// VolumeType is the primary countable unit of a set.
type VolumeType string

const (
	VolumeReps     VolumeType = "reps"
	VolumeDistance VolumeType = "distance"
	VolumeTime     VolumeType = "time"
	VolumeCalories VolumeType = "calories"
)

// AllVolumeTypes lists every valid volume type.
var AllVolumeTypes = []VolumeType{VolumeReps, VolumeDistance, VolumeTime, VolumeCalories}

// IsValid reports whether v is a known volume type.
func (v VolumeType) IsValid() bool {
	for _, vt := range AllVolumeTypes {
		if vt == v {
			return true
		}
	}
	return false
}

// IntensityType is a secondary dimension tracked per set.
type IntensityType string

const (
	IntensityWeight     IntensityType = "weight"
	IntensitySpeed      IntensityType = "speed"
	IntensityIncline    IntensityType = "incline"
	IntensityResistance IntensityType = "resistance"
	IntensityLevel      IntensityType = "level"
)

// AllIntensityTypes lists every valid intensity type.
var AllIntensityTypes = []IntensityType{
	IntensityWeight, IntensitySpeed, IntensityIncline, IntensityResistance, IntensityLevel,
}

// IsValid reports whether t is a known intensity type.
func (t IntensityType) IsValid() bool {
	for _, it := range AllIntensityTypes {
		if it == t {
			return true
		}
	}
	return false
}

// Kind names one of the three synced entity types.
type Kind string

const (
	KindExercise Kind = "exercise"
	KindWorkout  Kind = "workout"
	KindRoutine  Kind = "routine"
)

// Units is the user's preferred measurement system.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// DaysPerWeek is the fixed number of routine slots, Sunday=0 through Saturday=6.
const DaysPerWeek = 7

// DateLayout is the key format of workout logs and user log dates.
const DateLayout = "2006-01-02"

// ValidationError reports an entity that violates a model invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Tombstone records a deletion not yet confirmed by the remote store.
type Tombstone struct {
	ID        string
	DeletedAt time.Time
}

// Stamp identifies one version of a row.
type Stamp struct {
	ID           string
	LastModified time.Time
}

// User is the singleton row of per-device settings and sync bookkeeping.
type User struct {
	ActiveRoutineID string
	LastLogDate     string
	LastSyncDate    time.Time
	Units           Units
}

// Truncate rounds t down to the millisecond precision used for persisted timestamps.
func Truncate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.UnixMilli(t.UnixMilli())
}

// FromMillis converts a persisted millisecond timestamp; zero stays the zero time.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// ToMillis converts t to Unix milliseconds; the zero time maps to zero.
func ToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
