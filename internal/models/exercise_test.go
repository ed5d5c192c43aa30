// ABOUTME: Tests for the Exercise model and its flat row encoding.
// ABOUTME: Covers round-trips, delimiter-heavy text, and set shape validation.
package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, e *Exercise) *Exercise {
	t.Helper()
	got, err := ExerciseFromRaw(e.ToRaw())
	require.NoError(t, err)
	got.Dirty = e.Dirty
	return got
}

func TestExerciseRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		make func() *Exercise
	}{
		{"zero sets", func() *Exercise {
			return NewExercise("plank", VolumeTime)
		}},
		{"weighted sets", func() *Exercise {
			return NewExercise("curl", VolumeReps, IntensityWeight).
				AddSet(NewSet(12).With(IntensityWeight, 25)).
				AddSet(NewSet(10).With(IntensityWeight, 27.5))
		}},
		{"two intensity types", func() *Exercise {
			return NewExercise("treadmill", VolumeDistance, IntensitySpeed, IntensityIncline).
				AddSet(NewSet(1.5).With(IntensitySpeed, 9.2).With(IntensityIncline, 2))
		}},
		{"delimiters in notes and categories", func() *Exercise {
			return NewExercise("row", VolumeReps).
				WithNotes("tempo 3:1:1; pause, then pull").
				WithCategories("back;lats", "pull,heavy", `odd\tag`, "a:b").
				AddSet(NewSet(8))
		}},
		{"empty categories", func() *Exercise {
			return NewExercise("bike", VolumeCalories, IntensityResistance, IntensityLevel).
				AddSet(NewSet(50).With(IntensityResistance, 4).With(IntensityLevel, 7))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.make()
			assert.Equal(t, e, roundTrip(t, e))
		})
	}
}

func TestExerciseSerializationDropsStrayKeys(t *testing.T) {
	e := NewExercise("press", VolumeReps, IntensityWeight)
	e.AddSet(NewSet(5).With(IntensityWeight, 60).With(IntensitySpeed, 3))
	e.AddSet(NewSet(5).With(IntensityWeight, 60).With(IntensityLevel, 2))

	raw := e.ToRaw()
	assert.Equal(t, "reps:5,weight:60;reps:5,weight:60", raw.Sets)

	got := roundTrip(t, e)
	for i, s := range got.Sets {
		assert.Equalf(t, map[IntensityType]float64{IntensityWeight: 60}, s.Intensity, "set %d", i)
	}
}

func TestExerciseFromRawIgnoresInactiveKeys(t *testing.T) {
	got, err := ExerciseFromRaw(RawExercise{
		ID:             "e1",
		Name:           "sled",
		VolumeType:     "distance",
		IntensityTypes: "weight",
		Sets:           "distance:20,weight:80,speed:4",
	})
	require.NoError(t, err)
	require.Len(t, got.Sets, 1)
	assert.Equal(t, 20.0, got.Sets[0].Volume)
	assert.Equal(t, map[IntensityType]float64{IntensityWeight: 80}, got.Sets[0].Intensity)
}

func TestExerciseFromRawBadNumber(t *testing.T) {
	_, err := ExerciseFromRaw(RawExercise{ID: "e1", VolumeType: "reps", Sets: "reps:ten"})
	assert.Error(t, err)
}

func TestExerciseValidate(t *testing.T) {
	base := func() *Exercise {
		return NewExercise("deadlift", VolumeReps, IntensityWeight).
			AddSet(NewSet(5).With(IntensityWeight, 140))
	}

	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(e *Exercise)
		field  string
	}{
		{"empty id", func(e *Exercise) { e.ID = "" }, "id"},
		{"bad volume type", func(e *Exercise) { e.VolumeType = "laps" }, "volume_type"},
		{"bad intensity type", func(e *Exercise) { e.IntensityTypes = []IntensityType{"tempo"} }, "intensity_types"},
		{"duplicate intensity", func(e *Exercise) {
			e.IntensityTypes = []IntensityType{IntensityWeight, IntensityWeight}
		}, "intensity_types"},
		{"stray set key", func(e *Exercise) { e.Sets[0].Intensity[IntensitySpeed] = 1 }, "sets"},
		{"missing set key", func(e *Exercise) { delete(e.Sets[0].Intensity, IntensityWeight) }, "sets"},
		{"empty category", func(e *Exercise) { e.Categories = []string{""} }, "categories"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base()
			tt.mutate(e)
			var verr *ValidationError
			require.True(t, errors.As(e.Validate(), &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestExerciseMigrateSets(t *testing.T) {
	e := NewExercise("incline walk", VolumeTime, IntensitySpeed)
	e.AddSet(NewSet(600).With(IntensitySpeed, 5))

	e.IntensityTypes = []IntensityType{IntensityIncline}
	require.Error(t, e.Validate())

	e.MigrateSets()
	require.NoError(t, e.Validate())
	assert.Equal(t, map[IntensityType]float64{IntensityIncline: 0}, e.Sets[0].Intensity)
}

func TestExerciseFromFieldsValidates(t *testing.T) {
	_, err := ExerciseFromFields(ExerciseFields{ID: "e1", Name: "x", VolumeType: "bogus"})
	assert.Error(t, err)

	e, err := ExerciseFromFields(ExerciseFields{
		ID:           "e1",
		Name:         "swim",
		VolumeType:   VolumeDistance,
		LastModified: time.Date(2024, 1, 1, 12, 0, 0, 123456789, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(123), int64(e.LastModified.Nanosecond()/1e6))
}

func TestSetJSON(t *testing.T) {
	s := NewSet(12).With(IntensityWeight, 25)
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"volume":12,"weight":25}`, string(data))

	var got Set
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, s, got)
}
