// ABOUTME: Exercise model with ordered sets and volume/intensity dimensions.
// ABOUTME: Provides tagged constructors, validation, and flat row conversion.
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/lift/internal/codec"
)

// Set is one set of an exercise: a volume plus a value per active intensity type.
type Set struct {
	Volume    float64
	Intensity map[IntensityType]float64
}

// NewSet creates a set with the given volume and no intensity values.
func NewSet(volume float64) Set {
	return Set{Volume: volume, Intensity: map[IntensityType]float64{}}
}

// With sets an intensity value and returns the set for chaining.
func (s Set) With(t IntensityType, v float64) Set {
	if s.Intensity == nil {
		s.Intensity = map[IntensityType]float64{}
	}
	s.Intensity[t] = v
	return s
}

// MarshalJSON encodes the set as {"volume": v, "<intensity>": x, ...}.
func (s Set) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, len(s.Intensity)+1)
	m["volume"] = s.Volume
	for k, v := range s.Intensity {
		m[string(k)] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes the object form produced by MarshalJSON.
func (s *Set) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	s.Volume = m["volume"]
	s.Intensity = make(map[IntensityType]float64, len(m))
	for k, v := range m {
		if k == "volume" {
			continue
		}
		s.Intensity[IntensityType(k)] = v
	}
	return nil
}

// Exercise is a named movement with its planned sets.
type Exercise struct {
	ID             string
	Name           string
	VolumeType     VolumeType
	IntensityTypes []IntensityType
	Sets           []Set
	Notes          string
	Categories     []string
	LastModified   time.Time
	Dirty          bool
}

// ExerciseFields carries every typed field of an exercise for ExerciseFromFields.
type ExerciseFields struct {
	ID             string
	Name           string
	VolumeType     VolumeType
	IntensityTypes []IntensityType
	Sets           []Set
	Notes          string
	Categories     []string
	LastModified   time.Time
}

// RawExercise is the flat persisted and wire form of an exercise.
type RawExercise struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	VolumeType     string `json:"volume_type" yaml:"volume_type"`
	IntensityTypes string `json:"intensity_types" yaml:"intensity_types"`
	Sets           string `json:"sets" yaml:"sets"`
	Notes          string `json:"notes" yaml:"notes"`
	Categories     string `json:"categories" yaml:"categories"`
	LastModified   int64  `json:"last_modified" yaml:"last_modified"`
}

// NewExercise creates a dirty exercise with a fresh id and the current timestamp.
func NewExercise(name string, volume VolumeType, intensity ...IntensityType) *Exercise {
	return &Exercise{
		ID:             uuid.NewString(),
		Name:           name,
		VolumeType:     volume,
		IntensityTypes: intensity,
		LastModified:   Truncate(time.Now()),
		Dirty:          true,
	}
}

// ExerciseFromFields builds a validated exercise from typed fields.
func ExerciseFromFields(f ExerciseFields) (*Exercise, error) {
	e := &Exercise{
		ID:             f.ID,
		Name:           f.Name,
		VolumeType:     f.VolumeType,
		IntensityTypes: f.IntensityTypes,
		Sets:           f.Sets,
		Notes:          f.Notes,
		Categories:     f.Categories,
		LastModified:   Truncate(f.LastModified),
		Dirty:          true,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// ExerciseFromRaw decodes a flat row. Set keys outside the active dimensions are dropped.
func ExerciseFromRaw(r RawExercise) (*Exercise, error) {
	types, err := codec.DecodeList(r.IntensityTypes)
	if err != nil {
		return nil, fmt.Errorf("decode intensity types: %w", err)
	}
	intensity := make([]IntensityType, 0, len(types))
	for _, t := range types {
		intensity = append(intensity, IntensityType(t))
	}

	volume := VolumeType(r.VolumeType)
	sets, err := decodeSets(r.Sets, volume, intensity)
	if err != nil {
		return nil, fmt.Errorf("decode sets: %w", err)
	}

	categories, err := codec.DecodeList(r.Categories)
	if err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}

	if len(intensity) == 0 {
		intensity = nil
	}
	return &Exercise{
		ID:             r.ID,
		Name:           r.Name,
		VolumeType:     volume,
		IntensityTypes: intensity,
		Sets:           sets,
		Notes:          r.Notes,
		Categories:     categories,
		LastModified:   FromMillis(r.LastModified),
	}, nil
}

// ToRaw encodes the exercise as a flat row.
func (e *Exercise) ToRaw() RawExercise {
	types := make([]string, len(e.IntensityTypes))
	for i, t := range e.IntensityTypes {
		types[i] = string(t)
	}
	return RawExercise{
		ID:             e.ID,
		Name:           e.Name,
		VolumeType:     string(e.VolumeType),
		IntensityTypes: codec.EncodeList(types),
		Sets:           encodeSets(e.VolumeType, e.IntensityTypes, e.Sets),
		Notes:          e.Notes,
		Categories:     codec.EncodeList(e.Categories),
		LastModified:   ToMillis(e.LastModified),
	}
}

// WithNotes sets free-text notes.
func (e *Exercise) WithNotes(notes string) *Exercise {
	e.Notes = notes
	return e
}

// WithCategories sets the category tags, dropping duplicates.
func (e *Exercise) WithCategories(categories ...string) *Exercise {
	seen := make(map[string]bool, len(categories))
	e.Categories = nil
	for _, c := range categories {
		if seen[c] {
			continue
		}
		seen[c] = true
		e.Categories = append(e.Categories, c)
	}
	return e
}

// AddSet appends a set.
func (e *Exercise) AddSet(s Set) *Exercise {
	e.Sets = append(e.Sets, s)
	return e
}

// Validate checks enums, tag and set shape. Every set must carry exactly the
// active intensity types.
func (e *Exercise) Validate() error {
	if e.ID == "" {
		return invalid("id", "must not be empty")
	}
	if !e.VolumeType.IsValid() {
		return invalid("volume_type", "unknown volume type %q", e.VolumeType)
	}

	active := make(map[IntensityType]bool, len(e.IntensityTypes))
	for _, t := range e.IntensityTypes {
		if !t.IsValid() {
			return invalid("intensity_types", "unknown intensity type %q", t)
		}
		if active[t] {
			return invalid("intensity_types", "duplicate intensity type %q", t)
		}
		active[t] = true
	}

	for i, s := range e.Sets {
		for k := range s.Intensity {
			if !active[k] {
				return invalid("sets", "set %d has inactive key %q", i, k)
			}
		}
		for t := range active {
			if _, ok := s.Intensity[t]; !ok {
				return invalid("sets", "set %d missing %q", i, t)
			}
		}
	}

	for _, c := range e.Categories {
		if c == "" {
			return invalid("categories", "empty category")
		}
	}
	return nil
}

// MigrateSets reshapes every set to the active intensity types: missing values
// default to zero and keys no longer active are dropped.
func (e *Exercise) MigrateSets() {
	for i := range e.Sets {
		next := make(map[IntensityType]float64, len(e.IntensityTypes))
		for _, t := range e.IntensityTypes {
			next[t] = e.Sets[i].Intensity[t]
		}
		e.Sets[i].Intensity = next
	}
}

// Snapshot freezes the defining attributes of the exercise for a workout log.
func (e *Exercise) Snapshot() ExerciseSnapshot {
	sets := make([]Set, len(e.Sets))
	for i, s := range e.Sets {
		cp := Set{Volume: s.Volume, Intensity: make(map[IntensityType]float64, len(s.Intensity))}
		for k, v := range s.Intensity {
			cp.Intensity[k] = v
		}
		sets[i] = cp
	}
	return ExerciseSnapshot{
		Name:           e.Name,
		VolumeType:     e.VolumeType,
		IntensityTypes: append([]IntensityType(nil), e.IntensityTypes...),
		Sets:           sets,
	}
}

func encodeSets(volume VolumeType, intensity []IntensityType, sets []Set) string {
	records := make([][]codec.Pair, 0, len(sets))
	for _, s := range sets {
		rec := []codec.Pair{{Key: string(volume), Value: formatFloat(s.Volume)}}
		for _, t := range intensity {
			v, ok := s.Intensity[t]
			if !ok {
				continue
			}
			rec = append(rec, codec.Pair{Key: string(t), Value: formatFloat(v)})
		}
		records = append(records, rec)
	}
	return codec.EncodeRecords(records)
}

func decodeSets(s string, volume VolumeType, intensity []IntensityType) ([]Set, error) {
	records, err := codec.DecodeRecords(s)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	active := make(map[IntensityType]bool, len(intensity))
	for _, t := range intensity {
		active[t] = true
	}

	sets := make([]Set, 0, len(records))
	for _, rec := range records {
		set := Set{Intensity: make(map[IntensityType]float64, len(intensity))}
		for _, p := range rec {
			v, err := strconv.ParseFloat(p.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", p.Key, err)
			}
			switch {
			case p.Key == string(volume):
				set.Volume = v
			case active[IntensityType(p.Key)]:
				set.Intensity[IntensityType(p.Key)] = v
			}
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
