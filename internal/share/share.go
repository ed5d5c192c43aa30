// ABOUTME: Share bundles detach an exercise, workout or routine graph for transfer.
// ABOUTME: Bundles encode as YAML or JSON and import under fresh ids.
package share

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/storage"
	"gopkg.in/yaml.v3"
)

// Version is the bundle format version written by this package.
const Version = "1.0"

// Format is a bundle serialization.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ErrNotDeep is returned when packing a graph that was loaded shallow.
var ErrNotDeep = errors.New("graph is not deep-loaded")

// Bundle is a self-contained entity graph in wire form.
type Bundle struct {
	Version    string               `json:"version" yaml:"version"`
	ExportedAt time.Time            `json:"exported_at" yaml:"exported_at"`
	Tool       string               `json:"tool" yaml:"tool"`
	Exercises  []models.RawExercise `json:"exercises" yaml:"exercises"`
	Workouts   []models.RawWorkout  `json:"workouts,omitempty" yaml:"workouts,omitempty"`
	Routines   []models.RawRoutine  `json:"routines,omitempty" yaml:"routines,omitempty"`
}

func newBundle() *Bundle {
	return &Bundle{Version: Version, ExportedAt: time.Now().UTC(), Tool: "lift"}
}

// packer collects a graph, each entity once.
type packer struct {
	b    *Bundle
	seen map[string]bool
}

func (p *packer) exercise(e *models.Exercise) {
	if p.seen[e.ID] {
		return
	}
	p.seen[e.ID] = true
	p.b.Exercises = append(p.b.Exercises, e.ToRaw())
}

func (p *packer) workout(w *models.Workout) error {
	if p.seen[w.ID] {
		return nil
	}
	if len(w.Exercises) != len(w.ExerciseIDs) {
		return fmt.Errorf("pack workout %s: %w", w.ID, ErrNotDeep)
	}
	p.seen[w.ID] = true

	// Deep loads leave nil holes for exercises that are gone; the bundle
	// only references what it carries.
	raw := w.ToRaw()
	raw.ExerciseIDs = make([]string, 0, len(w.Exercises))
	for _, e := range w.Exercises {
		if e == nil {
			continue
		}
		p.exercise(e)
		raw.ExerciseIDs = append(raw.ExerciseIDs, e.ID)
	}
	p.b.Workouts = append(p.b.Workouts, raw)
	return nil
}

// PackExercise bundles a single exercise.
func PackExercise(e *models.Exercise) *Bundle {
	p := &packer{b: newBundle(), seen: map[string]bool{}}
	p.exercise(e)
	return p.b
}

// PackWorkout bundles a deep-loaded workout with its exercises.
func PackWorkout(w *models.Workout) (*Bundle, error) {
	p := &packer{b: newBundle(), seen: map[string]bool{}}
	if err := p.workout(w); err != nil {
		return nil, err
	}
	return p.b, nil
}

// PackRoutine bundles a deep-loaded routine with its workouts and exercises.
func PackRoutine(r *models.Routine) (*Bundle, error) {
	p := &packer{b: newBundle(), seen: map[string]bool{}}
	raw := r.ToRaw()
	for day, id := range r.WorkoutIDs {
		if id == "" {
			continue
		}
		w := r.Workouts[day]
		if w == nil {
			return nil, fmt.Errorf("pack routine %s: %s slot: %w", r.ID, time.Weekday(day), ErrNotDeep)
		}
		if err := p.workout(w); err != nil {
			return nil, err
		}
	}
	p.b.Routines = append(p.b.Routines, raw)
	return p.b, nil
}

// FormatFor picks a format from a file extension, defaulting to YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Encode serializes a bundle.
func Encode(b *Bundle, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.MarshalIndent(b, "", "  ")
	case FormatYAML:
		return yaml.Marshal(b)
	default:
		return nil, fmt.Errorf("unknown format: %s (use yaml or json)", f)
	}
}

// Decode parses a bundle and checks its version.
func Decode(data []byte, f Format) (*Bundle, error) {
	var b Bundle
	var err error
	switch f {
	case FormatJSON:
		err = json.Unmarshal(data, &b)
	case FormatYAML:
		err = yaml.Unmarshal(data, &b)
	default:
		return nil, fmt.Errorf("unknown format: %s (use yaml or json)", f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if b.Version != Version {
		return nil, fmt.Errorf("unsupported bundle version %q", b.Version)
	}
	return &b, nil
}

// Saver is the batch write surface Import needs.
type Saver interface {
	SaveExercises(ctx context.Context, es []*models.Exercise, opts storage.SaveOptions) (storage.SaveResult, error)
	SaveWorkouts(ctx context.Context, ws []*models.Workout, opts storage.SaveOptions) (storage.SaveResult, error)
	SaveRoutines(ctx context.Context, rs []*models.Routine, opts storage.SaveOptions) (storage.SaveResult, error)
}

// Imported maps each bundle id to the id it was saved under.
type Imported struct {
	IDs       map[string]string
	Exercises int
	Workouts  int
	Routines  int
}

// Import saves a copy of the bundle under fresh ids, so importing the same
// bundle twice yields two independent copies. Every reference must resolve
// inside the bundle. Entities are written referenced-first and marked dirty.
func Import(ctx context.Context, s Saver, b *Bundle) (*Imported, error) {
	ids := make(map[string]string)
	rename := func(id string) string {
		if id == "" {
			return ""
		}
		next := uuid.NewString()
		ids[id] = next
		return next
	}
	resolve := func(owner, id string) (string, error) {
		next, ok := ids[id]
		if !ok {
			return "", fmt.Errorf("%s references %s outside the bundle", owner, id)
		}
		return next, nil
	}

	exercises := make([]*models.Exercise, 0, len(b.Exercises))
	for _, raw := range b.Exercises {
		e, err := models.ExerciseFromRaw(raw)
		if err != nil {
			return nil, fmt.Errorf("import exercise %s: %w", raw.ID, err)
		}
		e.ID = rename(raw.ID)
		exercises = append(exercises, e)
	}

	workouts := make([]*models.Workout, 0, len(b.Workouts))
	for _, raw := range b.Workouts {
		w, err := models.WorkoutFromRaw(raw)
		if err != nil {
			return nil, fmt.Errorf("import workout %s: %w", raw.ID, err)
		}
		for i, ref := range w.ExerciseIDs {
			if w.ExerciseIDs[i], err = resolve("workout "+raw.ID, ref); err != nil {
				return nil, err
			}
		}
		w.ID = rename(raw.ID)
		workouts = append(workouts, w)
	}

	routines := make([]*models.Routine, 0, len(b.Routines))
	for _, raw := range b.Routines {
		r, err := models.RoutineFromRaw(raw)
		if err != nil {
			return nil, fmt.Errorf("import routine %s: %w", raw.ID, err)
		}
		for day, ref := range r.WorkoutIDs {
			if ref == "" {
				continue
			}
			if r.WorkoutIDs[day], err = resolve("routine "+raw.ID, ref); err != nil {
				return nil, err
			}
		}
		r.ID = rename(raw.ID)
		routines = append(routines, r)
	}

	opts := storage.SaveOptions{OverwriteTimestamp: true}
	if len(exercises) > 0 {
		if _, err := s.SaveExercises(ctx, exercises, opts); err != nil {
			return nil, fmt.Errorf("import exercises: %w", err)
		}
	}
	if len(workouts) > 0 {
		if _, err := s.SaveWorkouts(ctx, workouts, opts); err != nil {
			return nil, fmt.Errorf("import workouts: %w", err)
		}
	}
	if len(routines) > 0 {
		if _, err := s.SaveRoutines(ctx, routines, opts); err != nil {
			return nil, fmt.Errorf("import routines: %w", err)
		}
	}

	return &Imported{
		IDs:       ids,
		Exercises: len(exercises),
		Workouts:  len(workouts),
		Routines:  len(routines),
	}, nil
}
