// ABOUTME: Remote canonical store contract and the single-round-trip sync wire format.
// ABOUTME: Timestamps on the wire are Unix milliseconds.
package remote

import (
	"context"

	"github.com/harperreed/lift/internal/models"
)

// Remote is the authoritative store a device reconciles with.
type Remote interface {
	// Exchange pushes local changes and returns everything changed remotely
	// since req.LastSyncTimestamp.
	Exchange(ctx context.Context, req *ExchangeRequest) (*ExchangeResponse, error)
	// Delete removes one entity. Deleting an unknown id succeeds.
	Delete(ctx context.Context, kind models.Kind, id string) error
}

// DeletedRef is a pushed tombstone.
type DeletedRef struct {
	ID        string `json:"id"`
	DeletedAt int64  `json:"deletedAt"`
}

// ExchangeRequest is the body of one sync exchange.
type ExchangeRequest struct {
	LastSyncTimestamp int64                `json:"lastSyncTimestamp"`
	Exercises         []models.RawExercise `json:"exercises"`
	DeletedExercises  []DeletedRef         `json:"deletedExercises"`
	Workouts          []models.RawWorkout  `json:"workouts"`
	DeletedWorkouts   []DeletedRef         `json:"deletedWorkouts"`
	Routines          []models.RawRoutine  `json:"routines"`
	DeletedRoutines   []DeletedRef         `json:"deletedRoutines"`
}

// Acknowledgement lists the pushed rows and deletions the remote has durably
// handled. Ids missing from it stay pending on the device.
type Acknowledgement struct {
	Exercises        []string `json:"exercises"`
	Workouts         []string `json:"workouts"`
	Routines         []string `json:"routines"`
	DeletedExercises []string `json:"deletedExercises"`
	DeletedWorkouts  []string `json:"deletedWorkouts"`
	DeletedRoutines  []string `json:"deletedRoutines"`
}

// ExchangeResponse carries remote changes since the request's timestamp.
type ExchangeResponse struct {
	NewExercises     []models.RawExercise `json:"newExercises"`
	NewWorkouts      []models.RawWorkout  `json:"newWorkouts"`
	NewRoutines      []models.RawRoutine  `json:"newRoutines"`
	DeletedExercises []string             `json:"deletedExercises"`
	DeletedWorkouts  []string             `json:"deletedWorkouts"`
	DeletedRoutines  []string             `json:"deletedRoutines"`

	// Acknowledged is nil when the remote confirms the whole pushed batch.
	Acknowledged *Acknowledgement `json:"acknowledged,omitempty"`
	// ServerTime is the remote clock at the exchange; zero if not reported.
	ServerTime int64 `json:"serverTime,omitempty"`
}

// IsEmpty reports whether the request carries no changes.
func (r *ExchangeRequest) IsEmpty() bool {
	return len(r.Exercises) == 0 && len(r.Workouts) == 0 && len(r.Routines) == 0 &&
		len(r.DeletedExercises) == 0 && len(r.DeletedWorkouts) == 0 && len(r.DeletedRoutines) == 0
}
