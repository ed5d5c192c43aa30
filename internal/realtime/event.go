// ABOUTME: Row-level change events delivered by the remote change feed.
// ABOUTME: Records use the same flat wire form as the sync exchange.
package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/harperreed/lift/internal/models"
)

// EventType is the row operation that produced an event.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Event is one row change on the exercises, workouts or routines table.
type Event struct {
	Table     string          `json:"table"`
	Type      EventType       `json:"type"`
	Record    json.RawMessage `json:"record,omitempty"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
}

var tableKinds = map[string]models.Kind{
	"exercises": models.KindExercise,
	"workouts":  models.KindWorkout,
	"routines":  models.KindRoutine,
}

func (e Event) kind() (models.Kind, bool) {
	k, ok := tableKinds[e.Table]
	return k, ok
}

// rowID extracts the id of the affected row. Deletes carry it in old_record.
func (e Event) rowID() (string, error) {
	rec := e.Record
	if e.Type == Delete && len(e.OldRecord) > 0 {
		rec = e.OldRecord
	}
	var row struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec, &row); err != nil {
		return "", fmt.Errorf("decode %s row id: %w", e.Table, err)
	}
	if row.ID == "" {
		return "", fmt.Errorf("%s %s event without id", e.Table, e.Type)
	}
	return row.ID, nil
}
