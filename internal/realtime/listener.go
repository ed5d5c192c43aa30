// ABOUTME: Listener applies the remote change feed to the local store between sync cycles.
// ABOUTME: Events whose references have not arrived yet wait in a retry queue.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/harperreed/lift/internal/logging"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/storage"
)

// Applier writes remote-origin changes through the same paths sync uses.
type Applier interface {
	ApplyRemoteExercise(ctx context.Context, e *models.Exercise) (bool, error)
	ApplyRemoteWorkout(ctx context.Context, w *models.Workout, dropDangling bool) (bool, error)
	ApplyRemoteRoutine(ctx context.Context, r *models.Routine, dropDangling bool) (bool, error)
	Delete(ctx context.Context, kind models.Kind, id string, localOnly bool) error
}

// Config configures the change feed connection.
type Config struct {
	URL          string
	Token        string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	// MaxAttempts is how many times a parked event is retried before it is
	// applied with its missing references dropped.
	MaxAttempts int
}

const maxEventSize = 1 << 20

type parked struct {
	event    Event
	attempts int
}

// Listener consumes the change feed. Handle and Run must not be used concurrently.
type Listener struct {
	cfg     Config
	applier Applier
	logger  *logging.Logger
	pending []*parked
}

// New creates a Listener.
func New(cfg Config, a Applier, logger *logging.Logger) *Listener {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = cfg.ReconnectMin
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Listener{cfg: cfg, applier: a, logger: logger.WithComponent("realtime")}
}

// Pending returns the number of parked events.
func (l *Listener) Pending() int {
	return len(l.pending)
}

// Run keeps the feed connected until ctx is done, reconnecting with
// exponential backoff.
func (l *Listener) Run(ctx context.Context) error {
	backoff := l.cfg.ReconnectMin
	for {
		connected, err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = l.cfg.ReconnectMin
		}
		l.logger.Warn("change feed disconnected", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, l.cfg.ReconnectMax)
	}
}

func (l *Listener) listen(ctx context.Context) (bool, error) {
	opts := &websocket.DialOptions{}
	if l.cfg.Token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + l.cfg.Token}}
	}
	conn, _, err := websocket.Dial(ctx, l.cfg.URL, opts)
	if err != nil {
		return false, fmt.Errorf("dial change feed: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxEventSize)
	l.logger.Info("change feed connected", "url", l.cfg.URL)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return true, err
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			l.logger.Warn("skipping malformed event", "error", err)
			continue
		}
		if err := l.Handle(ctx, ev); err != nil {
			l.logger.Warn("event not applied", "table", ev.Table, "type", ev.Type, "error", err)
		}
	}
}

// Handle applies one event. Events referencing rows that are not stored yet
// are parked and retried after each later successful apply.
func (l *Listener) Handle(ctx context.Context, ev Event) error {
	if ev.Type == "" {
		return nil
	}
	if _, ok := ev.kind(); !ok {
		l.logger.Debug("ignoring event for unknown table", "table", ev.Table)
		return nil
	}

	err := l.apply(ctx, ev, false)
	switch {
	case err == nil:
		if ev.Type == Delete {
			l.unpark(ev)
		}
		l.retryParked(ctx)
		return nil
	case errors.Is(err, storage.ErrMissingReference):
		l.pending = append(l.pending, &parked{event: ev, attempts: 1})
		l.logger.Debug("event parked until references arrive", "table", ev.Table, "error", err)
		return nil
	default:
		return err
	}
}

// retryParked reapplies parked events until a pass makes no progress.
func (l *Listener) retryParked(ctx context.Context) {
	for progress := true; progress && len(l.pending) > 0; {
		progress = false
		kept := l.pending[:0]
		for _, p := range l.pending {
			drop := p.attempts >= l.cfg.MaxAttempts
			err := l.apply(ctx, p.event, drop)
			switch {
			case err == nil:
				progress = true
				if drop {
					l.logger.Warn("applied event with dangling references dropped",
						"table", p.event.Table, "attempts", p.attempts)
				}
			case errors.Is(err, storage.ErrMissingReference):
				p.attempts++
				kept = append(kept, p)
			default:
				l.logger.Warn("discarding parked event", "table", p.event.Table, "error", err)
			}
		}
		l.pending = kept
	}
}

// unpark discards parked changes to a row the feed has since deleted.
func (l *Listener) unpark(del Event) {
	id, err := del.rowID()
	if err != nil {
		return
	}
	kept := l.pending[:0]
	for _, p := range l.pending {
		if pid, err := p.event.rowID(); err == nil && pid == id && p.event.Table == del.Table {
			continue
		}
		kept = append(kept, p)
	}
	l.pending = kept
}

func (l *Listener) apply(ctx context.Context, ev Event, dropDangling bool) error {
	kind, _ := ev.kind()

	if ev.Type == Delete {
		id, err := ev.rowID()
		if err != nil {
			return err
		}
		err = l.applier.Delete(ctx, kind, id, true)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if ev.Type != Insert && ev.Type != Update {
		return fmt.Errorf("unknown event type %q", ev.Type)
	}

	switch kind {
	case models.KindExercise:
		var raw models.RawExercise
		if err := json.Unmarshal(ev.Record, &raw); err != nil {
			return fmt.Errorf("decode exercise: %w", err)
		}
		e, err := models.ExerciseFromRaw(raw)
		if err != nil {
			return err
		}
		_, err = l.applier.ApplyRemoteExercise(ctx, e)
		return err
	case models.KindWorkout:
		var raw models.RawWorkout
		if err := json.Unmarshal(ev.Record, &raw); err != nil {
			return fmt.Errorf("decode workout: %w", err)
		}
		w, err := models.WorkoutFromRaw(raw)
		if err != nil {
			return err
		}
		_, err = l.applier.ApplyRemoteWorkout(ctx, w, dropDangling)
		return err
	default:
		var raw models.RawRoutine
		if err := json.Unmarshal(ev.Record, &raw); err != nil {
			return fmt.Errorf("decode routine: %w", err)
		}
		r, err := models.RoutineFromRaw(raw)
		if err != nil {
			return err
		}
		_, err = l.applier.ApplyRemoteRoutine(ctx, r, dropDangling)
		return err
	}
}
