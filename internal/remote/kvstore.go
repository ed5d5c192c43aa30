// ABOUTME: Canonical store built on a key-value backend with last-write-wins merge.
// ABOUTME: Each entity is one JSON envelope; deletes leave a marker so other devices see them.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harperreed/lift/internal/models"
)

// KV is the minimal key-value surface KVStore needs.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Keys() ([][]byte, error)
}

// Syncer is implemented by backends that replicate to a cloud copy.
type Syncer interface {
	Sync() error
}

// envelope is the stored form of one entity version or deletion marker.
type envelope struct {
	Kind         models.Kind     `json:"kind"`
	ID           string          `json:"id"`
	LastModified int64           `json:"lastModified"`
	UpdatedAt    int64           `json:"updatedAt"` // store clock when written
	Deleted      bool            `json:"deleted,omitempty"`
	DeletedAt    int64           `json:"deletedAt,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// version is the timestamp last-write-wins compares against.
func (e *envelope) version() int64 {
	if e.Deleted {
		return e.DeletedAt
	}
	return e.LastModified
}

// KVStore implements Remote over a KV backend.
type KVStore struct {
	kv  KV
	now func() time.Time
	mu  sync.Mutex
}

// NewKVStore creates a canonical store over kv.
func NewKVStore(kv KV) *KVStore {
	return &KVStore{kv: kv, now: time.Now}
}

// SetClock replaces the store clock.
func (s *KVStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func key(kind models.Kind, id string) []byte {
	return []byte(string(kind) + ":" + id)
}

// Exchange merges the pushed batch and returns every change at or after the
// request timestamp that the caller did not push itself.
func (s *KVStore) Exchange(ctx context.Context, req *ExchangeRequest) (*ExchangeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.syncBackend(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	entries, err := s.load()
	if err != nil {
		return nil, err
	}

	now := s.now().UnixMilli()
	ack := &Acknowledgement{}
	resp := &ExchangeResponse{Acknowledged: ack, ServerTime: now}
	pushed := make(map[string]bool)

	merge := func(kind models.Kind, id string, lastModified int64, data any) (string, error) {
		k := string(key(kind, id))
		pushed[k] = true
		if cur, ok := entries[k]; ok && cur.version() > lastModified {
			return k, nil
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("encode %s %s: %w", kind, id, err)
		}
		env := &envelope{Kind: kind, ID: id, LastModified: lastModified, UpdatedAt: now, Data: raw}
		if err := s.put(env); err != nil {
			return "", err
		}
		entries[k] = env
		return "", nil
	}

	// A push that lost to a newer stored version is still acknowledged; the
	// newer version is returned so the device converges.
	var superseded []string
	for _, e := range req.Exercises {
		k, err := merge(models.KindExercise, e.ID, e.LastModified, e)
		if err != nil {
			return nil, err
		}
		ack.Exercises = append(ack.Exercises, e.ID)
		if k != "" {
			superseded = append(superseded, k)
		}
	}
	for _, w := range req.Workouts {
		k, err := merge(models.KindWorkout, w.ID, w.LastModified, w)
		if err != nil {
			return nil, err
		}
		ack.Workouts = append(ack.Workouts, w.ID)
		if k != "" {
			superseded = append(superseded, k)
		}
	}
	for _, r := range req.Routines {
		k, err := merge(models.KindRoutine, r.ID, r.LastModified, r)
		if err != nil {
			return nil, err
		}
		ack.Routines = append(ack.Routines, r.ID)
		if k != "" {
			superseded = append(superseded, k)
		}
	}

	bury := func(kind models.Kind, refs []DeletedRef) ([]string, error) {
		var ids []string
		for _, ref := range refs {
			k := string(key(kind, ref.ID))
			pushed[k] = true
			ids = append(ids, ref.ID)
			if cur, ok := entries[k]; ok && cur.version() > ref.DeletedAt {
				superseded = append(superseded, k)
				continue
			}
			env := &envelope{Kind: kind, ID: ref.ID, UpdatedAt: now, Deleted: true, DeletedAt: ref.DeletedAt}
			if err := s.put(env); err != nil {
				return nil, err
			}
			entries[k] = env
		}
		return ids, nil
	}
	if ack.DeletedExercises, err = bury(models.KindExercise, req.DeletedExercises); err != nil {
		return nil, err
	}
	if ack.DeletedWorkouts, err = bury(models.KindWorkout, req.DeletedWorkouts); err != nil {
		return nil, err
	}
	if ack.DeletedRoutines, err = bury(models.KindRoutine, req.DeletedRoutines); err != nil {
		return nil, err
	}

	force := make(map[string]bool, len(superseded))
	for _, k := range superseded {
		force[k] = true
	}

	keys := make([]string, 0, len(entries))
	for k, env := range entries {
		if force[k] || (!pushed[k] && env.UpdatedAt >= req.LastSyncTimestamp) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := resp.add(entries[k]); err != nil {
			return nil, err
		}
	}

	if err := s.syncBackend(); err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *ExchangeResponse) add(env *envelope) error {
	if env.Deleted {
		switch env.Kind {
		case models.KindExercise:
			r.DeletedExercises = append(r.DeletedExercises, env.ID)
		case models.KindWorkout:
			r.DeletedWorkouts = append(r.DeletedWorkouts, env.ID)
		case models.KindRoutine:
			r.DeletedRoutines = append(r.DeletedRoutines, env.ID)
		}
		return nil
	}

	var err error
	switch env.Kind {
	case models.KindExercise:
		var e models.RawExercise
		if err = json.Unmarshal(env.Data, &e); err == nil {
			r.NewExercises = append(r.NewExercises, e)
		}
	case models.KindWorkout:
		var w models.RawWorkout
		if err = json.Unmarshal(env.Data, &w); err == nil {
			r.NewWorkouts = append(r.NewWorkouts, w)
		}
	case models.KindRoutine:
		var rt models.RawRoutine
		if err = json.Unmarshal(env.Data, &rt); err == nil {
			r.NewRoutines = append(r.NewRoutines, rt)
		}
	}
	if err != nil {
		return fmt.Errorf("decode %s %s: %w", env.Kind, env.ID, err)
	}
	return nil
}

// Delete writes a deletion marker stamped with the store clock.
func (s *KVStore) Delete(ctx context.Context, kind models.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	now := s.now().UnixMilli()
	if err := s.put(&envelope{Kind: kind, ID: id, UpdatedAt: now, Deleted: true, DeletedAt: now}); err != nil {
		return err
	}
	return s.syncBackend()
}

func (s *KVStore) load() (map[string]*envelope, error) {
	keys, err := s.kv.Keys()
	if err != nil {
		return nil, fmt.Errorf("%w: list keys: %v", ErrUnavailable, err)
	}
	entries := make(map[string]*envelope, len(keys))
	for _, k := range keys {
		if !isEntityKey(k) {
			continue
		}
		val, err := s.kv.Get(k)
		if err != nil {
			return nil, fmt.Errorf("%w: get %s: %v", ErrUnavailable, k, err)
		}
		var env envelope
		if err := json.Unmarshal(val, &env); err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		entries[string(k)] = &env
	}
	return entries, nil
}

func isEntityKey(k []byte) bool {
	for _, kind := range []models.Kind{models.KindExercise, models.KindWorkout, models.KindRoutine} {
		if bytes.HasPrefix(k, []byte(string(kind)+":")) {
			return true
		}
	}
	return false
}

func (s *KVStore) put(env *envelope) error {
	val, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", env.Kind, env.ID, err)
	}
	if err := s.kv.Set(key(env.Kind, env.ID), val); err != nil {
		return fmt.Errorf("%w: set %s %s: %v", ErrUnavailable, env.Kind, env.ID, err)
	}
	return nil
}

func (s *KVStore) syncBackend() error {
	syncer, ok := s.kv.(Syncer)
	if !ok {
		return nil
	}
	if err := syncer.Sync(); err != nil {
		return fmt.Errorf("%w: sync backend: %v", ErrUnavailable, err)
	}
	return nil
}

// MemoryKV is an in-process KV for tests and local development.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Get returns the value stored at key.
func (m *MemoryKV) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return append([]byte(nil), v...), nil
}

// Set stores value at key.
func (m *MemoryKV) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

// Delete removes key.
func (m *MemoryKV) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

// Keys lists every key in sorted order.
func (m *MemoryKV) Keys() ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.data))
	for k := range m.data {
		names = append(names, k)
	}
	sort.Strings(names)
	keys := make([][]byte, len(names))
	for i, k := range names {
		keys[i] = []byte(k)
	}
	return keys, nil
}
