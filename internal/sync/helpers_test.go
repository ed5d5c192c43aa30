// ABOUTME: Shared test helpers for sync package tests.
// ABOUTME: Provides database setup, a clocked in-memory remote and a controllable remote wrapper.

package sync

import (
	"context"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/harperreed/lift/internal/logging"
	"github.com/harperreed/lift/internal/remote"
	"github.com/harperreed/lift/internal/storage"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a fresh lift database in a temp dir.
func setupTestDB(t *testing.T) *storage.DB {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "lift.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

type steppingClock struct {
	mu gosync.Mutex
	t  time.Time
}

func (c *steppingClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// newTestRemote creates an in-memory canonical store with a monotonic clock.
func newTestRemote() *remote.KVStore {
	s := remote.NewKVStore(remote.NewMemoryKV())
	clock := &steppingClock{t: time.UnixMilli(1_700_000_000_000)}
	s.SetClock(clock.now)
	return s
}

// controlledRemote wraps a Remote, counting exchanges and optionally failing
// them or rewriting their responses.
type controlledRemote struct {
	remote.Remote

	mu    gosync.Mutex
	calls int
	fail  error
	alter func(*remote.ExchangeResponse)
}

func (c *controlledRemote) Exchange(ctx context.Context, req *remote.ExchangeRequest) (*remote.ExchangeResponse, error) {
	c.mu.Lock()
	c.calls++
	fail, alter := c.fail, c.alter
	c.mu.Unlock()

	if fail != nil {
		return nil, fail
	}
	resp, err := c.Remote.Exchange(ctx, req)
	if err != nil {
		return nil, err
	}
	if alter != nil {
		alter(resp)
	}
	return resp, nil
}

func (c *controlledRemote) set(fail error, alter func(*remote.ExchangeResponse)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = fail
	c.alter = alter
}

func (c *controlledRemote) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// setupTestSyncer creates a syncer over a fresh database and in-memory remote.
func setupTestSyncer(t *testing.T, opts Options) (*Syncer, *storage.DB, *controlledRemote) {
	t.Helper()

	db := setupTestDB(t)
	r := &controlledRemote{Remote: newTestRemote()}
	return New(db, r, logging.NewNop(), opts), db, r
}
