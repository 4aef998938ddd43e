package sched

import (
	"context"
	"sync"
	"testing"
	"time"

	"futures_bot/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// memStore — Store в памяти для тестов пула.
type memStore struct {
	mu          sync.Mutex
	status      map[string]string
	tasks       map[string]TaskRow
	checkpoints map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{
		status:      make(map[string]string),
		tasks:       make(map[string]TaskRow),
		checkpoints: make(map[string][]byte),
	}
}

func (m *memStore) InsertActive(ctx context.Context, id string, kind Kind, params []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status[id] == "active" {
		return ErrDuplicate
	}
	m.status[id] = "active"
	m.tasks[id] = TaskRow{ID: id, Kind: kind, Params: params}
	delete(m.checkpoints, id)
	return nil
}

func (m *memStore) ListActive(ctx context.Context) ([]TaskRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TaskRow
	for id, st := range m.status {
		if st == "active" {
			out = append(out, m.tasks[id])
		}
	}
	return out, nil
}

func (m *memStore) MarkDone(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[id] = "done"
	delete(m.checkpoints, id)
	return nil
}

func (m *memStore) MarkFailed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[id] = "failed"
	delete(m.checkpoints, id)
	return nil
}

func (m *memStore) SaveCheckpoint(ctx context.Context, taskID string, state []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[taskID] = state
	return nil
}

func (m *memStore) LoadCheckpoint(ctx context.Context, taskID string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.checkpoints[taskID]
	return raw, ok, nil
}

func (m *memStore) statusOf(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[id]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStartRunsHandlerAndMarksDone(t *testing.T) {
	store := newMemStore()
	rt := NewRuntime(store)
	defer rt.Stop()

	var got []byte
	done := make(chan struct{})
	rt.Register("trade", func(ctx context.Context, taskID string, params []byte) error {
		got = params
		close(done)
		return nil
	})

	require.NoError(t, rt.Start(context.Background(), "t1", "trade", map[string]string{"symbol": "ETHUSDT"}))
	<-done
	waitFor(t, func() bool { return store.statusOf("t1") == "done" })
	assert.Contains(t, string(got), "ETHUSDT")
}

func TestStartDuplicateActiveTask(t *testing.T) {
	store := newMemStore()
	rt := NewRuntime(store)
	defer rt.Stop()

	block := make(chan struct{})
	rt.Register("trade", func(ctx context.Context, taskID string, params []byte) error {
		<-block
		return nil
	})

	require.NoError(t, rt.Start(context.Background(), "t1", "trade", struct{}{}))
	err := rt.Start(context.Background(), "t1", "trade", struct{}{})
	assert.ErrorIs(t, err, ErrDuplicate)

	close(block)
}

func TestFailedHandlerMarksFailed(t *testing.T) {
	store := newMemStore()
	rt := NewRuntime(store)
	defer rt.Stop()

	rt.Register("trade", func(ctx context.Context, taskID string, params []byte) error {
		return assert.AnError
	})

	require.NoError(t, rt.Start(context.Background(), "t1", "trade", struct{}{}))
	waitFor(t, func() bool { return store.statusOf("t1") == "failed" })
}

func TestRunPicksUpActiveTasksFromStore(t *testing.T) {
	store := newMemStore()
	// задача уже лежит в WAL: диспатч CLI или прошлая жизнь процесса
	require.NoError(t, store.InsertActive(context.Background(), "t1", "trade", []byte(`{}`)))

	rt := NewRuntime(store)
	done := make(chan struct{})
	rt.Register("trade", func(ctx context.Context, taskID string, params []byte) error {
		close(done)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go rt.Run(ctx, 10*time.Millisecond)
	defer func() {
		cancel()
		rt.Stop()
	}()

	<-done
	waitFor(t, func() bool { return store.statusOf("t1") == "done" })
}

func TestStopCancelsRunningTaskAndLeavesItActive(t *testing.T) {
	store := newMemStore()
	rt := NewRuntime(store)

	started := make(chan struct{})
	rt.Register("manage", func(ctx context.Context, taskID string, params []byte) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	require.NoError(t, rt.Start(context.Background(), "m1", "manage", struct{}{}))
	<-started
	rt.Stop()

	// останов процесса: задача остаётся active и возобновится после рестарта
	assert.Equal(t, "active", store.statusOf("m1"))
}

func TestCheckpointRoundTrip(t *testing.T) {
	store := newMemStore()
	rt := NewRuntime(store)
	defer rt.Stop()

	type state struct {
		Phase string `json:"phase"`
		Polls int    `json:"polls"`
	}

	ctx := context.Background()
	require.NoError(t, rt.SaveState(ctx, "t1", state{Phase: "AWAIT_FILL", Polls: 3}))

	var got state
	ok, err := rt.LoadState(ctx, "t1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state{Phase: "AWAIT_FILL", Polls: 3}, got)

	var missing state
	ok, err = rt.LoadState(ctx, "unknown", &missing)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReinsertAfterDoneDropsStaleCheckpoint(t *testing.T) {
	store := newMemStore()
	rt := NewRuntime(store)
	defer rt.Stop()

	done := make(chan struct{}, 2)
	rt.Register("trade", func(ctx context.Context, taskID string, params []byte) error {
		done <- struct{}{}
		return nil
	})

	ctx := context.Background()
	require.NoError(t, rt.Start(ctx, "t1", "trade", struct{}{}))
	<-done
	waitFor(t, func() bool { return store.statusOf("t1") == "done" })

	require.NoError(t, rt.SaveState(ctx, "t1", map[string]int{"polls": 9}))

	// повторный запуск той же тройки начинает с чистого состояния
	require.NoError(t, rt.Start(ctx, "t1", "trade", struct{}{}))
	<-done

	var st map[string]int
	ok, err := rt.LoadState(ctx, "t1", &st)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSleepCancellable(t *testing.T) {
	rt := NewRuntime(newMemStore())
	defer rt.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := rt.Sleep(ctx, time.Hour)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestActiveCount(t *testing.T) {
	store := newMemStore()
	rt := NewRuntime(store)

	block := make(chan struct{})
	rt.Register("manage", func(ctx context.Context, taskID string, params []byte) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	})

	require.NoError(t, rt.Start(context.Background(), "m1", "manage", struct{}{}))
	require.NoError(t, rt.Start(context.Background(), "m2", "manage", struct{}{}))
	waitFor(t, func() bool { return rt.ActiveCount() == 2 })

	close(block)
	waitFor(t, func() bool { return rt.ActiveCount() == 0 })
	rt.Stop()
}
