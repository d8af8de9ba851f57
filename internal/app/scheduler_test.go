package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released int
	err      error
}

func (f *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held[key] {
		return nil, false, nil
	}
	f.held[key] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
		f.released++
	}, true, nil
}

func TestSchedulerRunsTasksIndependently(t *testing.T) {
	var fast, slow atomic.Int32
	s := NewScheduler(nil, zaptest.NewLogger(t),
		Task{Name: "fast", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			fast.Add(1)
			return nil
		}},
		Task{Name: "slow", Interval: time.Hour, Run: func(context.Context) error {
			slow.Add(1)
			return errors.New("boom")
		}},
	)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return fast.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), slow.Load(), "a failing task runs once at start and waits for its own ticker")
	stopped := fast.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, fast.Load(), "no runs after Stop")
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	s := NewScheduler(nil, zaptest.NewLogger(t), Task{Name: "t", Interval: time.Hour, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})

	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(1), runs.Load())
}

func TestSchedulerSkipsTaskHeldElsewhere(t *testing.T) {
	locker := &fakeLocker{held: map[string]bool{"lock:reconcile": true}}
	var runs atomic.Int32
	task := Task{Name: "reconcile", Interval: time.Hour, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}
	s := NewScheduler(locker, zaptest.NewLogger(t), task)

	s.execute(context.Background(), task)
	assert.Equal(t, int32(0), runs.Load())

	delete(locker.held, "lock:reconcile")
	s.execute(context.Background(), task)
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, 1, locker.released)
	assert.Empty(t, locker.held)
}

func TestSchedulerRunsWithoutLeaseOnLockerError(t *testing.T) {
	locker := &fakeLocker{held: map[string]bool{}, err: errors.New("redis down")}
	var runs atomic.Int32
	task := Task{Name: "review-publish", Interval: time.Hour, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}

	NewScheduler(locker, zaptest.NewLogger(t), task).execute(context.Background(), task)
	assert.Equal(t, int32(1), runs.Load())
}
