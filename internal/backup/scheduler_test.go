package backup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock records scheduled callbacks so tests can fire them by hand.
type fakeClock struct {
	timers []*fakeTimer
	mu     sync.Mutex
}

type fakeTimer struct {
	fn      func()
	delay   time.Duration
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{fn: f, delay: d}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) scheduled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// fireAll runs every timer that has not been stopped.
func (c *fakeClock) fireAll() {
	c.mu.Lock()
	timers := append([]*fakeTimer(nil), c.timers...)
	c.mu.Unlock()
	for _, t := range timers {
		if !t.stopped {
			t.stopped = true
			t.fn()
		}
	}
}

func TestScheduler_CoalescesCalls(t *testing.T) {
	clock := &fakeClock{}
	var runs atomic.Int32
	s := NewScheduler(time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	}, clock.AfterFunc)

	assert.True(t, s.Queue())
	for i := 0; i < 4; i++ {
		assert.False(t, s.Queue())
	}
	assert.Equal(t, 1, clock.scheduled())
	assert.Equal(t, time.Second, clock.timers[0].delay)
	assert.True(t, s.Pending())

	clock.fireAll()
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, s.Pending())

	// A new window starts after the run completes.
	assert.True(t, s.Queue())
	clock.fireAll()
	assert.Equal(t, int32(2), runs.Load())
}

func TestScheduler_RealTimerDebounce(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(20*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}, nil)
	defer s.Close()

	for i := 0; i < 5; i++ {
		s.Queue()
	}

	require.Eventually(t, func() bool { return !s.Pending() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_CallWhileRunningIsAbsorbed(t *testing.T) {
	clock := &fakeClock{}
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32

	s := NewScheduler(time.Second, func(context.Context) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	}, clock.AfterFunc)

	s.Queue()
	go clock.fireAll()
	<-started

	assert.False(t, s.Queue())
	assert.Equal(t, 1, clock.scheduled())

	close(release)
	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_Cancel(t *testing.T) {
	clock := &fakeClock{}
	var runs atomic.Int32
	s := NewScheduler(time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	}, clock.AfterFunc)

	s.Queue()
	assert.True(t, s.Cancel())
	assert.False(t, s.Cancel())
	assert.False(t, s.Pending())

	// A stale callback firing after cancel does nothing.
	clock.timers[0].fn()
	assert.Equal(t, int32(0), runs.Load())
}

func TestScheduler_StaleCallbackAfterRequeue(t *testing.T) {
	clock := &fakeClock{}
	var runs atomic.Int32
	s := NewScheduler(time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	}, clock.AfterFunc)

	s.Queue()
	s.Cancel()
	s.Queue()

	clock.timers[0].fn()
	assert.Equal(t, int32(0), runs.Load())
	assert.True(t, s.Pending())

	clock.timers[1].fn()
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_Flush(t *testing.T) {
	clock := &fakeClock{}
	boom := errors.New("boom")
	var runs atomic.Int32
	s := NewScheduler(time.Hour, func(context.Context) error {
		runs.Add(1)
		return boom
	}, clock.AfterFunc)

	assert.NoError(t, s.Flush(context.Background()))

	s.Queue()
	assert.ErrorIs(t, s.Flush(context.Background()), boom)
	assert.Equal(t, int32(1), runs.Load())
	assert.True(t, clock.timers[0].stopped)

	// Failures are not retried.
	assert.False(t, s.Pending())
}

func TestScheduler_FlushWhileRunningReturnsRunError(t *testing.T) {
	clock := &fakeClock{}
	boom := errors.New("boom")
	started := make(chan struct{})
	release := make(chan struct{})
	s := NewScheduler(time.Second, func(context.Context) error {
		close(started)
		<-release
		return boom
	}, clock.AfterFunc)

	require.True(t, s.Queue())
	go clock.fireAll()
	<-started

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	assert.ErrorIs(t, s.Flush(context.Background()), boom)
	assert.False(t, s.Pending())
}

func TestScheduler_RunTimeoutFreesHungRun(t *testing.T) {
	clock := &fakeClock{}
	var runs atomic.Int32
	s := NewScheduler(time.Second, func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}, clock.AfterFunc, WithRunTimeout(20*time.Millisecond))

	require.True(t, s.Queue())
	clock.fireAll()

	assert.False(t, s.Pending())
	assert.True(t, s.Queue())
	clock.fireAll()
	assert.Equal(t, int32(2), runs.Load())
}

func TestScheduler_Close(t *testing.T) {
	clock := &fakeClock{}
	var runs atomic.Int32
	s := NewScheduler(time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	}, clock.AfterFunc)

	s.Queue()
	s.Close()
	assert.False(t, s.Queue())
	clock.fireAll()
	assert.Equal(t, int32(0), runs.Load())
}
