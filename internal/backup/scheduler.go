package backup

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultDebounce is the delay between the first queued request and the
// upload it triggers.
const DefaultDebounce = 3 * time.Second

// DefaultUploadTimeout bounds a queued upload.
const DefaultUploadTimeout = 2 * time.Minute

// Timer is the part of *time.Timer the scheduler uses.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type schedulerState int

const (
	stateIdle schedulerState = iota
	statePending
	stateRunning
)

// runResult is one run's completion signal and outcome. err is written
// before done is closed.
type runResult struct {
	done chan struct{}
	err  error
}

// Scheduler coalesces upload requests. At most one upload is pending or
// running at a time; requests made meanwhile are absorbed and do not move
// the timer. Failed runs are logged and not retried.
type Scheduler struct {
	run       func(ctx context.Context) error
	afterFunc AfterFunc
	timer     Timer
	current   *runResult
	delay     time.Duration
	timeout   time.Duration
	state     schedulerState
	gen       uint64
	mu        sync.Mutex
	closed    bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithRunTimeout bounds each timer-triggered run. Zero means no deadline.
func WithRunTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.timeout = d }
}

// NewScheduler creates a scheduler that calls run after delay.
func NewScheduler(delay time.Duration, run func(ctx context.Context) error, afterFunc AfterFunc, opts ...SchedulerOption) *Scheduler {
	if afterFunc == nil {
		afterFunc = realAfterFunc
	}
	if delay < 0 {
		delay = 0
	}
	s := &Scheduler{
		run:       run,
		afterFunc: afterFunc,
		delay:     delay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Queue schedules a run after the default delay. It reports whether a new
// run was scheduled.
func (s *Scheduler) Queue() bool {
	return s.QueueAfter(s.delay)
}

// QueueAfter schedules a run after d unless one is already pending or
// running.
func (s *Scheduler) QueueAfter(d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state != stateIdle {
		return false
	}

	s.state = statePending
	s.gen++
	gen := s.gen
	s.timer = s.afterFunc(d, func() { s.fire(gen) })
	return true
}

// Pending reports whether a run is scheduled or in progress.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != stateIdle
}

// Cancel drops a scheduled run. A run already in progress is unaffected.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked()
}

func (s *Scheduler) cancelLocked() bool {
	if s.state != statePending {
		return false
	}
	s.timer.Stop()
	s.timer = nil
	s.gen++
	s.state = stateIdle
	return true
}

// Flush runs a scheduled upload immediately and returns its error. If an
// upload is already running it waits for it. With nothing pending it
// returns nil.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case statePending:
		s.timer.Stop()
		s.timer = nil
		s.gen++
		s.begin()
		s.mu.Unlock()
		return s.execute(ctx)
	case stateRunning:
		r := s.current
		s.mu.Unlock()
		select {
		case <-r.done:
			return r.err
		case <-ctx.Done():
			return ctx.Err()
		}
	default:
		s.mu.Unlock()
		return nil
	}
}

// Close drops any scheduled run, waits for a running one and refuses new
// requests.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.cancelLocked()
	r := s.current
	running := s.state == stateRunning
	s.mu.Unlock()

	if running {
		<-r.done
	}
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != statePending {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.begin()
	s.mu.Unlock()

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.execute(ctx); err != nil {
		slog.Debug("scheduled run returned an error", "error", err)
	}
}

// begin must be called with mu held.
func (s *Scheduler) begin() {
	s.state = stateRunning
	s.current = &runResult{done: make(chan struct{})}
}

func (s *Scheduler) execute(ctx context.Context) (err error) {
	s.mu.Lock()
	r := s.current
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		r.err = err
		s.state = stateIdle
		close(r.done)
		s.mu.Unlock()
	}()
	return s.run(ctx)
}
