package gc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the default wait between two background sweeps.
const DefaultInterval = time.Second

// State is the lifecycle state of a Scheduler.
type State int32

const (
	// StateIdle means the scheduler was created but not started.
	StateIdle State = iota
	// StateRunning means the background loop is active.
	StateRunning
	// StateStopped is terminal; a stopped scheduler cannot be restarted.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Scheduler runs a sweep function in a background goroutine: sweep, wait
// for the interval, repeat. The stop signal is observed between cycles only;
// a sweep in progress always runs to completion.
type Scheduler struct {
	sweep    func(ctx context.Context)
	interval atomic.Int64
	cycles   atomic.Int64

	mu       sync.Mutex
	state    State
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates an idle scheduler. An interval <= 0 makes the loop
// sweep back-to-back without waiting.
func NewScheduler(interval time.Duration, sweep func(ctx context.Context)) *Scheduler {
	s := &Scheduler{sweep: sweep}
	s.interval.Store(int64(interval))
	return s
}

// SetInterval changes the wait between sweeps. When running, the new value
// applies from the next wait on.
func (s *Scheduler) SetInterval(d time.Duration) {
	s.interval.Store(int64(d))
}

// Interval returns the wait between sweeps.
func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// Cycles returns the number of sweeps the background loop has completed.
func (s *Scheduler) Cycles() int64 {
	return s.cycles.Load()
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the background loop. Starting a running scheduler is a
// no-op; starting a stopped one returns ErrSchedulerStopped. Cancelling ctx
// ends the loop after the current cycle and moves the scheduler to
// StateStopped; sweeps receive ctx's values but not its cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRunning:
		return nil
	case StateStopped:
		return ErrSchedulerStopped
	}

	s.state = StateRunning
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(ctx, s.stopCh, s.doneCh)
	return nil
}

// Stop signals the loop to finish and waits for it to exit. An idle wait
// is interrupted immediately; a running sweep is allowed to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.state = StateStopped
		s.mu.Unlock()
		return
	case StateStopped:
		s.mu.Unlock()
		return
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(stopCh) })
	<-doneCh

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	defer func() {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
	}()

	sweepCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		s.sweep(sweepCtx)
		s.cycles.Add(1)

		d := s.Interval()
		if d <= 0 {
			continue
		}

		timer := time.NewTimer(d)
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
