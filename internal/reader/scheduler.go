package reader

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler runs a job periodically. Reconfiguring always stops the previous
// loop before a new one starts, so at most one schedule is active.
type Scheduler struct {
	job  func(context.Context)
	unit time.Duration

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration
	loops    atomic.Int32
}

func newScheduler(job func(context.Context), unit time.Duration) *Scheduler {
	if unit <= 0 {
		unit = time.Minute
	}
	return &Scheduler{job: job, unit: unit}
}

// Configure replaces the schedule with one running every intervalMinutes.
// Zero or less disables it.
func (s *Scheduler) Configure(intervalMinutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	if intervalMinutes <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	interval := time.Duration(intervalMinutes) * s.unit
	s.cancel, s.done, s.interval = cancel, done, interval

	s.loops.Add(1)
	go func() {
		defer close(done)
		defer s.loops.Add(-1)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.job(ctx)
			}
		}
	}()
}

// Interval is the active period, zero when disabled.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel, s.done, s.interval = nil, nil, 0
}
