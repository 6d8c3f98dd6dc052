package buffer

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// SweepFunc is one sweep pass: find ready conversations and process them.
// The sweeper owns cadence and overlap control, not sweep semantics.
type SweepFunc func(ctx context.Context, now time.Time)

// Sweeper drives periodic sweeps on a fixed cadence. A tick that fires
// while a previous sweep is still running is skipped rather than queued:
// overlapping sweeps could reach the same conversation twice, and finalize
// is not idempotent.
type Sweeper struct {
	interval time.Duration
	sweep    SweepFunc

	inFlight atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}

	// now is a hook for tests; defaults to time.Now.
	now func() time.Time
}

// NewSweeper creates a sweeper that calls sweep every interval.
func NewSweeper(interval time.Duration, sweep SweepFunc) *Sweeper {
	return &Sweeper{
		interval: interval,
		sweep:    sweep,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// Start launches the sweep loop in a background goroutine. It returns
// immediately; call Stop to shut the loop down.
func (s *Sweeper) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop signals the loop to exit and waits for it to finish. A sweep in
// flight is allowed to complete.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep pass unless one is already in flight, in
// which case it logs and returns false. Exposed so the immediate-release
// path and tests can trigger a sweep outside the ticker.
func (s *Sweeper) RunOnce(ctx context.Context) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		log.Printf("[SWEEP] previous sweep still running, skipping tick")
		return false
	}
	defer s.inFlight.Store(false)

	s.sweep(ctx, s.now().UTC())
	return true
}
