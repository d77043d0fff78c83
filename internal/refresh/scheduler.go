// Package refresh periodically calls a refresh function while the user is
// idle. Any recorded interaction holds refreshing off for two intervals so
// a poll never lands on top of half-entered input.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/logging"
)

// DefaultInterval is the tick cadence when none is configured.
const DefaultInterval = 3 * time.Second

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the tick cadence. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock substitutes the time source, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Scheduler) { s.log = l }
}

// Scheduler is the handle returned by Start. It doubles as the sink for
// interaction signals.
type Scheduler struct {
	clock    clock.Clock
	interval time.Duration
	log      *logrus.Entry
	refresh  func()
	cancel   context.CancelFunc

	mu      sync.Mutex
	gate    *gate
	stopped bool
	ticks   int
}

// Start begins ticking immediately. An interaction is recorded at start, so
// the first refresh happens no sooner than two intervals later. The loop
// ends when ctx is cancelled or Stop is called.
func Start(ctx context.Context, refresh func(), opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:    clock.New(),
		interval: DefaultInterval,
		refresh:  refresh,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	s.gate = newGate(s.interval, s.clock.Now())

	ctx, s.cancel = context.WithCancel(ctx)
	ticker := s.clock.Ticker(s.interval)
	go s.run(ctx, ticker)

	s.log.WithField("interval", s.interval).Debug("auto refresh started")
	return s
}

// Interact records a user interaction and suppresses refreshing until the
// user has been idle for two intervals.
func (s *Scheduler) Interact() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate.interact(s.clock.Now())
}

// Stop ends scheduling. A refresh already running is not interrupted, but
// none starts after Stop returns. Stop may be called from inside refresh
// and more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	already := s.stopped
	s.stopped = true
	s.mu.Unlock()

	if !already {
		s.cancel()
		s.log.Debug("auto refresh stopped")
	}
}

func (s *Scheduler) run(ctx context.Context, ticker *clock.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.stopped = true
			s.mu.Unlock()
			return
		case at := <-ticker.C:
			if s.shouldRefresh(at) {
				s.refresh()
			}
		}
	}
}

func (s *Scheduler) shouldRefresh(at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
	if s.stopped {
		return false
	}
	ok := s.gate.tick(at)
	s.log.WithFields(logrus.Fields{"tick": s.ticks, "state": s.gate.state}).Trace("auto refresh tick")
	return ok
}
