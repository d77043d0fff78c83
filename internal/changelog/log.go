// Package changelog keeps the transient notifications shown when a snapshot
// differs from the one before it. Each event expires on its own after a
// fixed lifetime unless it is dismissed first.
package changelog

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/changes"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/logging"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/model"
)

// DefaultLifetime is how long an event stays visible if nobody dismisses it.
const DefaultLifetime = 7 * time.Second

// Event is one notification. IDs are unique for the lifetime of a Log.
type Event struct {
	ID   int
	Text string
}

// Option configures a Log.
type Option func(*options)

type options struct {
	clock    clock.Clock
	lifetime time.Duration
	logger   *logrus.Entry
}

// WithClock substitutes the time source, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLifetime overrides DefaultLifetime. Non-positive values are ignored.
func WithLifetime(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lifetime = d
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *logrus.Entry) Option {
	return func(o *options) { o.logger = l }
}

// Log is an ordered list of change events for one kind of entity.
type Log[E model.Entity] struct {
	clock    clock.Clock
	lifetime time.Duration
	log      *logrus.Entry

	mu     sync.Mutex
	nextID int
	events []Event
	timers map[int]*clock.Timer
	closed bool
	notify chan struct{}
}

// New creates an empty log.
func New[E model.Entity](opts ...Option) *Log[E] {
	o := options{clock: clock.New(), lifetime: DefaultLifetime}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}
	return &Log[E]{
		clock:    o.clock,
		lifetime: o.lifetime,
		log:      o.logger,
		timers:   make(map[int]*clock.Timer),
		notify:   make(chan struct{}, 1),
	}
}

// Record compares two snapshots, appends one event per change message and
// returns how many it appended.
func (l *Log[E]) Record(oldOnes, newOnes []E) int {
	messages := changes.Compare(oldOnes, newOnes)
	if len(messages) == 0 {
		return 0
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0
	}
	events := make([]Event, len(l.events), len(l.events)+len(messages))
	copy(events, l.events)
	for _, text := range messages {
		id := l.nextID
		l.nextID++
		events = append(events, Event{ID: id, Text: text})
		l.timers[id] = l.clock.AfterFunc(l.lifetime, func() { l.expire(id) })
		l.log.WithField("event", id).Debug(text)
	}
	l.events = events
	l.mu.Unlock()

	l.signal()
	return len(messages)
}

// Dismiss removes the event with the given id. Unknown ids are ignored.
func (l *Log[E]) Dismiss(id int) {
	if l.remove(id) {
		l.signal()
	}
}

func (l *Log[E]) expire(id int) {
	if l.remove(id) {
		l.log.WithField("event", id).Debug("change event expired")
		l.signal()
	}
}

func (l *Log[E]) remove(id int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.timers[id]; ok {
		t.Stop()
		delete(l.timers, id)
	}

	idx := -1
	for i, e := range l.events {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	events := make([]Event, 0, len(l.events)-1)
	events = append(events, l.events[:idx]...)
	events = append(events, l.events[idx+1:]...)
	l.events = events
	return true
}

// Events returns the current events, oldest first.
func (l *Log[E]) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Notify returns a channel that receives a value after the event list
// changes. Signals coalesce; read Events for the current state.
func (l *Log[E]) Notify() <-chan struct{} {
	return l.notify
}

// Close stops all pending expiry timers. Recording after Close is a no-op.
func (l *Log[E]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
}

func (l *Log[E]) signal() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}
