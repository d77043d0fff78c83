package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/live"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/model"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/refresh"
)

const fetchTimeout = 10 * time.Second

// --- Bubble Tea messages ---

// feedsOpenedMsg carries the handles created when the model starts.
type feedsOpenedMsg struct {
	queue  *live.Channel[*model.QueueDetail]
	user   *live.Channel[*model.MyUser]
	poller *refresh.Scheduler
	err    error
}

// feedMsg reports the state of a live feed after it changed. Values holds
// every snapshot the feed handed to its callback since the last feedMsg, in
// order. A deletion shows up as a nil snapshot.
type feedMsg[T any] struct {
	values []T
	err    error
	done   bool
}

// pollMsg delivers a queue fetched over REST. Manual fetches do not come
// from the poller and must not re-arm its waiter.
type pollMsg struct {
	queue  *model.QueueDetail
	err    error
	manual bool
}

// changesMsg is sent when a change log's event list moved.
type changesMsg struct{ notify <-chan struct{} }

// actionMsg reports the outcome of a key-triggered REST call.
type actionMsg struct {
	what string
	err  error
}

// snapshots queues the values passed to a feed callback until the model
// takes them. Each one has to be compared with the one before it, so none
// may be dropped.
type snapshots[T any] struct {
	mu sync.Mutex
	vs []T
}

func (s *snapshots[T]) push(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vs = append(s.vs, v)
}

func (s *snapshots[T]) drain() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	vs := s.vs
	s.vs = nil
	return vs
}

// openFeeds starts the queue feed (or the poller) and the user feed.
func (m Model) openFeeds() tea.Msg {
	var msg feedsOpenedMsg
	if m.opts.Poll {
		msg.poller = refresh.Start(m.ctx, m.poll,
			refresh.WithInterval(m.opts.RefreshInterval),
			refresh.WithLogger(m.log.WithField("component", "refresh")))
	} else {
		q, err := live.QueueFeed(m.ctx, m.opts.BaseURL, m.opts.QueueID, m.queueSnaps.push, m.liveOpts("queue")...)
		if err != nil {
			return feedsOpenedMsg{err: fmt.Errorf("queue feed: %w", err)}
		}
		msg.queue = q
	}
	if m.opts.UserID > 0 {
		u, err := live.UserFeed(m.ctx, m.opts.BaseURL, m.opts.UserID, m.userSnaps.push, m.liveOpts("user")...)
		if err != nil {
			msg.err = fmt.Errorf("user feed: %w", err)
			return msg
		}
		msg.user = u
	}
	return msg
}

func (m Model) liveOpts(feed string) []live.Option {
	opts := append([]live.Option{}, m.opts.Live...)
	return append(opts, live.WithLogger(m.log.WithField("feed", feed)))
}

// poll runs on the scheduler goroutine. A result nobody has read yet is
// replaced by the newer one.
func (m Model) poll() {
	q, err := m.fetchQueue()
	msg := pollMsg{queue: q, err: err}
	for {
		select {
		case m.polls <- msg:
			return
		default:
		}
		select {
		case <-m.polls:
		default:
		}
	}
}

func (m Model) fetchQueue() (*model.QueueDetail, error) {
	ctx, cancel := context.WithTimeout(m.ctx, fetchTimeout)
	defer cancel()
	return m.api.GetQueue(ctx, m.opts.QueueID)
}

// fetch is the command form of a one-off REST refresh.
func (m Model) fetch() tea.Msg {
	q, err := m.fetchQueue()
	return pollMsg{queue: q, err: err, manual: true}
}

// waitFeed blocks until the feed changes and hands over everything it
// queued. Notify signals coalesce, so a wake-up may find several snapshots
// or none.
func waitFeed[T any](ch *live.Channel[T], queued *snapshots[T]) tea.Cmd {
	return func() tea.Msg {
		done := false
		select {
		case <-ch.Notify():
		case <-ch.Done():
			done = true
		}
		return feedMsg[T]{values: queued.drain(), err: ch.Err(), done: done}
	}
}

func (m Model) waitPoll() tea.Msg {
	select {
	case msg := <-m.polls:
		return msg
	case <-m.ctx.Done():
		return nil
	}
}

func waitChanges(ctx context.Context, notify <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-notify:
			return changesMsg{notify: notify}
		case <-ctx.Done():
			return nil
		}
	}
}

// action wraps a REST call in a command reporting its outcome.
func (m Model) action(what string, call func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, fetchTimeout)
		defer cancel()
		return actionMsg{what: what, err: call(ctx)}
	}
}
