package activity

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/api"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/live"
)

func TestSnapshotsWithoutChangesFold(t *testing.T) {
	m := New()
	m.Snapshot(SourcePoll, 0, false)
	m.Snapshot(SourcePoll, 0, false)
	m.Snapshot(SourcePoll, 0, false)
	if len(m.Entries) != 1 {
		t.Fatalf("expected 1 folded entry, got %d", len(m.Entries))
	}
	if got := m.Entries[0].describe(); got != "no changes (x3)" {
		t.Errorf("describe = %q", got)
	}

	m.Snapshot(SourcePoll, 2, false)
	m.Snapshot(SourcePoll, 0, false)
	if len(m.Entries) != 3 {
		t.Fatalf("a snapshot with changes should break the fold, got %d entries", len(m.Entries))
	}
	if got := m.Entries[1].describe(); got != "2 changes" {
		t.Errorf("describe = %q", got)
	}
}

func TestSnapshotsFromDifferentFeedsDoNotFold(t *testing.T) {
	m := New()
	m.Snapshot(SourceQueue, 0, false)
	m.Snapshot(SourceUser, 0, false)
	m.Snapshot(SourceQueue, 0, true)
	if len(m.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(m.Entries))
	}
	if got := m.Entries[2].describe(); got != "deleted" {
		t.Errorf("deleted snapshot describe = %q", got)
	}
}

func TestTallies(t *testing.T) {
	m := New()
	m.Opened(SourceQueue, "ws://localhost/ws/queues/1/")
	m.Snapshot(SourceQueue, 0, false)
	m.Snapshot(SourceQueue, 1, false)
	m.Snapshot(SourceQueue, 2, false)
	m.Error(SourceQueue, &live.ConnectionError{Code: 4405, Message: "You are not allowed to view this resource."})

	got := m.Tally(SourceQueue)
	want := Tally{Snapshots: 3, Changes: 3, Errors: 1, LastCode: 4405}
	if got != want {
		t.Errorf("tally = %+v, want %+v", got, want)
	}
	if (m.Tally(SourceUser) != Tally{}) {
		t.Error("unknown source should have an empty tally")
	}
}

func TestErrorKeepsCodeAndTerminal(t *testing.T) {
	m := New()
	m.Error(SourceQueue, &live.ConnectionError{Code: 1011, Terminal: true, Message: "A system error occurred."})
	m.Error(SourcePoll, fmt.Errorf("fetch: %w", &api.StatusError{Status: 400, Message: "bad"}))
	m.Error(SourceAction, fmt.Errorf("opened the queue: %w", api.NotFoundError{}))
	m.Error(SourceUser, errors.New("plain"))

	cases := []struct {
		code     int
		terminal bool
		text     string
	}{
		{1011, true, "✗ [1011] A system error occurred."},
		{400, false, "⚠ [400] fetch: bad"},
		{404, false, "⚠ [404] opened the queue: The resource you're looking for was not found. Maybe it was deleted."},
		{0, false, "⚠ plain"},
	}
	for i, c := range cases {
		e := m.Entries[i]
		if e.Code != c.code || e.Terminal != c.terminal {
			t.Errorf("entry %d: code %d terminal %v, want %d %v", i, e.Code, e.Terminal, c.code, c.terminal)
		}
		if got := e.describe(); got != c.text {
			t.Errorf("entry %d: describe = %q, want %q", i, got, c.text)
		}
	}
}

func TestMaxEntries(t *testing.T) {
	m := New()
	for i := 0; i < maxEntries+50; i++ {
		m.Action(fmt.Sprintf("action %d", i))
	}
	if len(m.Entries) != maxEntries {
		t.Errorf("expected %d entries, got %d", maxEntries, len(m.Entries))
	}
	if m.Entries[0].Message != "action 50" {
		t.Errorf("oldest kept entry = %q", m.Entries[0].Message)
	}
}

func TestScroll(t *testing.T) {
	m := New()
	for i := 0; i < 20; i++ {
		m.Action("msg")
	}

	m.ScrollUp(5)
	if m.Offset != 5 {
		t.Errorf("expected offset 5, got %d", m.Offset)
	}
	m.ScrollDown(10)
	if m.Offset != 0 {
		t.Errorf("expected offset 0, got %d", m.Offset)
	}
	m.ScrollUp(100)
	if m.Offset != 19 {
		t.Errorf("expected offset capped at 19, got %d", m.Offset)
	}

	m.Snapshot(SourceQueue, 1, false)
	if m.Offset != 0 {
		t.Error("new entry should reset scroll to 0")
	}
}

func TestView(t *testing.T) {
	m := New()
	if v := m.View(100, 30); !strings.Contains(v, "Nothing received yet.") {
		t.Error("empty view should say nothing was received")
	}

	at := time.Date(2024, 3, 4, 10, 15, 30, 0, time.UTC)
	m.now = func() time.Time { return at }
	m.Opened(SourceQueue, "ws://localhost/ws/queues/1/")
	m.Snapshot(SourceQueue, 2, false)
	m.Error(SourceQueue, &live.ConnectionError{Code: 4405, Message: "forbidden"})

	v := m.View(100, 30)
	for _, want := range []string{"10:15:30.000", "queue", "2 changes", "[4405] forbidden", "queue 1/2 err 1@4405"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}
