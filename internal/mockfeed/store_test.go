package mockfeed

import (
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/model"
)

func seededStore(t *testing.T) (*Store, int) {
	t.Helper()
	s := NewStore()
	return s, Seed(s)
}

func linePlaces(q model.QueueDetail) []int {
	var out []int
	for _, m := range q.MeetingSet {
		if m.LinePlace == nil {
			out = append(out, -1)
			continue
		}
		out = append(out, *m.LinePlace)
	}
	return out
}

func TestStoreLinePlaces(t *testing.T) {
	s, qid := seededStore(t)

	a, _ := s.AddMeeting(qid, DemoAttendees[0], "zoom")
	b, _ := s.AddMeeting(qid, DemoAttendees[1], "zoom")
	c, _ := s.AddMeeting(qid, DemoAttendees[2], "inperson")

	q, _ := s.Queue(qid)
	assert.Equal(t, []int{0, 1, 2}, linePlaces(q))
	assert.Equal(t, 3, q.LineLength)

	if _, err := s.StartMeeting(a.ID); err != nil {
		t.Fatal(err)
	}
	q, _ = s.Queue(qid)
	assert.Equal(t, []int{-1, 0, 1}, linePlaces(q))

	if _, err := s.RemoveMeeting(b.ID); err != nil {
		t.Fatal(err)
	}
	q, _ = s.Queue(qid)
	assert.Equal(t, []int{-1, 0}, linePlaces(q))
	assert.Equal(t, c.ID, q.MeetingSet[1].ID)
}

func TestStoreReturnsCopies(t *testing.T) {
	s, qid := seededStore(t)
	m, _ := s.AddMeeting(qid, DemoAttendees[0], "zoom")

	before, _ := s.Queue(qid)
	if _, err := s.AssignMeeting(m.ID, &DemoHost); err != nil {
		t.Fatal(err)
	}
	after, _ := s.Queue(qid)

	assert.Equal(t, true, before.MeetingSet[0].Assignee == nil)
	assert.Equal(t, model.MeetingUnassigned, before.MeetingSet[0].Status)
	assert.Equal(t, "hostie", after.MeetingSet[0].Assignee.Username)
	assert.Equal(t, model.MeetingAssigned, after.MeetingSet[0].Status)
	assert.Equal(t, false, model.Equal(before.MeetingSet[0], after.MeetingSet[0]))
}

func TestStoreUserView(t *testing.T) {
	s, qid := seededStore(t)

	host, ok := s.User(DemoHost.ID)
	if !ok {
		t.Fatal("host missing")
	}
	assert.Equal(t, 2, len(host.HostedQueues))
	assert.Equal(t, model.QueueOpen, host.HostedQueues[0].Status)

	alice := DemoAttendees[0]
	me, _ := s.User(alice.ID)
	assert.Equal(t, true, me.MyQueue == nil)

	s.AddMeeting(qid, alice, "zoom")
	me, _ = s.User(alice.ID)
	assert.Equal(t, qid, me.MyQueue.ID)
}

func TestStoreNotFound(t *testing.T) {
	s, _ := seededStore(t)

	if err := s.SetStatus(99, model.QueueOpen); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus: got %v", err)
	}
	if _, err := s.AddMeeting(99, DemoAttendees[0], "zoom"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddMeeting: got %v", err)
	}
	if _, err := s.StartMeeting(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("StartMeeting: got %v", err)
	}
	if _, err := s.RemoveMeeting(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemoveMeeting: got %v", err)
	}
	if _, err := s.DeleteQueue(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteQueue: got %v", err)
	}
}

func TestStoreDeleteQueueReturnsHosts(t *testing.T) {
	s, qid := seededStore(t)
	hosts, err := s.DeleteQueue(qid)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, []int{DemoHost.ID, DemoCoHost.ID}, hosts)
	_, ok := s.Queue(qid)
	assert.Equal(t, false, ok)
}
