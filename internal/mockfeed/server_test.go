package mockfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/api"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/live"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/model"
)

func startServer(t *testing.T) (*Server, *httptest.Server, int) {
	t.Helper()
	store := NewStore()
	qid := Seed(store)
	s := NewServer(store, nil)
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return s, srv, qid
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type queueUpdates struct {
	mu  sync.Mutex
	all []*model.QueueDetail
}

func (u *queueUpdates) add(q *model.QueueDetail) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.all = append(u.all, q)
}

func (u *queueUpdates) last() (*model.QueueDetail, int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.all) == 0 {
		return nil, 0
	}
	return u.all[len(u.all)-1], len(u.all)
}

func TestQueueFeedPushesChanges(t *testing.T) {
	s, srv, qid := startServer(t)

	updates := &queueUpdates{}
	ch, err := live.QueueFeed(context.Background(), srv.URL, qid, updates.add)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ch.Close)

	waitFor(t, "init", func() bool { _, n := updates.last(); return n == 1 })
	waitFor(t, "subscription", func() bool { return s.Hub().ClientCount(live.QueuePath(qid)) == 1 })

	first, _ := updates.last()
	assert.Equal(t, true, first.IsHostView())
	assert.Equal(t, model.QueueOpen, first.Status)

	if _, err := s.AddMeeting(qid, DemoAttendees[0], "zoom"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "meeting update", func() bool {
		q, _ := updates.last()
		return q != nil && len(q.MeetingSet) == 1
	})

	if err := s.SetQueueStatus(qid, model.QueueClosed); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "status update", func() bool {
		q, _ := updates.last()
		return q != nil && q.Status == model.QueueClosed
	})
	assert.Equal(t, nil, ch.Err())
}

func TestDeleteQueueEndsFeed(t *testing.T) {
	_, srv, qid := startServer(t)

	updates := &queueUpdates{}
	ch, err := live.QueueFeed(context.Background(), srv.URL, qid, updates.add)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ch.Close)
	waitFor(t, "init", func() bool { _, n := updates.last(); return n == 1 })

	if err := api.New(srv.URL).DeleteQueue(context.Background(), qid); err != nil {
		t.Fatalf("DeleteQueue: %v", err)
	}

	select {
	case <-ch.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("feed did not end after delete")
	}

	last, n := updates.last()
	assert.Equal(t, 2, n)
	assert.Equal(t, true, last == nil)
	assert.Equal(t, "The queue was deleted.", ch.Err().Error())
}

func TestFeedForMissingQueueClosesQuietly(t *testing.T) {
	_, srv, _ := startServer(t)

	ch, err := live.QueueFeed(context.Background(), srv.URL, 404, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ch.Close)

	select {
	case <-ch.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("feed for a missing queue should stop")
	}
	assert.Equal(t, nil, ch.Err())
}

func TestUserFeedFollowsHostedQueues(t *testing.T) {
	s, srv, qid := startServer(t)

	var mu sync.Mutex
	var latest *model.MyUser
	ch, err := live.UserFeed(context.Background(), srv.URL, DemoHost.ID, func(u *model.MyUser) {
		mu.Lock()
		defer mu.Unlock()
		latest = u
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ch.Close)

	hostedStatus := func() model.QueueStatus {
		mu.Lock()
		defer mu.Unlock()
		if latest == nil {
			return ""
		}
		for _, q := range latest.HostedQueues {
			if q.ID == qid {
				return q.Status
			}
		}
		return ""
	}

	waitFor(t, "init", func() bool { return hostedStatus() == model.QueueOpen })
	waitFor(t, "subscription", func() bool { return s.Hub().ClientCount(live.UserPath(DemoHost.ID)) == 1 })

	if err := s.SetQueueStatus(qid, model.QueueClosed); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "hosted queue closed", func() bool { return hostedStatus() == model.QueueClosed })
}

func TestRESTRoutes(t *testing.T) {
	_, srv, qid := startServer(t)
	ctx := context.Background()
	c := api.New(srv.URL)

	q, err := c.SetStatus(ctx, qid, false)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	assert.Equal(t, model.QueueClosed, q.Status)

	user, err := c.GetUser(ctx, DemoHost.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	assert.Equal(t, "hostie", user.Username)

	queues, err := c.GetQueues(ctx)
	if err != nil {
		t.Fatalf("GetQueues: %v", err)
	}
	assert.Equal(t, 2, len(queues))

	if _, err := c.GetQueue(ctx, 99); !api.IsNotFound(err) {
		t.Errorf("GetQueue(99): want NotFoundError, got %v", err)
	}

	blank := ""
	_, err = c.UpdateQueue(ctx, qid, api.QueuePatch{Name: &blank})
	if err == nil || err.Error() != "This field may not be blank." {
		t.Errorf("blank name: got %v", err)
	}
}

func TestMeetingRoutes(t *testing.T) {
	s, srv, qid := startServer(t)
	ctx := context.Background()
	c := api.New(srv.URL)

	m, err := s.AddMeeting(qid, DemoAttendees[1], "zoom")
	if err != nil {
		t.Fatal(err)
	}

	host := DemoCoHost.ID
	assigned, err := c.ChangeMeetingAssignee(ctx, m.ID, &host)
	if err != nil {
		t.Fatalf("ChangeMeetingAssignee: %v", err)
	}
	assert.Equal(t, "profx", assigned.Assignee.Username)
	assert.Equal(t, model.MeetingAssigned, assigned.Status)

	typed, err := c.ChangeMeetingType(ctx, m.ID, "inperson")
	if err != nil {
		t.Fatalf("ChangeMeetingType: %v", err)
	}
	assert.Equal(t, "inperson", typed.BackendType)

	withAgenda, err := c.ChangeAgenda(ctx, m.ID, "project 2 segfault")
	if err != nil {
		t.Fatalf("ChangeAgenda: %v", err)
	}
	assert.Equal(t, "project 2 segfault", withAgenda.Agenda)

	started, err := c.StartMeeting(ctx, m.ID)
	if err != nil {
		t.Fatalf("StartMeeting: %v", err)
	}
	assert.Equal(t, true, started.Started())

	if err := c.RemoveMeeting(ctx, m.ID); err != nil {
		t.Fatalf("RemoveMeeting: %v", err)
	}
	q, _ := s.Store().Queue(qid)
	assert.Equal(t, 0, len(q.MeetingSet))

	if _, err := c.StartMeeting(ctx, m.ID); !api.IsNotFound(err) {
		t.Errorf("start removed meeting: want NotFoundError, got %v", err)
	}
}

func TestHostRoutes(t *testing.T) {
	s, srv, _ := startServer(t)
	ctx := context.Background()
	c := api.New(srv.URL)

	// queue 2 starts with a single host
	const lab = 2
	if err := c.RemoveHost(ctx, lab, DemoHost.ID); err == nil || err.Error() != "A queue must have at least one host." {
		t.Errorf("removing the last host: got %v", err)
	}

	if err := c.AddHost(ctx, lab, DemoCoHost.ID); err != nil {
		t.Fatalf("AddHost: %v", err)
	}
	if err := c.AddHost(ctx, lab, DemoCoHost.ID); err != nil {
		t.Fatalf("AddHost twice: %v", err)
	}
	q, _ := s.Store().Queue(lab)
	assert.Equal(t, 2, len(q.Hosts))

	if err := c.RemoveHost(ctx, lab, DemoHost.ID); err != nil {
		t.Fatalf("RemoveHost: %v", err)
	}
	q, _ = s.Store().Queue(lab)
	assert.Equal(t, 1, len(q.Hosts))
	assert.Equal(t, "profx", q.Hosts[0].Username)

	if err := c.AddHost(ctx, lab, 999); !api.IsNotFound(err) {
		t.Errorf("unknown user: want NotFoundError, got %v", err)
	}
	if err := c.RemoveHost(ctx, 99, DemoHost.ID); !api.IsNotFound(err) {
		t.Errorf("unknown queue: want NotFoundError, got %v", err)
	}
}
