package mockfeed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/model"
)

const maxLine = 5

var backendTypes = []string{"zoom", "inperson", "zoom"}

// Demo identities created by Seed.
var (
	DemoHost      = model.User{ID: 1, Username: "hostie", FirstName: "Hazel", LastName: "Host"}
	DemoCoHost    = model.User{ID: 2, Username: "profx", FirstName: "Xavier", LastName: "Prof"}
	DemoAttendees = []model.User{
		{ID: 10, Username: "alice", FirstName: "Alice", LastName: "Anders"},
		{ID: 11, Username: "bob", FirstName: "Bob", LastName: "Baker"},
		{ID: 12, Username: "carol", FirstName: "Carol", LastName: "Chen"},
		{ID: 13, Username: "dave", FirstName: "Dave", LastName: "Diaz"},
		{ID: 14, Username: "erin", FirstName: "Erin", LastName: "Evans"},
		{ID: 15, Username: "frank", FirstName: "Frank", LastName: "Fox"},
	}
)

// Seed fills store with the demo users and queues and returns the id of the
// queue the generator drives.
func Seed(store *Store) int {
	store.PutUser(DemoHost)
	store.PutUser(DemoCoHost)
	for _, u := range DemoAttendees {
		store.PutUser(u)
	}
	store.PutQueue(model.Queue{
		ID:               1,
		Name:             "EECS 280 Office Hours",
		Status:           model.QueueOpen,
		Description:      "Bring your **autograder** output.\n\n- One question per visit\n- Zoom links are sent when your meeting starts",
		Hosts:            []model.User{DemoHost, DemoCoHost},
		AllowedBackends:  []string{"zoom", "inperson"},
		InpersonLocation: "BBB 1637",
	})
	store.PutQueue(model.Queue{
		ID:              2,
		Name:            "Lab Help",
		Status:          model.QueueClosed,
		Hosts:           []model.User{DemoHost},
		AllowedBackends: []string{"zoom"},
	})
	return 1
}

// Generator drives one queue through a plausible stream of changes.
type Generator struct {
	server    *Server
	queueID   int
	hosts     []model.User
	attendees []model.User
	rng       *rand.Rand
	tick      int
	log       *logrus.Entry
}

func NewGenerator(server *Server, queueID int, seed int64) *Generator {
	return &Generator{
		server:    server,
		queueID:   queueID,
		hosts:     []model.User{DemoHost, DemoCoHost},
		attendees: DemoAttendees,
		rng:       rand.New(rand.NewSource(seed)),
		log:       server.log.WithField("queue", queueID),
	}
}

// Start runs Step every interval until ctx is cancelled.
func (g *Generator) Start(ctx context.Context, interval time.Duration) {
	go g.run(ctx, interval)
}

func (g *Generator) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			action, err := g.Step()
			if err != nil {
				g.log.WithError(err).Warn("mock step failed")
				continue
			}
			if action != "" {
				g.log.WithField("tick", g.tick).Info(action)
			}
		}
	}
}

// Step applies one change and describes it. It returns an empty string when
// nothing could change.
func (g *Generator) Step() (string, error) {
	g.tick++
	q, ok := g.server.store.Queue(g.queueID)
	if !ok {
		return "", ErrNotFound
	}

	if g.tick%7 == 0 {
		next := model.QueueOpen
		if q.IsOpen() {
			next = model.QueueClosed
		}
		return fmt.Sprintf("queue %s", next), g.server.SetQueueStatus(g.queueID, next)
	}

	var started, assigned, unassigned []model.Meeting
	for _, m := range q.MeetingSet {
		switch m.Status {
		case model.MeetingStarted:
			started = append(started, m)
		case model.MeetingAssigned:
			assigned = append(assigned, m)
		default:
			unassigned = append(unassigned, m)
		}
	}

	switch {
	case len(started) > 0 && g.rng.Intn(2) == 0:
		m := started[0]
		return "finished meeting for " + attendeeName(m), g.server.RemoveMeeting(m.ID)
	case len(assigned) > 0 && g.rng.Intn(2) == 0:
		m := assigned[0]
		_, err := g.server.StartMeeting(m.ID)
		return "started meeting for " + attendeeName(m), err
	case len(unassigned) > 0 && g.rng.Intn(2) == 0:
		m := unassigned[0]
		host := g.hosts[g.rng.Intn(len(g.hosts))]
		return fmt.Sprintf("assigned %s to %s", host.Username, attendeeName(m)), g.server.AssignMeeting(m.ID, &host)
	case q.IsOpen() && len(q.MeetingSet) < maxLine:
		attendee, ok := g.nextAttendee(q.MeetingSet)
		if !ok {
			return "", nil
		}
		backend := backendTypes[g.rng.Intn(len(backendTypes))]
		_, err := g.server.AddMeeting(g.queueID, attendee, backend)
		return fmt.Sprintf("%s joined the line (%s)", attendee.Username, backend), err
	}
	return "", nil
}

// nextAttendee picks someone who is not already in line.
func (g *Generator) nextAttendee(inLine []model.Meeting) (model.User, bool) {
	present := make(map[int]bool, len(inLine))
	for _, m := range inLine {
		if a, ok := m.PrimaryAttendee(); ok {
			present[a.ID] = true
		}
	}
	var free []model.User
	for _, u := range g.attendees {
		if !present[u.ID] {
			free = append(free, u)
		}
	}
	if len(free) == 0 {
		return model.User{}, false
	}
	return free[g.rng.Intn(len(free))], true
}

func attendeeName(m model.Meeting) string {
	if a, ok := m.PrimaryAttendee(); ok {
		return a.Username
	}
	return fmt.Sprintf("meeting %d", m.ID)
}
