// Package mockfeed is a stand-in office hours server for local development
// and integration tests. It keeps queues and users in memory, serves the
// REST routes the client calls and pushes every change over the same
// WebSocket feeds the real server exposes.
package mockfeed

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrLastHost = errors.New("a queue needs at least one host")
)

// Store holds the mock data. Readers get copies; slices and pointers held
// by the store are replaced on change, never mutated in place.
type Store struct {
	mu            sync.RWMutex
	queues        map[int]*model.QueueDetail
	users         map[int]model.User
	nextMeetingID int
}

func NewStore() *Store {
	return &Store{
		queues:        make(map[int]*model.QueueDetail),
		users:         make(map[int]model.User),
		nextMeetingID: 1,
	}
}

func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) PutQueue(q model.Queue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.CreatedAt == "" {
		q.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	s.queues[q.ID] = &model.QueueDetail{Queue: q, MeetingSet: []model.Meeting{}}
}

// Queue returns the host view of a queue.
func (s *Store) Queue(id int) (model.QueueDetail, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[id]
	if !ok {
		return model.QueueDetail{}, false
	}
	return copyDetail(q), true
}

// Queues lists every queue in id order.
func (s *Store) Queues() []model.Queue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Queue, 0, len(s.queues))
	for _, q := range s.queues {
		out = append(out, q.Queue)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// User returns a user with the queues they host filled in.
func (s *Store) User(id int) (model.MyUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.MyUser{}, false
	}
	me := model.MyUser{User: u, HostedQueues: []model.Queue{}}
	for _, q := range s.queues {
		if q.HasHost(u) {
			me.HostedQueues = append(me.HostedQueues, q.Queue)
		}
		for _, m := range q.MeetingSet {
			if a, ok := m.PrimaryAttendee(); ok && a.ID == u.ID {
				mine := q.Queue
				me.MyQueue = &mine
			}
		}
	}
	me.HostedQueues = model.SortQueues(me.HostedQueues)
	return me, true
}

func (s *Store) Users() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) SetStatus(queueID int, status model.QueueStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[queueID]
	if !ok {
		return ErrNotFound
	}
	q.Status = status
	return nil
}

func (s *Store) Rename(queueID int, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[queueID]
	if !ok {
		return ErrNotFound
	}
	q.Name = name
	return nil
}

// DeleteQueue removes a queue and returns the ids of its hosts.
func (s *Store) DeleteQueue(queueID int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[queueID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.queues, queueID)
	hostIDs := make([]int, 0, len(q.Hosts))
	for _, h := range q.Hosts {
		hostIDs = append(hostIDs, h.ID)
	}
	return hostIDs, nil
}

// AddHost makes userID a host of queueID. Adding an existing host changes
// nothing.
func (s *Store) AddHost(queueID, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[queueID]
	if !ok {
		return ErrNotFound
	}
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	if q.HasHost(u) {
		return nil
	}
	q.Hosts = append(append([]model.User(nil), q.Hosts...), u)
	return nil
}

// RemoveHost drops userID from the hosts of queueID. A queue keeps at least
// one host.
func (s *Store) RemoveHost(queueID, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[queueID]
	if !ok {
		return ErrNotFound
	}
	rest := make([]model.User, 0, len(q.Hosts))
	for _, h := range q.Hosts {
		if h.ID != userID {
			rest = append(rest, h)
		}
	}
	if len(rest) == len(q.Hosts) {
		return ErrNotFound
	}
	if len(rest) == 0 {
		return ErrLastHost
	}
	q.Hosts = rest
	return nil
}

// AddMeeting puts attendee at the back of the line.
func (s *Store) AddMeeting(queueID int, attendee model.User, backendType string) (model.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[queueID]
	if !ok {
		return model.Meeting{}, ErrNotFound
	}
	m := model.Meeting{
		ID:          s.nextMeetingID,
		Attendees:   []model.User{attendee},
		BackendType: backendType,
		Status:      model.MeetingUnassigned,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	s.nextMeetingID++
	q.MeetingSet = renumber(append(append([]model.Meeting(nil), q.MeetingSet...), m))
	return findMeeting(q.MeetingSet, m.ID), nil
}

// AssignMeeting sets or clears the host of a meeting.
func (s *Store) AssignMeeting(meetingID int, host *model.User) (int, error) {
	return s.updateMeeting(meetingID, func(m *model.Meeting) {
		if host == nil {
			m.Assignee = nil
			m.Status = model.MeetingUnassigned
			return
		}
		h := *host
		m.Assignee = &h
		m.Status = model.MeetingAssigned
	})
}

func (s *Store) SetMeetingType(meetingID int, backendType string) (int, error) {
	return s.updateMeeting(meetingID, func(m *model.Meeting) { m.BackendType = backendType })
}

func (s *Store) SetAgenda(meetingID int, agenda string) (int, error) {
	return s.updateMeeting(meetingID, func(m *model.Meeting) { m.Agenda = agenda })
}

func (s *Store) StartMeeting(meetingID int) (int, error) {
	return s.updateMeeting(meetingID, func(m *model.Meeting) { m.Status = model.MeetingStarted })
}

func (s *Store) RemoveMeeting(meetingID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, q := range s.queues {
		for i, m := range q.MeetingSet {
			if m.ID != meetingID {
				continue
			}
			rest := make([]model.Meeting, 0, len(q.MeetingSet)-1)
			rest = append(rest, q.MeetingSet[:i]...)
			rest = append(rest, q.MeetingSet[i+1:]...)
			q.MeetingSet = renumber(rest)
			return id, nil
		}
	}
	return 0, ErrNotFound
}

// Meeting returns a meeting and the id of its queue.
func (s *Store) Meeting(meetingID int) (model.Meeting, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, q := range s.queues {
		for _, m := range q.MeetingSet {
			if m.ID == meetingID {
				return m, id, true
			}
		}
	}
	return model.Meeting{}, 0, false
}

func (s *Store) updateMeeting(meetingID int, fn func(*model.Meeting)) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, q := range s.queues {
		for i, m := range q.MeetingSet {
			if m.ID != meetingID {
				continue
			}
			next := append([]model.Meeting(nil), q.MeetingSet...)
			fn(&next[i])
			q.MeetingSet = renumber(next)
			return id, nil
		}
	}
	return 0, ErrNotFound
}

// renumber gives waiting meetings consecutive line places. Started
// meetings have left the line.
func renumber(meetings []model.Meeting) []model.Meeting {
	place := 0
	for i := range meetings {
		if meetings[i].Started() {
			meetings[i].LinePlace = nil
			continue
		}
		p := place
		meetings[i].LinePlace = &p
		place++
	}
	return meetings
}

func findMeeting(meetings []model.Meeting, id int) model.Meeting {
	for _, m := range meetings {
		if m.ID == id {
			return m
		}
	}
	return model.Meeting{}
}

func copyDetail(q *model.QueueDetail) model.QueueDetail {
	out := *q
	out.Hosts = append([]model.User(nil), q.Hosts...)
	out.AllowedBackends = append([]string(nil), q.AllowedBackends...)
	out.MeetingSet = append([]model.Meeting{}, q.MeetingSet...)
	out.LineLength = len(q.MeetingSet)
	return out
}
