// Package model defines the entities pushed by the office-hours server and
// the identity and equality rules the change detector relies on.
// Types mirror the server wire format without importing server packages.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/go-cmp/cmp"
)

// Kind discriminates the comparable entity variants.
type Kind int

const (
	KindQueue Kind = iota
	KindMeeting
)

// String returns the human-readable token used in change messages.
func (k Kind) String() string {
	switch k {
	case KindQueue:
		return "queue"
	case KindMeeting:
		return "meeting"
	}
	return "entity"
}

// Entity is a record eligible for change detection. Only Queue and Meeting
// implement it.
type Entity interface {
	EntityID() int
	Kind() Kind
	sealed()
}

// Equal reports whether two entities are deeply equal field by field.
func Equal(a, b Entity) bool {
	return cmp.Equal(a, b)
}

// QueueStatus is the open/closed state of a queue.
type QueueStatus string

const (
	QueueOpen   QueueStatus = "open"
	QueueClosed QueueStatus = "closed"
)

// Queue is the queue-like entity. The id is assigned server-side and never
// changes; name and status mutate in place.
type Queue struct {
	ID               int         `json:"id"`
	Name             string      `json:"name"`
	Status           QueueStatus `json:"status"`
	Description      string      `json:"description,omitempty"`
	CreatedAt        string      `json:"created_at,omitempty"`
	Hosts            []User      `json:"hosts,omitempty"`
	AllowedBackends  []string    `json:"allowed_backends,omitempty"`
	InpersonLocation string      `json:"inperson_location,omitempty"`
}

func (q Queue) EntityID() int { return q.ID }
func (q Queue) Kind() Kind    { return KindQueue }
func (Queue) sealed()         {}

// IsOpen reports whether attendees may currently join.
func (q Queue) IsOpen() bool { return q.Status == QueueOpen }

// QueueDetail is the payload of the queue feed and of GET /api/queues/{id}/.
// Hosts receive MeetingSet; attendees receive MyMeeting and LineLength.
type QueueDetail struct {
	Queue
	MeetingSet []Meeting `json:"meeting_set"`
	MyMeeting  *Meeting  `json:"my_meeting,omitempty"`
	LineLength int       `json:"line_length,omitempty"`
}

// IsHostView reports whether the payload was rendered for a host of the queue.
func (q *QueueDetail) IsHostView() bool {
	return q != nil && q.MeetingSet != nil
}

// MeetingStatus tracks a meeting's progress. Values only move forward in
// normal operation but nothing here enforces that.
type MeetingStatus int

const (
	MeetingUnassigned MeetingStatus = iota
	MeetingAssigned
	MeetingStarted
)

func (s MeetingStatus) String() string {
	switch s {
	case MeetingUnassigned:
		return "unassigned"
	case MeetingAssigned:
		return "assigned"
	case MeetingStarted:
		return "started"
	}
	return strconv.Itoa(int(s))
}

// UnmarshalJSON accepts both the numeric and the named form.
func (s *MeetingStatus) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*s = MeetingStatus(n)
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("meeting status: %w", err)
	}
	switch name {
	case "unassigned":
		*s = MeetingUnassigned
	case "assigned":
		*s = MeetingAssigned
	case "started":
		*s = MeetingStarted
	default:
		return fmt.Errorf("meeting status: unknown value %q", name)
	}
	return nil
}

// Meeting is the meeting-like entity. Attendees is non-empty in practice and
// its first element is the meeting's primary identity.
type Meeting struct {
	ID              int             `json:"id"`
	LinePlace       *int            `json:"line_place"`
	Attendees       []User          `json:"attendees"`
	Agenda          string          `json:"agenda"`
	Assignee        *User           `json:"assignee"`
	BackendType     string          `json:"backend_type"`
	BackendMetadata json.RawMessage `json:"backend_metadata,omitempty"`
	Status          MeetingStatus   `json:"status"`
	CreatedAt       string          `json:"created_at,omitempty"`
}

func (m Meeting) EntityID() int { return m.ID }
func (m Meeting) Kind() Kind    { return KindMeeting }
func (Meeting) sealed()         {}

// PrimaryAttendee returns the first attendee, if any.
func (m Meeting) PrimaryAttendee() (User, bool) {
	if len(m.Attendees) == 0 {
		return User{}, false
	}
	return m.Attendees[0], true
}

// Started reports whether the meeting is in progress.
func (m Meeting) Started() bool { return m.Status == MeetingStarted }
