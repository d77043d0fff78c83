package changes

import (
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/model"
)

var (
	alice = model.User{ID: 1, Username: "alice", FirstName: "Alice"}
	bob   = model.User{ID: 2, Username: "bob", FirstName: "Bob"}
	carol = model.User{ID: 3, Username: "carol", FirstName: "Carol"}
)

func meeting(id int, attendee model.User) model.Meeting {
	return model.Meeting{ID: id, Attendees: []model.User{attendee}, BackendType: "zoom"}
}

func TestCompareIdentical(t *testing.T) {
	queues := []model.Queue{{ID: 1, Name: "Q", Status: model.QueueOpen}, {ID: 2, Name: "R", Status: model.QueueClosed}}
	assert.Equal(t, 0, len(Compare(queues, queues)))

	meetings := []model.Meeting{meeting(1, alice), meeting(2, bob)}
	assert.Equal(t, 0, len(Compare(meetings, meetings)))

	assert.Equal(t, 0, len(Compare[model.Queue](nil, nil)))
}

func TestCompareQueueStatusChange(t *testing.T) {
	old := []model.Queue{{ID: 1, Status: model.QueueClosed, Name: "Q"}}
	updated := []model.Queue{{ID: 1, Status: model.QueueOpen, Name: "Q"}}

	got := Compare(old, updated)
	want := []string{`The queue with ID number 1 was changed. The status changed from "closed" to "open".`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compare() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareQueueMultipleFields(t *testing.T) {
	old := []model.Queue{{ID: 4, Status: model.QueueClosed, Name: "Office Hours"}}
	updated := []model.Queue{{ID: 4, Status: model.QueueOpen, Name: "Lab Hours"}}

	got := Compare(old, updated)
	want := []string{
		`The queue with ID number 4 was changed. The status changed from "closed" to "open". The name changed from "Office Hours" to "Lab Hours".`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compare() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareDisjointCollections(t *testing.T) {
	old := []model.Queue{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}
	updated := []model.Queue{{ID: 3, Name: "C"}}

	got := Compare(old, updated)
	want := []string{
		"The queue with ID number 1 was deleted.",
		"The queue with ID number 2 was deleted.",
		"A new queue with ID number 3 was added.",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compare() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareMeetingsUseAttendeeIdentity(t *testing.T) {
	old := []model.Meeting{meeting(10, alice)}
	updated := []model.Meeting{meeting(11, bob)}

	got := Compare(old, updated)
	want := []string{
		"The meeting for attendee alice was deleted.",
		"A new meeting for attendee bob was added.",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compare() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareMeetingWithoutAttendeeFallsBackToID(t *testing.T) {
	got := Compare(nil, []model.Meeting{{ID: 12}})
	assert.Equal(t, []string{"A new meeting with ID number 12 was added."}, got)
}

func TestCompareUnwatchedFieldIsSilent(t *testing.T) {
	tests := []struct {
		name string
		fn   func() []string
	}{
		{
			name: "queue description",
			fn: func() []string {
				return Compare(
					[]model.Queue{{ID: 1, Name: "Q", Description: "old"}},
					[]model.Queue{{ID: 1, Name: "Q", Description: "new"}},
				)
			},
		},
		{
			name: "meeting agenda",
			fn: func() []string {
				before := meeting(5, alice)
				after := meeting(5, alice)
				after.Agenda = "question about lab 2"
				return Compare([]model.Meeting{before}, []model.Meeting{after})
			},
		},
		{
			name: "meeting assigned status without assignee change",
			fn: func() []string {
				before := meeting(5, alice)
				after := meeting(5, alice)
				after.Status = model.MeetingAssigned
				return Compare([]model.Meeting{before}, []model.Meeting{after})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(); len(got) != 0 {
				t.Errorf("expected no messages, got %q", got)
			}
		})
	}
}

func TestCompareMeetingAssignee(t *testing.T) {
	before := meeting(7, alice)
	after := meeting(7, alice)
	after.Assignee = &carol

	got := Compare([]model.Meeting{before}, []model.Meeting{after})
	want := []string{`The meeting for attendee alice was changed. The host changed from "None" to "carol".`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compare() mismatch (-want +got):\n%s", diff)
	}

	got = Compare([]model.Meeting{after}, []model.Meeting{before})
	want = []string{`The meeting for attendee alice was changed. The host changed from "carol" to "None".`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compare() reverse mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareMeetingType(t *testing.T) {
	before := meeting(8, bob)
	after := meeting(8, bob)
	after.BackendType = "inperson"

	got := Compare([]model.Meeting{before}, []model.Meeting{after})
	want := []string{`The meeting for attendee bob was changed. The meeting type changed from "zoom" to "inperson".`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compare() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareEmptyStringRendersNone(t *testing.T) {
	before := meeting(8, bob)
	before.BackendType = ""
	after := meeting(8, bob)

	got := Compare([]model.Meeting{before}, []model.Meeting{after})
	want := []string{`The meeting for attendee bob was changed. The meeting type changed from "None" to "zoom".`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compare() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareMeetingStarted(t *testing.T) {
	before := meeting(9, alice)
	before.Assignee = &bob
	before.Status = model.MeetingAssigned

	t.Run("status only", func(t *testing.T) {
		after := before
		after.Status = model.MeetingStarted
		got := Compare([]model.Meeting{before}, []model.Meeting{after})
		want := []string{"The meeting for attendee alice was changed. " + MeetingStartedMessage}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Compare() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("with host change", func(t *testing.T) {
		after := before
		after.Assignee = &carol
		after.Status = model.MeetingStarted
		got := Compare([]model.Meeting{before}, []model.Meeting{after})
		want := []string{
			`The meeting for attendee alice was changed. The host changed from "bob" to "carol". ` + MeetingStartedMessage,
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Compare() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("already started", func(t *testing.T) {
		started := before
		started.Status = model.MeetingStarted
		after := started
		after.Agenda = "follow-up"
		if got := Compare([]model.Meeting{started}, []model.Meeting{after}); len(got) != 0 {
			t.Errorf("expected no messages, got %q", got)
		}
	})
}

func TestCompareMixedAddDeleteChange(t *testing.T) {
	old := []model.Queue{
		{ID: 1, Name: "A", Status: model.QueueOpen},
		{ID: 2, Name: "B", Status: model.QueueOpen},
	}
	updated := []model.Queue{
		{ID: 2, Name: "B", Status: model.QueueClosed},
		{ID: 3, Name: "C", Status: model.QueueOpen},
	}

	got := Compare(old, updated)
	want := []string{
		"The queue with ID number 1 was deleted.",
		`The queue with ID number 2 was changed. The status changed from "open" to "closed".`,
		"A new queue with ID number 3 was added.",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compare() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareMoreThanTwoVersionsUsesFirstAndLast(t *testing.T) {
	old := []model.Queue{
		{ID: 1, Name: "first", Status: model.QueueOpen},
		{ID: 1, Name: "middle", Status: model.QueueOpen},
	}
	updated := []model.Queue{{ID: 1, Name: "last", Status: model.QueueOpen}}

	got := Compare(old, updated)
	want := []string{`The queue with ID number 1 was changed. The name changed from "first" to "last".`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compare() mismatch (-want +got):\n%s", diff)
	}
}

func TestTransforms(t *testing.T) {
	var nilUser *model.User
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"user value", alice, "alice"},
		{"user pointer", &bob, "bob"},
		{"nil user pointer", nilUser, "None"},
		{"nil", nil, "None"},
		{"empty string", "", "None"},
		{"empty status", model.QueueStatus(""), "None"},
		{"status", model.QueueOpen, model.QueueOpen},
		{"text", "zoom", "zoom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyTransforms(tt.in, standardTransforms)
			if got != tt.want {
				t.Errorf("applyTransforms(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "meeting type", label("backend_type"))
	assert.Equal(t, "host", label("assignee"))
	assert.Equal(t, "status", label("status"))
}
