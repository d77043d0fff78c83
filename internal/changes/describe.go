package changes

import (
	"fmt"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/model"
)

// field is one watched property of an entity variant.
type field[E model.Entity] struct {
	name string
	get  func(E) any
}

var queueFields = []field[model.Queue]{
	{name: "status", get: func(q model.Queue) any { return q.Status }},
	{name: "name", get: func(q model.Queue) any { return q.Name }},
}

var meetingFields = []field[model.Meeting]{
	{name: "backend_type", get: func(m model.Meeting) any { return m.BackendType }},
	{name: "assignee", get: func(m model.Meeting) any { return m.Assignee }},
}

// fieldLabels maps internal field names to the words shown to people.
// Unmapped fields use their raw name.
var fieldLabels = map[string]string{
	"backend_type": "meeting type",
	"assignee":     "host",
}

func label(name string) string {
	if l, ok := fieldLabels[name]; ok {
		return l
	}
	return name
}

// transform rewrites a field value before comparison and formatting.
type transform func(any) any

// userToDisplayName replaces a user-shaped value with its display identity.
func userToDisplayName(v any) any {
	switch u := v.(type) {
	case model.User:
		return u.DisplayName()
	case *model.User:
		if u == nil {
			return nil
		}
		return u.DisplayName()
	}
	return v
}

// blankToNone replaces absent or empty values with the literal "None".
func blankToNone(v any) any {
	switch s := v.(type) {
	case nil:
		return "None"
	case string:
		if s == "" {
			return "None"
		}
	case model.QueueStatus:
		if s == "" {
			return "None"
		}
	}
	return v
}

var standardTransforms = []transform{userToDisplayName, blankToNone}

func applyTransforms(v any, transforms []transform) any {
	for _, t := range transforms {
		v = t(v)
	}
	return v
}

// watch compares the watched fields of two versions of one entity and
// returns one sentence per field that differs after transformation.
func watch[E model.Entity](before, after E, fields []field[E], transforms []transform) []string {
	var sentences []string
	for _, f := range fields {
		a := applyTransforms(f.get(before), transforms)
		b := applyTransforms(f.get(after), transforms)
		if a == b {
			continue
		}
		sentences = append(sentences, fmt.Sprintf("The %s changed from \"%v\" to \"%v\".", label(f.name), a, b))
	}
	return sentences
}

// describe dispatches on the entity variant. Both versions share an id and
// therefore a variant.
func describe(before, after model.Entity) []string {
	switch b := before.(type) {
	case model.Queue:
		return watch(b, after.(model.Queue), queueFields, standardTransforms)
	case model.Meeting:
		a := after.(model.Meeting)
		sentences := watch(b, a, meetingFields, standardTransforms)
		if a.Started() && !b.Started() {
			sentences = append(sentences, MeetingStartedMessage)
		}
		return sentences
	}
	panic(fmt.Sprintf("changes: unsupported entity %T", before))
}
