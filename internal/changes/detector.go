// Package changes derives human-readable descriptions of what changed between
// two snapshots of the same kind of entity.
package changes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/model"
)

// MeetingStartedMessage is appended when a meeting moves into progress.
const MeetingStartedMessage = "The meeting is now in progress."

// Compare returns one message per entity id that was added, deleted or had
// a watched field change between old and new. Identical inputs yield nil.
//
// An id present in both snapshots but with differing values shows up twice
// in the symmetric difference. When more than two versions of one id appear,
// the first (oldest) and the last (newest) are compared.
func Compare[E model.Entity](oldOnes, newOnes []E) []string {
	diff := symmetricDifference(oldOnes, newOnes)
	if len(diff) == 0 {
		return nil
	}

	oldIDs := idSet(oldOnes)
	newIDs := idSet(newOnes)
	processed := make(map[int]bool, len(diff))

	var messages []string
	for _, entity := range diff {
		id := entity.EntityID()
		if processed[id] {
			continue
		}
		processed[id] = true

		kind := entity.Kind()
		ident := permanentIdentifier(entity)
		_, inOld := oldIDs[id]
		_, inNew := newIDs[id]

		switch {
		case inOld && !inNew:
			messages = append(messages, fmt.Sprintf("The %s %s was deleted.", kind, ident))
		case inNew && !inOld:
			messages = append(messages, fmt.Sprintf("A new %s %s was added.", kind, ident))
		default:
			versions := versionsOf(diff, id)
			sentences := describe(versions[0], versions[len(versions)-1])
			if len(sentences) == 0 {
				continue
			}
			messages = append(messages, fmt.Sprintf("The %s %s was changed. %s", kind, ident, strings.Join(sentences, " ")))
		}
	}
	return messages
}

// symmetricDifference returns the elements of oldOnes with no deep-equal
// counterpart in newOnes, followed by the elements of newOnes with no
// deep-equal counterpart in oldOnes.
func symmetricDifference[E model.Entity](oldOnes, newOnes []E) []E {
	var out []E
	for _, o := range oldOnes {
		if !containsEqual(newOnes, o) {
			out = append(out, o)
		}
	}
	for _, n := range newOnes {
		if !containsEqual(oldOnes, n) {
			out = append(out, n)
		}
	}
	return out
}

func containsEqual[E model.Entity](list []E, e E) bool {
	for _, candidate := range list {
		if model.Equal(candidate, e) {
			return true
		}
	}
	return false
}

func idSet[E model.Entity](list []E) map[int]struct{} {
	ids := make(map[int]struct{}, len(list))
	for _, e := range list {
		ids[e.EntityID()] = struct{}{}
	}
	return ids
}

func versionsOf[E model.Entity](diff []E, id int) []E {
	var out []E
	for _, e := range diff {
		if e.EntityID() == id {
			out = append(out, e)
		}
	}
	return out
}

// permanentIdentifier names an entity in a way a person recognises. A
// meeting id means nothing to a reader but its attendee does.
func permanentIdentifier(e model.Entity) string {
	switch v := e.(type) {
	case model.Meeting:
		if u, ok := v.PrimaryAttendee(); ok {
			return "for attendee " + u.DisplayName()
		}
		return "with ID number " + strconv.Itoa(v.ID)
	case model.Queue:
		return "with ID number " + strconv.Itoa(v.ID)
	}
	panic(fmt.Sprintf("changes: unsupported entity %T", e))
}
