package model

import "sort"

// SortQueues orders queues open first, then by id descending. The input is
// left untouched. Queues sharing an id keep their relative order within a
// status group.
func SortQueues(queues []Queue) []Queue {
	out := make([]Queue, len(queues))
	copy(out, queues)
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := out[i].IsOpen(), out[j].IsOpen()
		if oi != oj {
			return oi
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// SortMeetings orders meetings by line place; meetings without one go last.
func SortMeetings(meetings []Meeting) []Meeting {
	out := make([]Meeting, len(meetings))
	copy(out, meetings)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].LinePlace, out[j].LinePlace
		switch {
		case pi == nil:
			return false
		case pj == nil:
			return true
		}
		return *pi < *pj
	})
	return out
}
