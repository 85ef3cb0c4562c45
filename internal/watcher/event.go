package watcher

import (
	"slices"
	"strings"
	"time"
)

type Kind int

const (
	Create Kind = iota + 1
	Modify
	Delete
)

func (k Kind) String() string {
	switch k {
	case Create:
		return "CREATE"
	case Modify:
		return "MODIFY"
	case Delete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is one consolidated change to a file.
type Event struct {
	Path string    `json:"path"`
	Kind Kind      `json:"kind"`
	Time time.Time `json:"time"`
}

// consolidate merges next into the pending event for the same path. The
// second result is false when the two cancel out.
func consolidate(prev, next Event) (Event, bool) {
	merged := next
	switch {
	case prev.Kind == Create && next.Kind == Modify:
		merged.Kind = Create
	case prev.Kind == Create && next.Kind == Delete:
		return Event{}, false
	case prev.Kind == Delete && next.Kind == Create:
		merged.Kind = Modify
	}
	return merged, true
}

func sortEvents(events []Event) {
	slices.SortFunc(events, func(a, b Event) int {
		return strings.Compare(a.Path, b.Path)
	})
}
