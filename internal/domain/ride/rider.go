package ride

import (
	"errors"
	"strings"
)

// Rider is one participant of a ride session.
type Rider struct {
	ID          string
	DisplayName string
	Ready       bool
	IsAdmin     bool
}

var ErrRiderIDRequired = errors.New("rider id is required")

// DedupeRiders collapses entries sharing an identifier into one Rider.
// The first occurrence keeps its position in the roster and later
// occurrences overwrite its fields (last write wins per field; an empty
// display name never overwrites a non-empty one). Entries without an id are
// dropped.
func DedupeRiders(in []Rider) []Rider {
	out := make([]Rider, 0, len(in))
	index := make(map[string]int, len(in))

	for _, r := range in {
		r.ID = strings.TrimSpace(r.ID)
		if r.ID == "" {
			continue
		}

		i, seen := index[r.ID]
		if !seen {
			index[r.ID] = len(out)
			out = append(out, r)
			continue
		}

		cur := &out[i]
		if r.DisplayName != "" {
			cur.DisplayName = r.DisplayName
		}
		cur.Ready = r.Ready
		cur.IsAdmin = r.IsAdmin
	}

	return out
}

// AllReady reports whether every rider of a non-empty roster is ready.
// An empty roster is never ready: there is nobody to start the ride with.
func AllReady(riders []Rider) bool {
	if len(riders) == 0 {
		return false
	}
	for _, r := range riders {
		if !r.Ready {
			return false
		}
	}
	return true
}

// FindRider returns the roster entry with the given id.
func FindRider(riders []Rider, id string) (Rider, bool) {
	for _, r := range riders {
		if r.ID == id {
			return r, true
		}
	}
	return Rider{}, false
}
