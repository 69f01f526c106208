package route

import (
	"encoding/json"
	"errors"
	"time"

	"ride-convoy/internal/domain/geo"
	"ride-convoy/internal/domain/ride"
)

var errCorruptEntry = errors.New("route cache entry is corrupt")

// cacheEntry is the serialized form of a cached route.
type cacheEntry struct {
	Geometry    []geo.Coordinate `json:"geometry"`
	Distance    float64          `json:"distance"`
	Duration    float64          `json:"duration"`
	Destination *geo.Coordinate  `json:"destination,omitempty"`
	CachedAt    time.Time        `json:"cachedAt"`
}

// CacheKey is the store key for a session's route.
func CacheKey(sessionKey string) string {
	return "route_" + sessionKey
}

func encodeEntry(result *ride.RouteResult, destination geo.Coordinate, cachedAt time.Time) ([]byte, error) {
	return json.Marshal(cacheEntry{
		Geometry:    result.Geometry(),
		Distance:    result.Distance(),
		Duration:    result.Duration(),
		Destination: &destination,
		CachedAt:    cachedAt.UTC(),
	})
}

func decodeEntry(raw []byte) (cacheEntry, error) {
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return cacheEntry{}, errors.Join(errCorruptEntry, err)
	}
	if entry.Distance < 0 || entry.Duration < 0 {
		return cacheEntry{}, errCorruptEntry
	}
	for _, c := range entry.Geometry {
		if err := c.Validate(); err != nil {
			return cacheEntry{}, errors.Join(errCorruptEntry, err)
		}
	}
	return entry, nil
}
