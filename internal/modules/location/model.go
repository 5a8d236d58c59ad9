// README: Driver location samples and the "current position" read model.
package location

import (
	"time"

	"waypoint/internal/types"
)

// Sample is one appended driver position. (DriverID, RecordedAt) is the
// idempotency key: replaying the same sample must not create a duplicate.
type Sample struct {
	DriverID   types.ID
	Lat        float64
	Lng        float64
	Heading    *float64 // degrees, 0-360
	SpeedKmh   *float64
	AccuracyM  *float64
	RecordedAt time.Time
}

func (s Sample) Point() types.Point {
	return types.Point{Lat: s.Lat, Lng: s.Lng}
}

// Current is the latest known sample plus a staleness flag. Samples older
// than the staleness window stay readable but must never be presented as
// fresh.
type Current struct {
	Sample
	Stale bool
}
