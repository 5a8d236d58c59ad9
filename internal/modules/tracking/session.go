// README: Ephemeral per-order tracking session (cache over the stores).
package tracking

import (
	"time"

	"waypoint/internal/modules/order"
	"waypoint/internal/types"
)

// maxSessionHistory bounds the history copy carried by a session. The full
// history always lives in the order store.
const maxSessionHistory = 16

// DriverSnapshot is the last known driver position as seen by watchers.
type DriverSnapshot struct {
	Lat       float64
	Lng       float64
	Heading   *float64
	SpeedKmh  *float64
	UpdatedAt time.Time
	Stale     bool
}

// Session is the in-memory live view of one actively watched order. It is
// never persisted: losing it loses only the "someone is watching" fact,
// order truth stays in the order store.
type Session struct {
	OrderID        types.ID
	WatchingUserID types.ID
	Status         order.Status
	Driver         *DriverSnapshot
	ETA            *time.Time
	History        []order.StatusChange
	StartedAt      time.Time
	LastUpdated    time.Time
}

func (s *Session) clone() *Session {
	c := *s
	if s.Driver != nil {
		d := *s.Driver
		c.Driver = &d
	}
	if s.ETA != nil {
		t := *s.ETA
		c.ETA = &t
	}
	c.History = make([]order.StatusChange, len(s.History))
	copy(c.History, s.History)
	return &c
}

func boundedHistory(h []order.StatusChange) []order.StatusChange {
	if len(h) > maxSessionHistory {
		h = h[len(h)-maxSessionHistory:]
	}
	out := make([]order.StatusChange, len(h))
	copy(out, h)
	return out
}
