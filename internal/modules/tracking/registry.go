// README: In-memory session registry keyed by order ID. A cache, never the
// source of truth; every mutation is a no-op when no session exists.
package tracking

import (
	"sync"
	"time"

	"waypoint/internal/metrics"
	"waypoint/internal/modules/order"
	"waypoint/internal/types"
)

// Registry holds the active tracking sessions. Injectable so a single
// instance can use the in-memory implementation and a horizontally scaled
// deployment can back it with a distributed cache.
type Registry interface {
	Put(s *Session)
	// Get returns a copy of the session and refreshes its idle timer.
	Get(orderID types.ID) (*Session, bool)
	Remove(orderID types.ID) bool
	ApplyLocation(orderID types.ID, snap DriverSnapshot)
	ApplyStatus(orderID types.ID, status order.Status, entry order.StatusChange)
	ApplyETA(orderID types.ID, eta time.Time)
	Len() int
	// Sweep evicts idle sessions and terminal sessions past their grace
	// period, returning the number evicted.
	Sweep(now time.Time) int
}

type sessionEntry struct {
	mu sync.Mutex
	s  Session
}

type MemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[types.ID]*sessionEntry

	idleWindow    time.Duration
	terminalGrace time.Duration
}

func NewMemoryRegistry(idleWindow, terminalGrace time.Duration) *MemoryRegistry {
	return &MemoryRegistry{
		sessions:      make(map[types.ID]*sessionEntry),
		idleWindow:    idleWindow,
		terminalGrace: terminalGrace,
	}
}

func (r *MemoryRegistry) Put(s *Session) {
	e := &sessionEntry{s: *s.clone()}
	r.mu.Lock()
	r.sessions[s.OrderID] = e
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()
}

func (r *MemoryRegistry) Get(orderID types.ID) (*Session, bool) {
	e, ok := r.entry(orderID)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.LastUpdated = time.Now()
	return e.s.clone(), true
}

func (r *MemoryRegistry) Remove(orderID types.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[orderID]; !ok {
		return false
	}
	delete(r.sessions, orderID)
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return true
}

func (r *MemoryRegistry) ApplyLocation(orderID types.ID, snap DriverSnapshot) {
	e, ok := r.entry(orderID)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.Driver = &snap
	e.s.LastUpdated = time.Now()
}

func (r *MemoryRegistry) ApplyStatus(orderID types.ID, status order.Status, entry order.StatusChange) {
	e, ok := r.entry(orderID)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.Status = status
	e.s.History = boundedHistory(append(e.s.History, entry))
	e.s.LastUpdated = time.Now()
}

func (r *MemoryRegistry) ApplyETA(orderID types.ID, eta time.Time) {
	e, ok := r.entry(orderID)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.ETA = &eta
	e.s.LastUpdated = time.Now()
}

func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep holds each session lock only for the duration of a single check, and
// the map write lock only for the final removals.
func (r *MemoryRegistry) Sweep(now time.Time) int {
	r.mu.RLock()
	candidates := make(map[types.ID]*sessionEntry, len(r.sessions))
	for id, e := range r.sessions {
		candidates[id] = e
	}
	r.mu.RUnlock()

	var victims []types.ID
	for id, e := range candidates {
		e.mu.Lock()
		idle := now.Sub(e.s.LastUpdated)
		terminal := e.s.Status.Terminal()
		e.mu.Unlock()

		if idle > r.idleWindow || (terminal && idle > r.terminalGrace) {
			victims = append(victims, id)
		}
	}
	if len(victims) == 0 {
		return 0
	}

	r.mu.Lock()
	evicted := 0
	for _, id := range victims {
		if _, ok := r.sessions[id]; ok {
			delete(r.sessions, id)
			evicted++
		}
	}
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()
	return evicted
}

func (r *MemoryRegistry) entry(orderID types.ID) (*sessionEntry, bool) {
	r.mu.RLock()
	e, ok := r.sessions[orderID]
	r.mu.RUnlock()
	return e, ok
}
