// README: In-memory fakes for the manager's ports.
package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"waypoint/internal/modules/location"
	"waypoint/internal/modules/order"
	"waypoint/internal/types"
)

type memOrders struct {
	mu     sync.Mutex
	orders map[types.ID]*order.Order
	// failCAS forces the next N compare-and-swap attempts to report a lost
	// race, to exercise the retry path.
	failCAS int
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[types.ID]*order.Order)}
}

func (s *memOrders) put(o *order.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o.Clone()
}

func (s *memOrders) Get(_ context.Context, id types.ID) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o.Clone(), nil
}

func (s *memOrders) Create(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o.Clone()
	return nil
}

func (s *memOrders) UpdateStatus(_ context.Context, id types.ID, from, to order.Status, version int, entry order.StatusChange, deliveredAt *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCAS > 0 {
		s.failCAS--
		return false, nil
	}
	o, ok := s.orders[id]
	if !ok || o.Status != from || o.StatusVersion != version {
		return false, nil
	}
	o.Status = to
	o.StatusVersion++
	o.History = append(o.History, entry)
	if deliveredAt != nil && o.ActualDeliveryTime == nil {
		t := *deliveredAt
		o.ActualDeliveryTime = &t
	}
	return true, nil
}

func (s *memOrders) SetDriver(_ context.Context, id types.ID, driverID types.ID, version int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCAS > 0 {
		s.failCAS--
		return false, nil
	}
	o, ok := s.orders[id]
	if !ok || o.StatusVersion != version {
		return false, nil
	}
	o.DriverID = &driverID
	o.StatusVersion++
	return true, nil
}

func (s *memOrders) SetETA(_ context.Context, id types.ID, eta time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	t := eta
	o.EstimatedDeliveryTime = &t
	return nil
}

func (s *memOrders) ActiveByDriver(_ context.Context, driverID types.ID) ([]*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*order.Order
	for _, o := range s.orders {
		if o.DriverID != nil && *o.DriverID == driverID && o.Status == order.StatusOutForDelivery {
			out = append(out, o.Clone())
		}
	}
	return out, nil
}

type memLocations struct {
	mu     sync.Mutex
	latest map[types.ID]location.Sample
}

func newMemLocations() *memLocations {
	return &memLocations{latest: make(map[types.ID]location.Sample)}
}

func (s *memLocations) put(sm location.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[sm.DriverID] = sm
}

func (s *memLocations) Latest(_ context.Context, driverID types.ID) (*location.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sm, ok := s.latest[driverID]
	if !ok {
		return nil, location.ErrNoSample
	}
	return &sm, nil
}

type publishedEvent struct {
	orderID types.ID
	topics  []string
	event   string
	payload map[string]any
}

type capturePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *capturePublisher) Publish(orderID types.ID, topics []string, event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, _ := payload.(map[string]any)
	p.events = append(p.events, publishedEvent{orderID: orderID, topics: topics, event: event, payload: m})
}

func (p *capturePublisher) byName(event string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (p *capturePublisher) forOrder(orderID types.ID) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.orderID == orderID {
			out = append(out, e)
		}
	}
	return out
}

type fakeGeocoder struct {
	mu    sync.Mutex
	point types.Point
	err   error
	calls int
}

func (g *fakeGeocoder) Resolve(_ context.Context, _ string) (types.Point, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return types.Point{}, g.err
	}
	return g.point, nil
}

var errGeocodeDown = errors.New("geocode upstream unavailable")
