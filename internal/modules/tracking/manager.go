// README: Tracking manager: orchestrates the state machine, session
// registry, ETA recomputation, and notification fan-out.
package tracking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"waypoint/internal/geo"
	"waypoint/internal/metrics"
	"waypoint/internal/modules/location"
	"waypoint/internal/modules/order"
	"waypoint/internal/notify"
	"waypoint/internal/types"
)

// OrderStore is the persistence port for orders. The store provides its own
// concurrency control: UpdateStatus and SetDriver are compare-and-swap on
// the status version. *order.Store satisfies it.
type OrderStore interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	Create(ctx context.Context, o *order.Order) error
	UpdateStatus(ctx context.Context, id types.ID, from, to order.Status, version int, entry order.StatusChange, deliveredAt *time.Time) (bool, error)
	SetDriver(ctx context.Context, id types.ID, driverID types.ID, version int) (bool, error)
	SetETA(ctx context.Context, id types.ID, eta time.Time) error
	ActiveByDriver(ctx context.Context, driverID types.ID) ([]*order.Order, error)
}

// LocationLog is the read side of the location store used to seed sessions.
type LocationLog interface {
	Latest(ctx context.Context, driverID types.ID) (*location.Sample, error)
}

// Publisher is the ordered fan-out side. *notify.Dispatcher satisfies it.
type Publisher interface {
	Publish(orderID types.ID, topics []string, event string, payload any)
}

// Geocoder resolves delivery addresses for orders created without
// precomputed coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (types.Point, error)
}

type Config struct {
	DefaultSpeedKmh float64
	ETAThreshold    time.Duration
	StaleWindow     time.Duration
}

type Manager struct {
	orders    OrderStore
	locations LocationLog
	registry  Registry
	publisher Publisher
	geocoder  Geocoder
	policy    order.AuthorizationPolicy
	machine   *order.Machine
	cfg       Config
	logger    *slog.Logger

	locks keyedMutex
	now   func() time.Time
}

func NewManager(
	orders OrderStore,
	locations LocationLog,
	registry Registry,
	publisher Publisher,
	geocoder Geocoder,
	policy order.AuthorizationPolicy,
	cfg Config,
	logger *slog.Logger,
) *Manager {
	if cfg.DefaultSpeedKmh <= 0 {
		cfg.DefaultSpeedKmh = 30
	}
	if cfg.ETAThreshold <= 0 {
		cfg.ETAThreshold = 5 * time.Minute
	}
	if cfg.StaleWindow <= 0 {
		cfg.StaleWindow = 5 * time.Minute
	}
	return &Manager{
		orders:    orders,
		locations: locations,
		registry:  registry,
		publisher: publisher,
		geocoder:  geocoder,
		policy:    policy,
		machine:   order.NewMachine(policy),
		cfg:       cfg,
		logger:    logger.With("component", "tracking_manager"),
		now:       time.Now,
	}
}

type PlaceOrderCommand struct {
	UserID          types.ID
	DeliveryAddress string
	DeliveryPoint   *types.Point
}

// PlaceOrder creates a pending order with its initial history entry.
func (m *Manager) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (*order.Order, error) {
	if cmd.UserID == "" || cmd.DeliveryAddress == "" {
		return nil, order.ErrBadRequest
	}
	now := m.now()
	o := &order.Order{
		ID:              types.ID(uuid.NewString()),
		UserID:          cmd.UserID,
		Status:          order.StatusPending,
		DeliveryAddress: cmd.DeliveryAddress,
		DeliveryPoint:   cmd.DeliveryPoint,
		History: []order.StatusChange{{
			Status: order.StatusPending,
			At:     now,
			Actor:  order.Actor{Type: order.ActorCustomer, ID: cmd.UserID},
		}},
		CreatedAt: now,
	}
	if err := m.orders.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (m *Manager) GetOrder(ctx context.Context, orderID types.ID) (*order.Order, error) {
	return m.orders.Get(ctx, orderID)
}

// ChangeStatus runs the state machine and persists the result with one
// internal retry on a lost optimistic-concurrency race. A second loss
// surfaces as order.ErrConflict; the transition is never silently dropped.
func (m *Manager) ChangeStatus(ctx context.Context, orderID types.ID, target order.Status, actor order.Actor, note string) (*order.Order, error) {
	unlock := m.locks.lock(orderID)
	defer unlock()

	updated, err := m.applyTransition(ctx, orderID, target, actor, note)
	if errors.Is(err, order.ErrConflict) {
		updated, err = m.applyTransition(ctx, orderID, target, actor, note)
	}
	if err != nil {
		metrics.StatusTransitionsRejectedTotal.Inc()
		return nil, err
	}
	metrics.StatusTransitionsTotal.WithLabelValues(string(target)).Inc()

	entry := updated.History[len(updated.History)-1]
	m.registry.ApplyStatus(orderID, target, entry)

	topics := []string{notify.OrderTopic(orderID), notify.UserTopic(updated.UserID)}
	if target == order.StatusCancelled {
		topics = append(topics, notify.AdminTopic)
	}
	m.publisher.Publish(orderID, topics, notify.EventOrderStatusUpdated, map[string]any{
		"order_id":   orderID,
		"status":     target,
		"actor_type": actor.Type,
		"changed_at": entry.At,
	})
	return updated, nil
}

func (m *Manager) applyTransition(ctx context.Context, orderID types.ID, target order.Status, actor order.Actor, note string) (*order.Order, error) {
	o, err := m.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	updated, err := m.machine.Transition(o, target, actor, m.now())
	if err != nil {
		return nil, err
	}
	entry := updated.History[len(updated.History)-1]
	entry.Note = note
	updated.History[len(updated.History)-1] = entry

	ok, err := m.orders.UpdateStatus(ctx, orderID, o.Status, target, o.StatusVersion, entry, updated.ActualDeliveryTime)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, order.ErrConflict
	}
	updated.StatusVersion = o.StatusVersion + 1
	return updated, nil
}

// AssignDriver attaches a driver to an order that is not yet on the road.
func (m *Manager) AssignDriver(ctx context.Context, orderID, driverID types.ID, actor order.Actor) (*order.Order, error) {
	if driverID == "" {
		return nil, order.ErrBadRequest
	}
	switch actor.Type {
	case order.ActorAdmin, order.ActorRestaurant, order.ActorSystem:
	default:
		return nil, order.ErrUnauthorized
	}

	unlock := m.locks.lock(orderID)
	defer unlock()

	for attempt := 0; attempt < 2; attempt++ {
		o, err := m.orders.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o.Status.Terminal() || o.Status == order.StatusOutForDelivery {
			return nil, order.ErrInvalidTransition
		}
		ok, err := m.orders.SetDriver(ctx, orderID, driverID, o.StatusVersion)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		o.DriverID = &driverID
		o.StatusVersion++
		m.publisher.Publish(orderID,
			[]string{notify.OrderTopic(orderID), notify.UserTopic(o.UserID)},
			notify.EventDriverAssigned, map[string]any{
				"order_id":  orderID,
				"driver_id": driverID,
			})
		return o, nil
	}
	return nil, order.ErrConflict
}

// StartTracking creates (or returns) the session for an order the user owns.
func (m *Manager) StartTracking(ctx context.Context, orderID, userID types.ID) (*Session, error) {
	o, err := m.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if m.policy != nil && !m.policy.OwnsOrder(userID, o) {
		m.logger.WarnContext(ctx, "tracking start denied", "order_id", orderID, "user_id", userID)
		return nil, order.ErrUnauthorized
	}

	unlock := m.locks.lock(orderID)
	defer unlock()

	if s, ok := m.registry.Get(orderID); ok {
		return s, nil
	}
	// A transition can commit between the ownership read and the lock; such
	// a transition fires ApplyStatus into a not-yet-existing session and is
	// lost. Re-read under the lock so the session never caches a superseded
	// status.
	o, err = m.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s := m.buildSession(ctx, o, userID)
	m.registry.Put(s)
	return s, nil
}

// StopTracking removes the session. Absent sessions are a no-op; a session
// owned by a different watcher is unauthorized.
func (m *Manager) StopTracking(ctx context.Context, orderID, userID types.ID) error {
	unlock := m.locks.lock(orderID)
	defer unlock()

	s, ok := m.registry.Get(orderID)
	if !ok {
		return nil
	}
	if s.WatchingUserID != userID {
		return order.ErrUnauthorized
	}
	m.registry.Remove(orderID)
	return nil
}

// Snapshot serves reads: the cached session when one exists, otherwise an
// ephemeral view assembled straight from the stores.
func (m *Manager) Snapshot(ctx context.Context, orderID types.ID) (*Session, error) {
	if s, ok := m.registry.Get(orderID); ok {
		return s, nil
	}
	o, err := m.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return m.buildSession(ctx, o, o.UserID), nil
}

// OnLocation fans an accepted sample out to every active out_for_delivery
// order of the driver. Each order is updated under its own lock; a driver
// with several active orders cannot corrupt any of them.
func (m *Manager) OnLocation(ctx context.Context, sample location.Sample) {
	active, err := m.orders.ActiveByDriver(ctx, sample.DriverID)
	if err != nil {
		m.logger.ErrorContext(ctx, "active order lookup failed",
			"driver_id", sample.DriverID, "error", err)
		return
	}
	for _, o := range active {
		m.applySample(ctx, o, sample)
	}
}

func (m *Manager) applySample(ctx context.Context, o *order.Order, sample location.Sample) {
	unlock := m.locks.lock(o.ID)
	defer unlock()

	now := m.now()
	snap := DriverSnapshot{
		Lat:       sample.Lat,
		Lng:       sample.Lng,
		Heading:   sample.Heading,
		SpeedKmh:  sample.SpeedKmh,
		UpdatedAt: sample.RecordedAt,
		Stale:     now.Sub(sample.RecordedAt) > m.cfg.StaleWindow,
	}
	m.registry.ApplyLocation(o.ID, snap)
	m.publisher.Publish(o.ID,
		[]string{notify.OrderTopic(o.ID)},
		notify.EventDriverLocationUpdate, map[string]any{
			"order_id":    o.ID,
			"driver_id":   sample.DriverID,
			"lat":         sample.Lat,
			"lng":         sample.Lng,
			"recorded_at": sample.RecordedAt,
			"stale":       snap.Stale,
		})

	m.recomputeETA(ctx, o, sample, now)
}

// recomputeETA applies the hysteresis threshold: watchers are only notified
// when the estimate moved by more than the configured delta, so GPS jitter
// does not turn into a notification storm.
func (m *Manager) recomputeETA(ctx context.Context, o *order.Order, sample location.Sample, now time.Time) {
	dest, ok := m.destination(ctx, o)
	if !ok {
		// Geocoding is down or the address is unresolvable; keep the
		// previous estimate rather than failing the flow.
		return
	}

	speed := m.cfg.DefaultSpeedKmh
	if sample.SpeedKmh != nil && *sample.SpeedKmh > 0 {
		speed = *sample.SpeedKmh
	}
	dist := geo.DistanceKm(sample.Lat, sample.Lng, dest.Lat, dest.Lng)
	mins, computable := geo.ETAMinutes(dist, speed, geo.TrafficFactor(now))
	if !computable {
		return
	}
	newETA := now.Add(time.Duration(mins) * time.Minute)

	prev := o.EstimatedDeliveryTime
	if s, exists := m.registry.Get(o.ID); exists && s.ETA != nil {
		prev = s.ETA
	}
	if prev != nil && absDuration(newETA.Sub(*prev)) <= m.cfg.ETAThreshold {
		metrics.ETAUpdatesSuppressedTotal.Inc()
		return
	}

	if err := m.orders.SetETA(ctx, o.ID, newETA); err != nil {
		m.logger.ErrorContext(ctx, "eta persist failed", "order_id", o.ID, "error", err)
		return
	}
	o.EstimatedDeliveryTime = &newETA
	m.registry.ApplyETA(o.ID, newETA)
	m.publisher.Publish(o.ID,
		[]string{notify.OrderTopic(o.ID), notify.UserTopic(o.UserID)},
		notify.EventETAUpdated, map[string]any{
			"order_id":                o.ID,
			"estimated_delivery_time": newETA,
		})
	metrics.ETAUpdatesPublishedTotal.Inc()
}

// destination resolves the delivery point, preferring the precomputed
// coordinates set at order creation.
func (m *Manager) destination(ctx context.Context, o *order.Order) (types.Point, bool) {
	if o.DeliveryPoint != nil {
		return *o.DeliveryPoint, true
	}
	if m.geocoder == nil {
		return types.Point{}, false
	}
	p, err := m.geocoder.Resolve(ctx, o.DeliveryAddress)
	if err != nil {
		m.logger.WarnContext(ctx, "geocode failed, keeping previous eta",
			"order_id", o.ID, "error", err)
		return types.Point{}, false
	}
	return p, true
}

func (m *Manager) buildSession(ctx context.Context, o *order.Order, watcher types.ID) *Session {
	now := m.now()
	s := &Session{
		OrderID:        o.ID,
		WatchingUserID: watcher,
		Status:         o.Status,
		ETA:            o.EstimatedDeliveryTime,
		History:        boundedHistory(o.History),
		StartedAt:      now,
		LastUpdated:    now,
	}
	if o.DriverID != nil {
		if sm, err := m.locations.Latest(ctx, *o.DriverID); err == nil {
			s.Driver = &DriverSnapshot{
				Lat:       sm.Lat,
				Lng:       sm.Lng,
				Heading:   sm.Heading,
				SpeedKmh:  sm.SpeedKmh,
				UpdatedAt: sm.RecordedAt,
				Stale:     now.Sub(sm.RecordedAt) > m.cfg.StaleWindow,
			}
		}
	}
	return s
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
