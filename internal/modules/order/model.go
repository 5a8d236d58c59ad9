// README: Order aggregate, status definitions, and the transition table.
package order

import (
	"time"

	"waypoint/internal/types"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// ActorType identifies who requested a change to an order.
type ActorType string

const (
	ActorCustomer   ActorType = "customer"
	ActorRestaurant ActorType = "restaurant"
	ActorDriver     ActorType = "driver"
	ActorAdmin      ActorType = "admin"
	ActorSystem     ActorType = "system"
)

type Actor struct {
	Type ActorType
	ID   types.ID
}

// StatusChange is one entry of the append-only status history. The last
// entry always matches the order's current status.
type StatusChange struct {
	Status Status
	At     time.Time
	Actor  Actor
	Note   string
}

type Order struct {
	ID              types.ID
	UserID          types.ID
	DriverID        *types.ID
	Status          Status
	StatusVersion   int
	DeliveryAddress string
	// DeliveryPoint is set at creation when the address was geocoded upfront;
	// nil means the tracking engine resolves it lazily.
	DeliveryPoint         *types.Point
	EstimatedDeliveryTime *time.Time
	ActualDeliveryTime    *time.Time
	History               []StatusChange
	CreatedAt             time.Time
}

// AllowedTransitions represents the order lifecycle as code. Delivered and
// cancelled are terminal.
var AllowedTransitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReady, StatusCancelled},
	StatusReady:          {StatusOutForDelivery, StatusCancelled},
	StatusOutForDelivery: {StatusDelivered, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
		StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Clone returns a deep copy so the state machine can hand back an updated
// order without mutating the caller's view before persistence succeeds.
func (o *Order) Clone() *Order {
	c := *o
	if o.DriverID != nil {
		id := *o.DriverID
		c.DriverID = &id
	}
	if o.DeliveryPoint != nil {
		p := *o.DeliveryPoint
		c.DeliveryPoint = &p
	}
	if o.EstimatedDeliveryTime != nil {
		t := *o.EstimatedDeliveryTime
		c.EstimatedDeliveryTime = &t
	}
	if o.ActualDeliveryTime != nil {
		t := *o.ActualDeliveryTime
		c.ActualDeliveryTime = &t
	}
	c.History = make([]StatusChange, len(o.History))
	copy(c.History, o.History)
	return &c
}
