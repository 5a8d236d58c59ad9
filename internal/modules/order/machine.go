// README: Pure state-machine decision function for order status transitions.
package order

import (
	"errors"
	"time"

	"waypoint/internal/types"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnauthorized      = errors.New("actor not authorized")
	ErrNotFound          = errors.New("order not found")
	ErrConflict          = errors.New("order state conflict")
	ErrBadRequest        = errors.New("bad request")
)

// AuthorizationPolicy is the pluggable capability check. The machine only
// enforces the state graph; who may drive a given edge is policy.
type AuthorizationPolicy interface {
	CanTransition(actor Actor, o *Order, target Status) bool
	OwnsOrder(userID types.ID, o *Order) bool
}

// Machine validates and applies status transitions. Transition is a pure
// decision function: it returns the updated order for the caller to persist
// and never touches storage or notification itself.
type Machine struct {
	policy AuthorizationPolicy
}

func NewMachine(policy AuthorizationPolicy) *Machine {
	return &Machine{policy: policy}
}

// Transition applies target to a copy of o. On success the copy carries the
// new status, one appended history entry, and ActualDeliveryTime when the
// order just became delivered. o itself is left untouched.
func (m *Machine) Transition(o *Order, target Status, actor Actor, now time.Time) (*Order, error) {
	if !target.Valid() {
		return nil, ErrBadRequest
	}
	if !CanTransition(o.Status, target) {
		return nil, ErrInvalidTransition
	}
	if m.policy != nil && !m.policy.CanTransition(actor, o, target) {
		return nil, ErrUnauthorized
	}

	next := o.Clone()
	next.Status = target
	next.History = append(next.History, StatusChange{Status: target, At: now, Actor: actor})
	if target == StatusDelivered && next.ActualDeliveryTime == nil {
		t := now
		next.ActualDeliveryTime = &t
	}
	return next, nil
}
