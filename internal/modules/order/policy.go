// README: Default role-based capability policy for order transitions.
package order

import "waypoint/internal/types"

// RolePolicy is the built-in AuthorizationPolicy: restaurants drive the
// kitchen states, drivers drive the road states, admins drive anything, and
// every party may cancel a non-terminal order it is attached to.
type RolePolicy struct{}

func NewRolePolicy() RolePolicy { return RolePolicy{} }

func (RolePolicy) CanTransition(actor Actor, o *Order, target Status) bool {
	if actor.Type == ActorAdmin || actor.Type == ActorSystem {
		return true
	}
	if target == StatusCancelled {
		return canCancel(actor, o)
	}
	switch actor.Type {
	case ActorRestaurant:
		// confirmed, preparing, ready
		return target == StatusConfirmed || target == StatusPreparing || target == StatusReady
	case ActorDriver:
		if o.DriverID != nil && *o.DriverID != actor.ID {
			return false
		}
		return target == StatusOutForDelivery || target == StatusDelivered
	default:
		return false
	}
}

func canCancel(actor Actor, o *Order) bool {
	switch actor.Type {
	case ActorCustomer:
		return o.UserID == actor.ID
	case ActorDriver:
		return o.DriverID != nil && *o.DriverID == actor.ID
	case ActorRestaurant:
		return true
	default:
		return false
	}
}

func (RolePolicy) OwnsOrder(userID types.ID, o *Order) bool {
	return o.UserID == userID
}
