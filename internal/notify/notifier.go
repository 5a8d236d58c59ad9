// README: Notification port, topic naming, and push event names.
package notify

import (
	"context"
	"fmt"

	"waypoint/internal/types"
)

// Notifier is the transport-agnostic publish side of the pub/sub channel.
// Delivery guarantees belong to the transport; the core publishes exactly
// once per state-changing event.
type Notifier interface {
	Publish(ctx context.Context, topic, event string, payload any) error
}

const (
	EventOrderStatusUpdated   = "order_status_updated"
	EventDriverLocationUpdate = "driver_location_updated"
	EventETAUpdated           = "eta_updated"
	EventDriverAssigned       = "driver_assigned"
)

const AdminTopic = "admin"

func OrderTopic(orderID types.ID) string {
	return fmt.Sprintf("order:%s", orderID)
}

func UserTopic(userID types.ID) string {
	return fmt.Sprintf("user:%s", userID)
}
