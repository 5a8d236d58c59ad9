// README: Tracking session endpoints: start, stop, snapshot read.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"waypoint/internal/modules/tracking"
	"waypoint/internal/types"
)

type TrackingHandler struct {
	manager *tracking.Manager
}

func NewTrackingHandler(manager *tracking.Manager) *TrackingHandler {
	return &TrackingHandler{manager: manager}
}

type trackingReq struct {
	UserID string `json:"user_id"`
}

func (h *TrackingHandler) Start(c *gin.Context) {
	orderID := c.Param("orderId")
	var req trackingReq
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		writeError(c, http.StatusBadRequest, "missing user_id")
		return
	}
	s, err := h.manager.StartTracking(c.Request.Context(), types.ID(orderID), types.ID(req.UserID))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, sessionView(s))
}

func (h *TrackingHandler) Stop(c *gin.Context) {
	orderID := c.Param("orderId")
	var req trackingReq
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		writeError(c, http.StatusBadRequest, "missing user_id")
		return
	}
	if err := h.manager.StopTracking(c.Request.Context(), types.ID(orderID), types.ID(req.UserID)); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TrackingHandler) Get(c *gin.Context) {
	orderID := c.Param("orderId")
	s, err := h.manager.Snapshot(c.Request.Context(), types.ID(orderID))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, sessionView(s))
}

func sessionView(s *tracking.Session) map[string]any {
	history := make([]map[string]any, len(s.History))
	for i, hEntry := range s.History {
		history[i] = map[string]any{
			"status":     hEntry.Status,
			"at":         hEntry.At,
			"actor_type": hEntry.Actor.Type,
		}
	}
	v := map[string]any{
		"order_id":       s.OrderID,
		"status":         s.Status,
		"status_history": history,
		"started_at":     s.StartedAt,
		"last_updated":   s.LastUpdated,
	}
	if s.ETA != nil {
		v["estimated_delivery_time"] = *s.ETA
	}
	if s.Driver != nil {
		driver := map[string]any{
			"lat":        s.Driver.Lat,
			"lng":        s.Driver.Lng,
			"updated_at": s.Driver.UpdatedAt,
			"stale":      s.Driver.Stale,
		}
		if s.Driver.Heading != nil {
			driver["heading"] = *s.Driver.Heading
		}
		if s.Driver.SpeedKmh != nil {
			driver["speed_kmh"] = *s.Driver.SpeedKmh
		}
		v["driver_location"] = driver
	}
	return v
}
