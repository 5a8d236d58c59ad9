// README: Order endpoints: place, read, status transition, driver assignment.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"waypoint/internal/modules/order"
	"waypoint/internal/modules/tracking"
	"waypoint/internal/types"
)

type OrderHandler struct {
	manager *tracking.Manager
}

func NewOrderHandler(manager *tracking.Manager) *OrderHandler {
	return &OrderHandler{manager: manager}
}

type createOrderReq struct {
	UserID          string   `json:"user_id"`
	DeliveryAddress string   `json:"delivery_address"`
	DeliveryLat     *float64 `json:"delivery_lat,omitempty"`
	DeliveryLng     *float64 `json:"delivery_lng,omitempty"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := tracking.PlaceOrderCommand{
		UserID:          types.ID(req.UserID),
		DeliveryAddress: req.DeliveryAddress,
	}
	if req.DeliveryLat != nil && req.DeliveryLng != nil {
		cmd.DeliveryPoint = &types.Point{Lat: *req.DeliveryLat, Lng: *req.DeliveryLng}
	}
	o, err := h.manager.PlaceOrder(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, orderView(o))
}

func (h *OrderHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	o, err := h.manager.GetOrder(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

type statusReq struct {
	TargetStatus string `json:"target_status"`
	ActorType    string `json:"actor_type"`
	ActorID      string `json:"actor_id"`
	Note         string `json:"note,omitempty"`
}

func (h *OrderHandler) ChangeStatus(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	actor := order.Actor{Type: order.ActorType(req.ActorType), ID: types.ID(req.ActorID)}
	o, err := h.manager.ChangeStatus(c.Request.Context(), types.ID(id), order.Status(req.TargetStatus), actor, req.Note)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

type assignDriverReq struct {
	DriverID  string `json:"driver_id"`
	ActorType string `json:"actor_type"`
	ActorID   string `json:"actor_id"`
}

func (h *OrderHandler) AssignDriver(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	var req assignDriverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	actor := order.Actor{Type: order.ActorType(req.ActorType), ID: types.ID(req.ActorID)}
	o, err := h.manager.AssignDriver(c.Request.Context(), types.ID(id), types.ID(req.DriverID), actor)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

func orderView(o *order.Order) map[string]any {
	history := make([]map[string]any, len(o.History))
	for i, hEntry := range o.History {
		history[i] = map[string]any{
			"status":     hEntry.Status,
			"at":         hEntry.At,
			"actor_type": hEntry.Actor.Type,
		}
		if hEntry.Note != "" {
			history[i]["note"] = hEntry.Note
		}
	}
	v := map[string]any{
		"order_id":         o.ID,
		"user_id":          o.UserID,
		"status":           o.Status,
		"delivery_address": o.DeliveryAddress,
		"status_history":   history,
		"created_at":       o.CreatedAt,
	}
	if o.DriverID != nil {
		v["driver_id"] = *o.DriverID
	}
	if o.EstimatedDeliveryTime != nil {
		v["estimated_delivery_time"] = *o.EstimatedDeliveryTime
	}
	if o.ActualDeliveryTime != nil {
		v["actual_delivery_time"] = *o.ActualDeliveryTime
	}
	return v
}
