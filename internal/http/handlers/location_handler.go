// README: Driver location ingestion endpoint.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"waypoint/internal/modules/location"
	"waypoint/internal/types"
)

type LocationHandler struct {
	ingest *location.Ingest
}

func NewLocationHandler(ingest *location.Ingest) *LocationHandler {
	return &LocationHandler{ingest: ingest}
}

type locationReq struct {
	DriverID   string     `json:"driver_id"`
	Lat        float64    `json:"lat"`
	Lng        float64    `json:"lng"`
	Heading    *float64   `json:"heading,omitempty"`
	SpeedKmh   *float64   `json:"speed_kmh,omitempty"`
	AccuracyM  *float64   `json:"accuracy_m,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

func (h *LocationHandler) Record(c *gin.Context) {
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	sample := location.Sample{
		DriverID:  types.ID(req.DriverID),
		Lat:       req.Lat,
		Lng:       req.Lng,
		Heading:   req.Heading,
		SpeedKmh:  req.SpeedKmh,
		AccuracyM: req.AccuracyM,
	}
	if req.RecordedAt != nil {
		sample.RecordedAt = *req.RecordedAt
	}
	cur, err := h.ingest.Record(c.Request.Context(), sample)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{
		"driver_id":   cur.DriverID,
		"lat":         cur.Lat,
		"lng":         cur.Lng,
		"recorded_at": cur.RecordedAt,
		"stale":       cur.Stale,
	})
}
