// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"waypoint/internal/http/handlers"
	"waypoint/internal/http/middleware"
	"waypoint/internal/modules/location"
	"waypoint/internal/modules/tracking"
)

func NewRouter(manager *tracking.Manager, ingest *location.Ingest, logger *slog.Logger) http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(logger), middleware.Logging(logger))

	orderHandler := handlers.NewOrderHandler(manager)
	r.POST("/api/orders", orderHandler.Create)
	r.GET("/api/orders/:id", orderHandler.Get)
	r.POST("/api/orders/:id/status", orderHandler.ChangeStatus)
	r.POST("/api/orders/:id/driver", orderHandler.AssignDriver)

	locationHandler := handlers.NewLocationHandler(ingest)
	r.POST("/api/location", locationHandler.Record)

	trackingHandler := handlers.NewTrackingHandler(manager)
	r.POST("/api/tracking/:orderId/start", trackingHandler.Start)
	r.POST("/api/tracking/:orderId/stop", trackingHandler.Stop)
	r.GET("/api/tracking/:orderId", trackingHandler.Get)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
