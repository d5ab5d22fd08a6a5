package rest

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nodepulse/nodepulse/pkg/middleware"
)

func (h *Handler) SetupRoutes(engine *echo.Echo) {
	engine.GET("/health", h.echoHandler(h.HealthCheck))
	engine.GET("/version", h.echoHandler(h.Version))
	engine.GET("/metrics", echo.WrapHandler(h.Metrics.Handler()))

	api := engine.Group("/api", echo.WrapMiddleware(middleware.LoggerMiddleware))
	// v1 routes
	{
		apiV1 := api.Group("/v1")
		// node routes
		apiV1.GET("/nodes", h.echoHandler(h.ListNodes))
		apiV1.GET("/node", h.echoHandler(h.GetNode))
		apiV1.GET("/node/health", h.echoHandler(h.NodeHealth))
		apiV1.GET("/node/history", h.echoHandler(h.NodeHistory))

		// insight routes
		apiV1.GET("/predictions", h.echoHandler(h.Predictions))
		apiV1.GET("/stats", h.echoHandler(h.Stats))
		apiV1.GET("/analytics", h.echoHandler(h.Analytics))
		apiV1.GET("/model", h.echoHandler(h.Model))
		apiV1.GET("/audit", h.echoHandler(h.Audit))

		// event routes
		apiV1.GET("/events", h.echoHandler(h.ListEvents))
		apiV1.GET("/events/stream", h.echoHandler(h.StreamEvents))

		// remediation routes
		apiV1.POST("/nodes/taint", h.echoHandler(h.TaintNode))
		apiV1.POST("/nodes/drain", h.echoHandler(h.DrainNode))
		apiV1.POST("/nodes/remove-taint", h.echoHandler(h.RemoveTaint))

		// monitoring routes
		apiV1.POST("/monitoring/start", h.echoHandler(h.StartMonitoring))
		apiV1.POST("/monitoring/stop", h.echoHandler(h.StopMonitoring))
	}
}

func (h *Handler) echoHandler(handlerFunc func(w http.ResponseWriter, r *http.Request)) echo.HandlerFunc {
	return echo.WrapHandler(http.HandlerFunc(handlerFunc))
}
