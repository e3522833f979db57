package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/angeloszaimis/resilient-client/internal/adapter"
	"github.com/angeloszaimis/resilient-client/internal/healthcheck"
)

// Status reports network state, breaker states and backend records.
// GET /status
func (g *Gateway) Status(c *gin.Context) {
	status := g.client.HealthStatus()

	code := http.StatusOK
	if status.NetworkState == healthcheck.NetworkOffline {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// Metrics serves the performance snapshot as JSON.
// GET /metrics
func (g *Gateway) Metrics(c *gin.Context) {
	if g.collector == nil {
		respondJSON(c, http.StatusOK, g.client.PerformanceMetrics())
		return
	}
	g.collector.Handler(func() string { return string(g.client.Mode()) })(c.Writer, c.Request)
}

// Prometheus serves the collector's registry in exposition format.
// GET /metrics/prometheus
func (g *Gateway) Prometheus(c *gin.Context) {
	if g.collector == nil {
		respondErrorMsg(c, http.StatusNotFound, "metrics collector not configured")
		return
	}
	g.collector.Exporter().Handler().ServeHTTP(c.Writer, c.Request)
}

// GetConfig returns the client options in effect.
// GET /config
func (g *Gateway) GetConfig(c *gin.Context) {
	respondJSON(c, http.StatusOK, g.client.Options())
}

// UpdateConfig swaps the client options at runtime. Fields the body omits
// keep their current value.
// PUT /config
func (g *Gateway) UpdateConfig(c *gin.Context) {
	opts := g.client.Options()
	if err := c.ShouldBindJSON(&opts); err != nil {
		respondErrorMsg(c, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	if err := g.client.UpdateConfig(opts); err != nil {
		g.logger.Warn("Rejected client configuration", slog.Any("error", err))
		respondError(c, err, "")
		return
	}

	respondJSON(c, http.StatusOK, struct {
		adapter.Options
		Mode adapter.Mode `json:"mode"`
	}{opts, g.client.Mode()})
}
