// Package health exposes liveness and readiness probes for a running
// coordinator process.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StatusSource reports whether the coordinator this handler fronts is
// currently serving a room. Implemented by coordinator.Coordinator.
type StatusSource interface {
	Ready() bool
	ActiveConnections() int
}

// Handler serves the coordinator's /healthz and /readyz endpoints.
type Handler struct {
	source StatusSource
}

// NewHandler builds a Handler backed by the given status source.
func NewHandler(source StatusSource) *Handler {
	return &Handler{source: source}
}

// LivenessResponse is the liveness probe body.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse is the readiness probe body.
type ReadinessResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Timestamp   string `json:"timestamp"`
}

// Liveness reports 200 as long as the process is up; it checks nothing else.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness reports 200 while the status source reports ready (for a
// coordinator: while it hosts a room), 503 otherwise or with no source.
func (h *Handler) Readiness(c *gin.Context) {
	status := "ready"
	code := http.StatusOK
	conns := 0
	if h.source == nil || !h.source.Ready() {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	} else {
		conns = h.source.ActiveConnections()
	}

	c.JSON(code, ReadinessResponse{
		Status:      status,
		Connections: conns,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}
