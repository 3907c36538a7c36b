package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/peerlobby/pkg/api/types"
	"github.com/urmzd/peerlobby/pkg/lobby"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	svc lobby.Service
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(svc lobby.Service) *HealthHandler {
	return &HealthHandler{svc: svc}
}

// Health handles GET /health
// @Summary      Health check
// @Description  Returns the health status of the API and peer transport
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse  "Service is healthy"
// @Failure      503  {object}  types.HealthResponse  "Service is degraded"
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	transportStatus := "disconnected"
	if h.svc.TransportConnected() {
		transportStatus = "connected"
	}

	status := "healthy"
	httpStatus := http.StatusOK

	if transportStatus != "connected" {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, types.HealthResponse{
		Status:    status,
		Transport: transportStatus,
		ClientID:  h.svc.Identity().ClientID,
		Timestamp: time.Now(),
	})
}
