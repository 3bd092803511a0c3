package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/yevgetman/air-quality-api/internal/api/models"
	"github.com/yevgetman/air-quality-api/internal/api/response"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string

	// ready reports readiness of the backing dependencies (database ping).
	// Nil means no dependency check is configured.
	ready func(ctx context.Context) error
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, ready func(ctx context.Context) error) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		ready:     ready,
	}
}

// HealthCheck handles GET /api/v1/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /api/v1/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			response.ServiceUnavailable(w, r, "dependency check failed")
			return
		}
	}

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	response.JSON(w, r, http.StatusOK, health)
}
