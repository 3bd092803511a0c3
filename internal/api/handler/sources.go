package handler

import (
	"net/http"

	"github.com/yevgetman/air-quality-api/internal/adapter"
	"github.com/yevgetman/air-quality-api/internal/api/models"
	"github.com/yevgetman/air-quality-api/internal/api/response"
)

// SourcesHandler exposes the adapter registry and its tracked health.
type SourcesHandler struct {
	adapters []adapter.Adapter
	tracker  *adapter.Tracker
}

// NewSourcesHandler creates a new SourcesHandler.
func NewSourcesHandler(adapters []adapter.Adapter, tracker *adapter.Tracker) *SourcesHandler {
	return &SourcesHandler{adapters: adapters, tracker: tracker}
}

// ListSources handles GET /api/v1/sources.
func (h *SourcesHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources := make([]models.SourceStatus, 0, len(h.adapters))
	for _, a := range h.adapters {
		info := a.Info()

		status := models.SourceStatus{
			Code:           info.Code,
			Name:           info.Name,
			RequiresAPIKey: info.RequiresAPIKey,
			Available:      a.Available(),
			Status:         models.HealthStatusOK,
			SuccessRate:    1.0,
		}

		if health, ok := h.tracker.Get(info.Code); ok {
			status.Status = healthStatus(health.State())
			status.TotalRequests = health.TotalRequests
			status.SuccessRate = health.SuccessRate()
			status.ConsecutiveFailures = health.ConsecutiveFailures
			status.StatusMessage = health.StatusMessage
			if health.LastSuccessAt != nil {
				ts := models.Timestamp(*health.LastSuccessAt)
				status.LastSuccessAt = &ts
			}
			if health.LastFailureAt != nil {
				ts := models.Timestamp(*health.LastFailureAt)
				status.LastFailureAt = &ts
			}
		}

		sources = append(sources, status)
	}

	response.JSON(w, r, http.StatusOK, models.SourcesResponse{Sources: sources})
}

// healthStatus maps a tracker state onto the wire health enum.
func healthStatus(state adapter.HealthState) models.HealthStatus {
	switch state {
	case adapter.StateDisabled:
		return models.HealthStatusFail
	case adapter.StateDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}
