package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yevgetman/air-quality-api/internal/adapter"
	"github.com/yevgetman/air-quality-api/internal/api/models"
	"github.com/yevgetman/air-quality-api/internal/api/response"
	"github.com/yevgetman/air-quality-api/internal/fusion"
)

// AdminHandler handles operator actions behind admin authentication.
type AdminHandler struct {
	adapters []adapter.Adapter
	tracker  *adapter.Tracker
	engine   *fusion.Engine
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adapters []adapter.Adapter, tracker *adapter.Tracker, engine *fusion.Engine) *AdminHandler {
	return &AdminHandler{adapters: adapters, tracker: tracker, engine: engine}
}

// ResetSource handles POST /api/v1/admin/sources/{code}/reset. A reset is
// the only path back for an auto-disabled source.
func (h *AdminHandler) ResetSource(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if !h.knownSource(code) {
		response.NotFound(w, r, "unknown source code")
		return
	}

	h.tracker.Reset(code)
	response.JSON(w, r, http.StatusOK, models.AdminActionResponse{
		Status: "ok",
		Detail: "source health reset",
	})
}

// InvalidateCache handles POST /api/v1/admin/cache/invalidate. Drops every
// cached blended result; the next queries rebuild from live upstreams.
func (h *AdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.InvalidateCache(r.Context()); err != nil {
		response.InternalError(w, r, "failed to invalidate cache")
		return
	}

	response.JSON(w, r, http.StatusOK, models.AdminActionResponse{
		Status: "ok",
		Detail: "blended cache invalidated",
	})
}

func (h *AdminHandler) knownSource(code string) bool {
	for _, a := range h.adapters {
		if a.Info().Code == code {
			return true
		}
	}
	return false
}
