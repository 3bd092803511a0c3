package handler

import (
	"net/http"
	"strconv"

	"github.com/yevgetman/air-quality-api/internal/api/models"
	"github.com/yevgetman/air-quality-api/internal/api/response"
	"github.com/yevgetman/air-quality-api/internal/aqi"
)

// AdviceHandler handles the health advice lookup endpoint.
type AdviceHandler struct{}

// NewAdviceHandler creates a new AdviceHandler.
func NewAdviceHandler() *AdviceHandler {
	return &AdviceHandler{}
}

// GetHealthAdvice handles GET /api/v1/health-advice?aqi&scale=EPA|AQHI.
func (h *AdviceHandler) GetHealthAdvice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	value, err := strconv.Atoi(q.Get("aqi"))
	if err != nil || value < 0 {
		response.BadRequest(w, r, "invalid query parameters", []models.FieldError{
			{Field: "aqi", Message: "must be a non-negative integer", Code: "invalid"},
		})
		return
	}

	scale := aqi.ScaleEPA
	switch q.Get("scale") {
	case "", string(aqi.ScaleEPA):
	case string(aqi.ScaleAQHI):
		scale = aqi.ScaleAQHI
	default:
		response.BadRequest(w, r, "invalid query parameters", []models.FieldError{
			{Field: "scale", Message: "must be EPA or AQHI", Code: "invalid"},
		})
		return
	}

	category, ok := aqi.CategoryFor(value, scale)
	if !ok {
		response.NotFound(w, r, "no category covers this value on the requested scale")
		return
	}

	response.JSON(w, r, http.StatusOK, models.HealthAdviceResponse{
		AQI:      value,
		Scale:    string(scale),
		Category: category.Name,
		Advice:   category.HealthMessage,
	})
}
