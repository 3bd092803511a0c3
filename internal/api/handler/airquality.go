// Package handler provides HTTP handlers for the air quality API.
package handler

import (
	"net/http"
	"strconv"

	"github.com/yevgetman/air-quality-api/internal/api/models"
	"github.com/yevgetman/air-quality-api/internal/api/response"
	"github.com/yevgetman/air-quality-api/internal/fusion"
	"github.com/yevgetman/air-quality-api/internal/measurement"
	"github.com/yevgetman/air-quality-api/internal/orchestrator"
)

// AirQualityHandler handles the primary air quality query endpoint.
type AirQualityHandler struct {
	orchestrator *orchestrator.Orchestrator
}

// NewAirQualityHandler creates a new AirQualityHandler.
func NewAirQualityHandler(o *orchestrator.Orchestrator) *AirQualityHandler {
	return &AirQualityHandler{orchestrator: o}
}

// GetAirQuality handles GET /api/v1/air-quality?lat&lon&forecast&radius.
func (h *AirQualityHandler) GetAirQuality(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var fieldErrors []models.FieldError

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field: "lat", Message: "must be a number", Code: "invalid",
		})
	} else if lat < -90 || lat > 90 {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field: "lat", Message: "must be between -90 and 90", Code: "out_of_range",
		})
	}

	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field: "lon", Message: "must be a number", Code: "invalid",
		})
	} else if lon < -180 || lon > 180 {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field: "lon", Message: "must be between -180 and 180", Code: "out_of_range",
		})
	}

	includeForecast := false
	if raw := q.Get("forecast"); raw != "" {
		includeForecast, err = strconv.ParseBool(raw)
		if err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field: "forecast", Message: "must be a boolean", Code: "invalid",
			})
		}
	}

	var radius float64
	if raw := q.Get("radius"); raw != "" {
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil || radius < 0 {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field: "radius", Message: "must be a non-negative number", Code: "invalid",
			})
		}
	}

	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return
	}

	result := h.orchestrator.Query(r.Context(), lat, lon, orchestrator.QueryOptions{
		IncludeForecast: includeForecast,
		RadiusKm:        radius,
		UseCache:        true,
	})

	response.JSON(w, r, http.StatusOK, toAirQualityResponse(result))
}

// toAirQualityResponse maps the orchestrator result onto the wire shape.
func toAirQualityResponse(result orchestrator.Result) models.AirQualityResponse {
	current := models.Current{
		AQI:         result.Current.AQI,
		Category:    result.Current.Category,
		Scale:       string(result.Region.AQIScale),
		Pollutants:  toPollutantMap(result.Current.Pollutants),
		Sources:     result.Current.Sources,
		LastUpdated: models.Timestamp(result.Current.LastUpdated),
		CachedUntil: models.Timestamp(result.Current.CachedUntil),
		Error:       result.Current.Error,
	}
	if current.Sources == nil {
		current.Sources = []string{}
	}

	details := make([]models.SourceDetail, 0, len(result.Current.SourceDetails))
	for _, d := range result.Current.SourceDetails {
		details = append(details, toSourceDetail(d))
	}

	resp := models.AirQualityResponse{
		Location: models.LocationInfo{
			Lat:     result.Place.Lat,
			Lon:     result.Place.Lon,
			City:    result.Place.City,
			Region:  result.Place.Region,
			Country: result.Place.Country,
		},
		Current:       current,
		HealthAdvice:  result.HealthAdvice,
		SourceDetails: details,
	}

	for _, hour := range result.Forecast {
		resp.Forecast = append(resp.Forecast, models.ForecastHour{
			Timestamp:  models.Timestamp(hour.Timestamp),
			AQI:        hour.AQI,
			Category:   hour.Category,
			Pollutants: toPollutantMap(hour.Pollutants),
			Sources:    hour.Sources,
		})
	}

	return resp
}

func toSourceDetail(d fusion.SourceDetail) models.SourceDetail {
	detail := models.SourceDetail{
		Source:       d.Source,
		Weight:       d.Weight,
		AQI:          d.AQI,
		DistanceKm:   d.DistanceKm,
		Timestamp:    models.Timestamp(d.Timestamp),
		QualityLevel: string(d.QualityLevel),
	}
	if d.StationName != "" {
		name := d.StationName
		detail.StationName = &name
	}
	return detail
}

// toPollutantMap converts pollutant keys to plain strings for the wire.
// An absent map serializes as {} rather than null.
func toPollutantMap(in map[measurement.Pollutant]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for key, value := range in {
		out[string(key)] = value
	}
	return out
}
