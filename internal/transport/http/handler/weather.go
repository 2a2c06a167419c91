package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-reservas-api/internal/application/weather"
)

type weatherService interface {
	Assess(ctx context.Context, location string, date time.Time) (*weather.Outlook, error)
}

// WeatherHandler serves the forecast preview for operators.
type WeatherHandler struct {
	svc weatherService
}

func NewWeatherHandler(svc weatherService) *WeatherHandler {
	return &WeatherHandler{svc: svc}
}

// Outlook returns the classified forecast for a location. An optional
// ?date=YYYY-MM-DD picks the day; the default is tomorrow.
func (h *WeatherHandler) Outlook(w http.ResponseWriter, r *http.Request) {
	location := chi.URLParam(r, "location")

	var date time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	outlook, err := h.svc.Assess(r.Context(), location, date)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outlook)
}
