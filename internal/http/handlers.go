package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/floodwatch/flood-monitor-service/internal/client"
	"github.com/floodwatch/flood-monitor-service/internal/models"
	"github.com/floodwatch/flood-monitor-service/internal/readings"
	"github.com/floodwatch/flood-monitor-service/internal/session"
	"github.com/floodwatch/flood-monitor-service/internal/validation"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	session           *session.Session
	client            client.FloodClient
	logger            *zap.Logger
	staleCatalogAfter time.Duration
}

// NewHandler returns a new Handler.
func NewHandler(sess *session.Session, floodClient client.FloodClient, logger *zap.Logger, staleCatalogAfter time.Duration) *Handler {
	return &Handler{
		session:           sess,
		client:            floodClient,
		logger:            logger,
		staleCatalogAfter: staleCatalogAfter,
	}
}

// stationsResponse wraps the catalog payload with its counts so the UI can
// show "Showing N stations" without recounting.
type stationsResponse struct {
	Count    int              `json:"count"`
	Stations []models.Station `json:"stations"`
}

// GetStations handles GET /stations?name=&river=&status=.
func (h *Handler) GetStations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	statuses, err := validation.ParseStatuses(q.Get("status"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_STATUS", "status must be a comma-separated list of active, suspended, closed, unknown")
		return
	}
	criteria := models.FilterCriteria{
		Name:     strings.TrimSpace(q.Get("name")),
		River:    strings.TrimSpace(q.Get("river")),
		Statuses: statuses,
	}

	stations, err := h.session.FilterStations(r.Context(), criteria)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	// coords=true narrows to mappable stations only
	if strings.EqualFold(q.Get("coords"), "true") {
		mappable := make([]models.Station, 0, len(stations))
		for _, st := range stations {
			if st.HasCoordinates() {
				mappable = append(mappable, st)
			}
		}
		stations = mappable
	}
	writeJSON(w, http.StatusOK, stationsResponse{Count: len(stations), Stations: stations})
}

// PostRefresh handles POST /stations/refresh, forcing a catalog rebuild.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	stations, err := h.session.Refresh(r.Context())
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stationsResponse{Count: len(stations), Stations: stations})
}

// GetReadings handles GET /stations/{id}/readings?since=&until=.
// With ?format=csv (or Accept: text/csv) the rows are served as a CSV
// download instead of JSON.
func (h *Handler) GetReadings(w http.ResponseWriter, r *http.Request) {
	stationID, err := validation.ValidateStationID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_STATION_ID", err.Error())
		return
	}

	q := r.URL.Query()
	window, err := validation.ParseWindow(q.Get("since"), q.Get("until"), time.Now())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_WINDOW", err.Error())
		return
	}

	rows, err := h.session.Readings(r.Context(), stationID, window)
	if err != nil {
		if errors.Is(err, client.ErrStationNotFound) {
			writeError(w, r, http.StatusNotFound, "STATION_NOT_FOUND", "no such station in the current catalog")
			return
		}
		writeUpstreamError(w, r, err)
		return
	}

	if wantsCSV(r) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+stationID+`_readings.csv"`)
		if err := readings.WriteCSV(w, rows); err != nil && h.logger != nil {
			h.logger.Warn("csv export failed", zap.String("station", stationID), zap.Error(err))
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stationId": stationID,
		"count":     len(rows),
		"readings":  rows,
	})
}

// wantsCSV checks the format query parameter first, then content negotiation.
func wantsCSV(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/csv")
}

// GetHealth handles GET /health. Upstream unreachability degrades the
// response but never crashes the service; the catalog check reports stale
// when the session cache has outlived its refresh horizon.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.client.Ping(r.Context()); err != nil {
		checks["floodApi"] = "unhealthy"
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["floodApi"] = "healthy"
	}

	if age, ok := h.session.CatalogAge(); !ok {
		checks["catalog"] = "empty"
	} else if h.staleCatalogAfter > 0 && age > h.staleCatalogAfter {
		checks["catalog"] = "stale"
	} else {
		checks["catalog"] = "fresh"
	}

	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"service":   "flood-monitor-service",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard envelope with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeUpstreamError maps transport failures to the user-visible
// "data unavailable" state: 503 with a stable code, never a crash.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	code := "DATA_UNAVAILABLE"
	if errors.Is(err, client.ErrTimeout) {
		code = "UPSTREAM_TIMEOUT"
	}
	writeError(w, r, http.StatusServiceUnavailable, code, "Unable to fetch flood monitoring data")
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("upstream error", zap.Error(err))
	}
}
