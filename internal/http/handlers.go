package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/tahmo-weather-service/internal/lifecycle"
	"github.com/kjstillabower/tahmo-weather-service/internal/models"
	"github.com/kjstillabower/tahmo-weather-service/internal/observability"
	"github.com/kjstillabower/tahmo-weather-service/internal/service"
	"github.com/kjstillabower/tahmo-weather-service/internal/validation"
)

// StationService is implemented by *service.StationService.
type StationService interface {
	Prepare(ctx context.Context, code string) (models.StationData, error)
	ListStations(ctx context.Context) ([]models.Station, error)
}

// HealthConfig holds the checks reported by the health handler.
type HealthConfig struct {
	// StoreBackend names the configured station store (csv, sqlite, memcached).
	StoreBackend string
	// StorePing, when set, is called to check the store is readable.
	StorePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	service          StationService
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(svc StationService, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:      svc,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// envelope is the /api/data response shape. Exactly one of Data or Message is set.
type envelope struct {
	Status  string              `json:"status"`
	Message string              `json:"message,omitempty"`
	Data    *models.StationData `json:"data,omitempty"`
}

// GetData handles GET /api/data?station=<code>|<name>. Every outcome is HTTP 200;
// failures are reported in the envelope.
func (h *Handler) GetData(w http.ResponseWriter, r *http.Request) {
	station := r.URL.Query().Get("station")
	logger := observability.LoggerFromContext(r.Context())

	code, _, err := validation.ParseStationQuery(station)
	if err != nil {
		observability.StationDataRequestsTotal.WithLabelValues("malformed").Inc()
		logger.Debug("malformed station query", zap.String("station", station), zap.Error(err))
		writeEnvelopeError(w, station+" is in wrong format: code | station_name")
		return
	}

	data, err := h.service.Prepare(r.Context(), code)
	if err != nil {
		result := "error"
		if errors.Is(err, service.ErrNotFound) {
			result = "not_found"
		}
		observability.StationDataRequestsTotal.WithLabelValues(result).Inc()
		logger.Debug("station data unavailable", zap.String("station", station), zap.Error(err))
		writeEnvelopeError(w, "No data available for the station: "+station)
		return
	}

	observability.StationDataRequestsTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, envelope{Status: "success", Data: &data})
}

// GetStations handles GET /api/get-stations. Each entry is [code, name, latitude, longitude].
func (h *Handler) GetStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.service.ListStations(r.Context())
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error("list stations", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, envelope{Status: "error", Message: "Station list not available"})
		return
	}
	rows := make([][]any, 0, len(stations))
	for _, s := range stations {
		rows = append(rows, []any{s.Code, s.Name, s.Latitude, s.Longitude})
	}
	writeJSON(w, http.StatusOK, rows)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{
		"stationRefresh": "pending",
	}
	if lifecycle.StationsLoaded() {
		checks["stationRefresh"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.StorePing != nil {
		if result.reason == "store_unreadable" {
			checks["store"] = "unhealthy"
		} else {
			checks["store"] = "healthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "tahmo-weather-service",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.healthConfig != nil && h.healthConfig.StoreBackend != "" {
		resp["storeBackend"] = h.healthConfig.StoreBackend
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates, in order: shutting-down, then store readability.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig != nil && h.healthConfig.StorePing != nil {
		if err := h.healthConfig.StorePing(); err != nil {
			h.logger.Warn("store health check failed", zap.Error(err))
			return healthResult{"degraded", http.StatusServiceUnavailable, "store_unreadable"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeEnvelopeError writes {status:"error", message} with HTTP 200.
func writeEnvelopeError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, envelope{Status: "error", Message: message})
}
