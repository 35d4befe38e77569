package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/utils"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
	Channels  int               `json:"channels,omitempty"`
}

// ChannelCounter reports how many channels are registered
type ChannelCounter interface {
	Count() int
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	channels ChannelCounter
	version  string
	logger   *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(channels ChannelCounter, version string, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		channels: channels,
		version:  version,
		logger:   logger,
	}
}

// HandleHealth handles GET / and GET /healthz.
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz.
// The gateway is ready once at least one channel is registered.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	count := h.channels.Count()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]string{"channels": "registered"}
	if count == 0 {
		h.logger.Warn("readiness check failed: no channels registered")
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
		checks["channels"] = "none_registered"
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Checks:    checks,
		Channels:  count,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
