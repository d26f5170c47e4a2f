package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/leafsii/kvconn/pkg/kv"
	"go.uber.org/zap"
)

// MetricsInterface defines the interface for metrics recording
type MetricsInterface interface {
	RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration)
}

// defaultReadinessTimeout bounds a single /readyz healthcheck
const defaultReadinessTimeout = 5 * time.Second

type Handler struct {
	client           kv.Client
	logger           *zap.SugaredLogger
	readinessTimeout time.Duration
}

func NewHandler(client kv.Client, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		client:           client,
		logger:           logger,
		readinessTimeout: defaultReadinessTimeout,
	}
}

// Health and ops endpoints
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Readyz runs a Redis healthcheck. A probe failure or a shut down client is 503.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.readinessTimeout)
	defer cancel()

	if err := h.client.Healthcheck(ctx); err != nil {
		code := "REDIS_UNHEALTHY"
		if errors.Is(err, kv.ErrClosed) {
			code = "REDIS_CLOSED"
		}
		h.writeError(w, http.StatusServiceUnavailable, code, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, ReadinessDTO{
		Status:     "ready",
		Connection: h.client.Name(),
	})
}

func (h *Handler) GetConnection(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, ConnectionDTO{
		Name:     h.client.Name(),
		Topology: h.client.Topology().String(),
		Status:   h.client.Status().String(),
	})
}

// Utility methods
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.logger.Errorw("API error", "code", code, "message", message, "status", status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := ErrorResponse{
		Code:    code,
		Message: message,
	}
	json.NewEncoder(w).Encode(err)
}
