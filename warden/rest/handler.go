package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/nodepulse/nodepulse/pkg/logger"
	"github.com/nodepulse/nodepulse/warden/domain"
	"github.com/nodepulse/nodepulse/warden/errs"
	"github.com/nodepulse/nodepulse/warden/service"
	"github.com/nodepulse/nodepulse/warden/telemetry"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// EmptyResponse is used for endpoints that return no data payload.
type EmptyResponse struct{}

// VersionResponse describes the version endpoint payload.
type VersionResponse struct {
	Message   string `json:"message"`
	Version   string `json:"version"`
	Endpoints string `json:"endpoints"`
}

// HealthResponse describes the health check payload.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}

func NewSuccessResponse[T any](data *T) SuccessResponse[T] {
	return SuccessResponse[T]{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// SuccessResponse represents the success response structure
type SuccessResponse[T any] struct {
	Success   bool   `json:"success"`
	Data      *T     `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

type Params struct {
	fx.In

	Svc     *service.Service
	Metrics *telemetry.Metrics
}

func NewHandler(params Params) (*Handler, error) {
	return &Handler{
		Svc:     params.Svc,
		Metrics: params.Metrics,
	}, nil
}

type Handler struct {
	Svc     *service.Service
	Metrics *telemetry.Metrics
}

func (h *Handler) JSONResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		logger.Logger(ctx).Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Failed to encode JSON response", http.StatusInternalServerError)
	}
}

func (h *Handler) JSONBind(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	err := decoder.Decode(dst)
	if err != nil {
		return err
	}
	return nil
}

func (h *Handler) HandleError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNodeNotFound):
		h.ErrorResponse(ctx, w, http.StatusNotFound, "Node not found", err)
	case domain.IsMalformedMetrics(err):
		h.ErrorResponse(ctx, w, http.StatusBadRequest, "Malformed node metrics", err)
	default:
		httpErr, ok := errs.IsHTTPStatusError(err)
		if ok {
			h.ErrorResponse(ctx, w, httpErr.StatusCode, httpErr.Message, httpErr.OriginalErr)
			return
		}
		h.ErrorResponse(ctx, w, http.StatusInternalServerError, "Internal Server Error", err)
	}
}

func (h *Handler) ErrorResponse(ctx context.Context, w http.ResponseWriter, status int, errMsg string, err error) {
	if err != nil {
		if status >= 500 {
			logger.Logger(ctx).Error().Err(err).Msg(errMsg)
		} else {
			logger.Logger(ctx).Warn().Err(err).Msg(errMsg)
		}
	}
	resp := ErrorResponse{
		Success: false,
		Error:   errMsg,
	}
	h.JSONResponse(ctx, w, status, resp)
}

// Version godoc
// @Summary Get service version
// @Description Returns service version and exposed endpoints.
// @Tags System
// @Produce json
// @Success 200 {object} VersionResponse
// @Router /version [get]
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	response := VersionResponse{
		Message:   "NodePulse Warden API Server",
		Version:   "1.0.0",
		Endpoints: "/api/v1/nodes (GET), /api/v1/node (GET), /api/v1/predictions (GET), /api/v1/events (GET), /api/v1/events/stream (GET), /api/v1/nodes/taint (POST), /api/v1/nodes/drain (POST), /api/v1/nodes/remove-taint (POST), /api/v1/monitoring/start (POST), /api/v1/monitoring/stop (POST), /health (GET), /metrics (GET)",
	}
	h.JSONResponse(r.Context(), w, http.StatusOK, response)
}

// HealthCheck godoc
// @Summary Health check
// @Description Basic health check for readiness probes.
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   "NodePulse Warden API Server",
	}
	h.JSONResponse(r.Context(), w, http.StatusOK, response)
}
