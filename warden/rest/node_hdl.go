package rest

import (
	"math"
	"net/http"
	"strconv"

	"github.com/nodepulse/nodepulse/warden/domain"
	"github.com/nodepulse/nodepulse/warden/service"
)

type ListNodesResponse struct {
	Nodes []domain.NodeSnapshot `json:"nodes"`
	Count int                   `json:"count"`
}

// ListNodes godoc
// @Summary List node snapshots
// @Description Returns the most recent telemetry snapshot for every node.
// @Tags Nodes
// @Produce json
// @Success 200 {object} SuccessResponse[ListNodesResponse]
// @Router /api/v1/nodes [get]
func (h *Handler) ListNodes(w http.ResponseWriter, r *http.Request) {
	snaps := h.Svc.ListNodes()
	for i := range snaps {
		snaps[i] = sanitizeSnapshot(snaps[i])
	}
	resp := ListNodesResponse{Nodes: snaps, Count: len(snaps)}
	h.JSONResponse(r.Context(), w, http.StatusOK, NewSuccessResponse(&resp))
}

// GetNode godoc
// @Summary Get one node snapshot
// @Description Returns one node's most recent telemetry snapshot.
// @Tags Nodes
// @Produce json
// @Param id query string true "Node ID"
// @Success 200 {object} SuccessResponse[domain.NodeSnapshot]
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/node [get]
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	nodeID := r.URL.Query().Get("id")
	if nodeID == "" {
		h.ErrorResponse(ctx, w, http.StatusBadRequest, "Missing node id", nil)
		return
	}

	snap, err := h.Svc.GetNode(nodeID)
	if err != nil {
		h.HandleError(ctx, w, err)
		return
	}
	snap = sanitizeSnapshot(snap)
	h.JSONResponse(ctx, w, http.StatusOK, NewSuccessResponse(&snap))
}

// NodeHealth godoc
// @Summary Node health report
// @Description Returns the weighted health grade for one node.
// @Tags Nodes
// @Produce json
// @Param id query string true "Node ID"
// @Success 200 {object} SuccessResponse[risk.HealthReport]
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/node/health [get]
func (h *Handler) NodeHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	nodeID := r.URL.Query().Get("id")
	if nodeID == "" {
		h.ErrorResponse(ctx, w, http.StatusBadRequest, "Missing node id", nil)
		return
	}

	report, err := h.Svc.NodeHealth(nodeID)
	if err != nil {
		h.HandleError(ctx, w, err)
		return
	}
	h.JSONResponse(ctx, w, http.StatusOK, NewSuccessResponse(&report))
}

type NodeHistoryResponse struct {
	NodeID  string               `json:"nodeId"`
	Records []service.TickRecord `json:"records"`
}

// NodeHistory godoc
// @Summary Node risk trend
// @Description Returns a node's recent per-tick metrics and risk scores, newest first.
// @Tags Nodes
// @Produce json
// @Param id query string true "Node ID"
// @Param limit query int false "Maximum records, default 50"
// @Success 200 {object} SuccessResponse[NodeHistoryResponse]
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/node/history [get]
func (h *Handler) NodeHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	nodeID := r.URL.Query().Get("id")
	if nodeID == "" {
		h.ErrorResponse(ctx, w, http.StatusBadRequest, "Missing node id", nil)
		return
	}
	limit := queryInt(r, "limit", 50)

	records, err := h.Svc.NodeHistory(nodeID, limit)
	if err != nil {
		h.HandleError(ctx, w, err)
		return
	}
	resp := NodeHistoryResponse{NodeID: nodeID, Records: records}
	h.JSONResponse(ctx, w, http.StatusOK, NewSuccessResponse(&resp))
}

type ListPredictionsResponse struct {
	Predictions []domain.RiskAssessment `json:"predictions"`
	Threshold   float64                 `json:"threshold"`
}

// Predictions godoc
// @Summary Risk predictions
// @Description Returns the classifier's assessment for every node.
// @Tags Insights
// @Produce json
// @Success 200 {object} SuccessResponse[ListPredictionsResponse]
// @Router /api/v1/predictions [get]
func (h *Handler) Predictions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := ListPredictionsResponse{
		Predictions: h.Svc.Predictions(ctx),
		Threshold:   h.Svc.ModelInsights().Threshold,
	}
	h.JSONResponse(ctx, w, http.StatusOK, NewSuccessResponse(&resp))
}

// Stats godoc
// @Summary Dashboard statistics
// @Description Returns the monitoring summary counters.
// @Tags Insights
// @Produce json
// @Success 200 {object} SuccessResponse[service.Stats]
// @Router /api/v1/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.Svc.Stats()
	h.JSONResponse(r.Context(), w, http.StatusOK, NewSuccessResponse(&stats))
}

// Analytics godoc
// @Summary Cluster risk analytics
// @Description Returns aggregate risk statistics over the retained history.
// @Tags Insights
// @Produce json
// @Success 200 {object} SuccessResponse[service.RiskStats]
// @Router /api/v1/analytics [get]
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	stats := h.Svc.Analytics()
	h.JSONResponse(r.Context(), w, http.StatusOK, NewSuccessResponse(&stats))
}

// Model godoc
// @Summary Model insights
// @Description Returns model type, feature importance, holdout accuracy, and threshold.
// @Tags Insights
// @Produce json
// @Success 200 {object} SuccessResponse[service.ModelInsights]
// @Router /api/v1/model [get]
func (h *Handler) Model(w http.ResponseWriter, r *http.Request) {
	insights := h.Svc.ModelInsights()
	h.JSONResponse(r.Context(), w, http.StatusOK, NewSuccessResponse(&insights))
}

type TaintNodeRequest struct {
	NodeID string `json:"nodeId"`
	// Taint is "key=value:Effect"; empty applies degradation=true:NoSchedule.
	Taint string `json:"taint,omitempty"`
}

// TaintNode godoc
// @Summary Taint a node
// @Description Applies a taint as a manual override; logged like the automatic remediation.
// @Tags Remediation
// @Accept json
// @Produce json
// @Param request body TaintNodeRequest true "Taint payload"
// @Success 200 {object} SuccessResponse[EmptyResponse]
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/nodes/taint [post]
func (h *Handler) TaintNode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req TaintNodeRequest
	if err := h.JSONBind(r, &req); err != nil {
		h.ErrorResponse(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.NodeID == "" {
		h.ErrorResponse(ctx, w, http.StatusBadRequest, "Missing node id", nil)
		return
	}

	taint := domain.DefaultTaint()
	if req.Taint != "" {
		taint = domain.ParseTaintSpec(req.Taint)
	}

	if err := h.Svc.TaintNode(ctx, req.NodeID, taint); err != nil {
		h.HandleError(ctx, w, err)
		return
	}
	h.JSONResponse(ctx, w, http.StatusOK, NewSuccessResponse[EmptyResponse](nil))
}

type DrainNodeRequest struct {
	NodeID             string `json:"nodeId"`
	GracePeriodSeconds int64  `json:"gracePeriodSeconds,omitempty"`
}

type DrainNodeResponse struct {
	Evicted int `json:"evicted"`
}

// DrainNode godoc
// @Summary Drain a node
// @Description Evicts the node's workloads, skipping protected system namespaces.
// @Tags Remediation
// @Accept json
// @Produce json
// @Param request body DrainNodeRequest true "Drain payload"
// @Success 200 {object} SuccessResponse[DrainNodeResponse]
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/nodes/drain [post]
func (h *Handler) DrainNode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req DrainNodeRequest
	if err := h.JSONBind(r, &req); err != nil {
		h.ErrorResponse(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.NodeID == "" {
		h.ErrorResponse(ctx, w, http.StatusBadRequest, "Missing node id", nil)
		return
	}
	if req.GracePeriodSeconds <= 0 {
		req.GracePeriodSeconds = 30
	}

	evicted, err := h.Svc.DrainNode(ctx, req.NodeID, req.GracePeriodSeconds)
	if err != nil {
		h.HandleError(ctx, w, err)
		return
	}
	resp := DrainNodeResponse{Evicted: evicted}
	h.JSONResponse(ctx, w, http.StatusOK, NewSuccessResponse(&resp))
}

type RemoveTaintRequest struct {
	NodeID string `json:"nodeId"`
	// Key defaults to "degradation".
	Key string `json:"key,omitempty"`
}

// RemoveTaint godoc
// @Summary Remove a node taint
// @Description Removes all taints with the given key; missing key is a no-op.
// @Tags Remediation
// @Accept json
// @Produce json
// @Param request body RemoveTaintRequest true "Remove taint payload"
// @Success 200 {object} SuccessResponse[EmptyResponse]
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/nodes/remove-taint [post]
func (h *Handler) RemoveTaint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req RemoveTaintRequest
	if err := h.JSONBind(r, &req); err != nil {
		h.ErrorResponse(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.NodeID == "" {
		h.ErrorResponse(ctx, w, http.StatusBadRequest, "Missing node id", nil)
		return
	}
	if req.Key == "" {
		req.Key = domain.DefaultTaintKey
	}

	if err := h.Svc.RemoveTaintNode(ctx, req.NodeID, req.Key); err != nil {
		h.HandleError(ctx, w, err)
		return
	}
	h.JSONResponse(ctx, w, http.StatusOK, NewSuccessResponse[EmptyResponse](nil))
}

type MonitoringResponse struct {
	Active  bool `json:"active"`
	Changed bool `json:"changed"`
}

// StartMonitoring godoc
// @Summary Start the monitoring loop
// @Tags Monitoring
// @Produce json
// @Success 200 {object} SuccessResponse[MonitoringResponse]
// @Router /api/v1/monitoring/start [post]
func (h *Handler) StartMonitoring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	changed := h.Svc.StartMonitoring(ctx)
	resp := MonitoringResponse{Active: true, Changed: changed}
	h.JSONResponse(ctx, w, http.StatusOK, NewSuccessResponse(&resp))
}

// StopMonitoring godoc
// @Summary Stop the monitoring loop
// @Tags Monitoring
// @Produce json
// @Success 200 {object} SuccessResponse[MonitoringResponse]
// @Router /api/v1/monitoring/stop [post]
func (h *Handler) StopMonitoring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	changed := h.Svc.StopMonitoring(ctx)
	resp := MonitoringResponse{Active: false, Changed: changed}
	h.JSONResponse(ctx, w, http.StatusOK, NewSuccessResponse(&resp))
}

type ListAuditResponse struct {
	Entries []service.AuditEntry `json:"entries"`
	Count   int                  `json:"count"`
}

// Audit godoc
// @Summary Remediation audit trail
// @Description Returns recorded remediation attempts, newest first.
// @Tags Insights
// @Produce json
// @Param action query string false "Filter by action (taint, drain, remove-taint)"
// @Param limit query int false "Maximum entries, default 100"
// @Success 200 {object} SuccessResponse[ListAuditResponse]
// @Router /api/v1/audit [get]
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	limit := queryInt(r, "limit", 100)
	entries := h.Svc.AuditEntries(action, limit)
	resp := ListAuditResponse{Entries: entries, Count: len(entries)}
	h.JSONResponse(r.Context(), w, http.StatusOK, NewSuccessResponse(&resp))
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// sanitizeSnapshot replaces NaN metric markers with zero so snapshots
// always marshal to valid JSON.
func sanitizeSnapshot(snap domain.NodeSnapshot) domain.NodeSnapshot {
	clean := func(v float64) float64 {
		if math.IsNaN(v) {
			return 0
		}
		return v
	}
	snap.CPUUsage = clean(snap.CPUUsage)
	snap.MemoryUsage = clean(snap.MemoryUsage)
	snap.Temperature = clean(snap.Temperature)
	snap.NetworkLatency = clean(snap.NetworkLatency)
	snap.DiskIO = clean(snap.DiskIO)
	return snap
}
