// Package service owns the cluster state, the monitoring loop, and the
// remediation wrappers shared by the loop and the manual REST
// overrides. Event logging lives here so automatic and manual
// invocations produce indistinguishable history.
package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/fx"

	"github.com/nodepulse/nodepulse/config"
	"github.com/nodepulse/nodepulse/pkg/logger"
	"github.com/nodepulse/nodepulse/warden/domain"
	"github.com/nodepulse/nodepulse/warden/eventlog"
	"github.com/nodepulse/nodepulse/warden/risk"
	"github.com/nodepulse/nodepulse/warden/simulator"
	"github.com/nodepulse/nodepulse/warden/telemetry"
)

// Backends bundles the metrics/remediation implementations the service
// can run against. Live is nil in synthetic-only deployments; the
// simulator is always present because it doubles as the fallback when
// the live cluster becomes unreachable.
type Backends struct {
	Live           domain.MetricsSource
	LiveRemediator domain.Remediator
	Simulator      *simulator.Simulator
}

type Params struct {
	fx.In

	Cfg       config.WardenConfig
	Backends  Backends
	Evaluator *risk.Evaluator
	Events    *eventlog.Log
	Metrics   *telemetry.Metrics
}

type Service struct {
	cfg       config.WardenConfig
	backends  Backends
	evaluator *risk.Evaluator
	events    *eventlog.Log
	metrics   *telemetry.Metrics
	state     *ClusterState
	history   *History
	audit     *AuditLog

	loop loopState
}

func NewService(params Params) *Service {
	return &Service{
		cfg:       params.Cfg,
		backends:  params.Backends,
		evaluator: params.Evaluator,
		events:    params.Events,
		metrics:   params.Metrics,
		state:     NewClusterState(),
		history:   NewHistory(params.Cfg.Monitor.HistoryCapacity),
		audit:     NewAuditLog(params.Cfg.Monitor.AuditCapacity),
	}
}

func (svc *Service) Events() *eventlog.Log { return svc.events }

func (svc *Service) State() *ClusterState { return svc.state }

// remediator picks the backend matching the currently active metrics
// source, so manual overrides act on the same fleet the loop observes.
func (svc *Service) remediator() domain.Remediator {
	if svc.backends.LiveRemediator == nil || svc.onFallback() {
		return svc.backends.Simulator
	}
	return svc.backends.LiveRemediator
}

// TaintNode applies a taint as a manual override.
func (svc *Service) TaintNode(ctx context.Context, nodeID string, t domain.Taint) error {
	return svc.taintNode(ctx, nodeID, t, actorOperator)
}

// DrainNode evicts a node's workloads as a manual override.
func (svc *Service) DrainNode(ctx context.Context, nodeID string, gracePeriodSeconds int64) (int, error) {
	return svc.drainNode(ctx, nodeID, gracePeriodSeconds, actorOperator)
}

// RemoveTaintNode lifts a taint as a manual override.
func (svc *Service) RemoveTaintNode(ctx context.Context, nodeID string, key string) error {
	return svc.removeTaintNode(ctx, nodeID, key, actorOperator)
}

func (svc *Service) taintNode(ctx context.Context, nodeID string, t domain.Taint, actor string) error {
	err := svc.remediator().Taint(ctx, nodeID, t)
	if errors.Is(err, domain.ErrNodeNotFound) {
		return err
	}
	svc.metrics.ObserveRemediation("taint", err)
	svc.recordAudit("taint", nodeID, actor, err, map[string]string{"taint": t.String()})

	if err != nil {
		svc.events.Append(domain.Event{
			Type:        domain.EventAction,
			Title:       "Taint failed",
			Description: fmt.Sprintf("Failed to apply taint %s to node %s", t, nodeID),
			NodeID:      nodeID,
			Details:     map[string]string{"taint": t.String(), "error": err.Error()},
		})
		return err
	}

	svc.state.ApplyTaint(nodeID, t)
	svc.events.Append(domain.Event{
		Type:        domain.EventAction,
		Title:       "Node tainted",
		Description: fmt.Sprintf("Applied taint %s to node %s", t, nodeID),
		NodeID:      nodeID,
		Details:     map[string]string{"taint": t.String()},
	})
	return nil
}

func (svc *Service) drainNode(ctx context.Context, nodeID string, gracePeriodSeconds int64, actor string) (int, error) {
	evicted, err := svc.remediator().Drain(ctx, nodeID, gracePeriodSeconds)
	if errors.Is(err, domain.ErrNodeNotFound) {
		return 0, err
	}
	svc.metrics.ObserveRemediation("drain", err)
	svc.recordAudit("drain", nodeID, actor, err, map[string]string{
		"gracePeriodSeconds": strconv.FormatInt(gracePeriodSeconds, 10),
		"evicted":            strconv.Itoa(evicted),
	})

	if err != nil {
		svc.events.Append(domain.Event{
			Type:        domain.EventAction,
			Title:       "Drain failed",
			Description: fmt.Sprintf("Failed to drain node %s", nodeID),
			NodeID:      nodeID,
			Details:     map[string]string{"error": err.Error()},
		})
		return evicted, err
	}

	svc.state.ZeroPods(nodeID)
	svc.loop.mu.Lock()
	svc.loop.drainsExecuted++
	svc.loop.mu.Unlock()

	svc.events.Append(domain.Event{
		Type:        domain.EventAction,
		Title:       "Node drained",
		Description: fmt.Sprintf("Evicted %d pods from node %s", evicted, nodeID),
		NodeID:      nodeID,
		Details:     map[string]string{"evicted": strconv.Itoa(evicted)},
	})
	return evicted, nil
}

func (svc *Service) removeTaintNode(ctx context.Context, nodeID string, key string, actor string) error {
	err := svc.remediator().RemoveTaint(ctx, nodeID, key)
	if errors.Is(err, domain.ErrNodeNotFound) {
		return err
	}
	svc.metrics.ObserveRemediation("remove-taint", err)
	svc.recordAudit("remove-taint", nodeID, actor, err, map[string]string{"key": key})

	if err != nil {
		svc.events.Append(domain.Event{
			Type:        domain.EventAction,
			Title:       "Taint removal failed",
			Description: fmt.Sprintf("Failed to remove taint %q from node %s", key, nodeID),
			NodeID:      nodeID,
			Details:     map[string]string{"key": key, "error": err.Error()},
		})
		return err
	}

	svc.state.DropTaint(nodeID, key)
	svc.events.Append(domain.Event{
		Type:        domain.EventAction,
		Title:       "Taint removed",
		Description: fmt.Sprintf("Removed taint %q from node %s", key, nodeID),
		NodeID:      nodeID,
		Details:     map[string]string{"key": key},
	})
	return nil
}

func (svc *Service) recordAudit(action, nodeID, actor string, err error, details map[string]string) {
	status := AuditStatusSuccess
	if err != nil {
		status = AuditStatusFailure
		if details == nil {
			details = make(map[string]string, 1)
		}
		details["error"] = err.Error()
	}
	svc.audit.Record(AuditEntry{
		Action:   action,
		Resource: "node/" + nodeID,
		Actor:    actor,
		Status:   status,
		Details:  details,
	})
}

// ListNodes returns the most recent snapshot per node.
func (svc *Service) ListNodes() []domain.NodeSnapshot {
	return svc.state.List()
}

func (svc *Service) GetNode(nodeID string) (domain.NodeSnapshot, error) {
	snap, ok := svc.state.Get(nodeID)
	if !ok {
		return domain.NodeSnapshot{}, domain.ErrNodeNotFound
	}
	return snap, nil
}

// Predictions evaluates the current snapshots. Nodes with malformed
// metrics are skipped, matching the loop's behavior.
func (svc *Service) Predictions(ctx context.Context) []domain.RiskAssessment {
	snaps := svc.state.List()
	out := make([]domain.RiskAssessment, 0, len(snaps))
	for _, snap := range snaps {
		assessment, err := svc.evaluator.Evaluate(snap)
		if err != nil {
			logger.Logger(ctx).Warn().Err(err).Msgf("skipping prediction for node %s", snap.ID)
			continue
		}
		out = append(out, assessment)
	}
	return out
}

func (svc *Service) NodeHealth(nodeID string) (risk.HealthReport, error) {
	snap, ok := svc.state.Get(nodeID)
	if !ok {
		return risk.HealthReport{}, domain.ErrNodeNotFound
	}
	return risk.Health(snap), nil
}

func (svc *Service) NodeHistory(nodeID string, limit int) ([]TickRecord, error) {
	if _, ok := svc.state.Get(nodeID); !ok {
		return nil, domain.ErrNodeNotFound
	}
	return svc.history.ForNode(nodeID, limit), nil
}

func (svc *Service) Analytics() RiskStats {
	return svc.history.Stats(svc.evaluator.Threshold())
}

func (svc *Service) AuditEntries(action string, limit int) []AuditEntry {
	return svc.audit.List(action, limit)
}

// ModelInsights describes the classifier for the dashboard.
type ModelInsights struct {
	ModelType         string             `json:"modelType"`
	Threshold         float64            `json:"threshold"`
	FeatureImportance map[string]float64 `json:"featureImportance"`
	Accuracy          map[string]float64 `json:"accuracy"`
}

func (svc *Service) ModelInsights() ModelInsights {
	return ModelInsights{
		ModelType:         svc.evaluator.ModelType(),
		Threshold:         svc.evaluator.Threshold(),
		FeatureImportance: svc.evaluator.FeatureImportance(),
		Accuracy:          svc.evaluator.ModelAccuracy(),
	}
}

// Stats is the dashboard summary.
type Stats struct {
	NodesMonitored   int    `json:"nodesMonitored"`
	RisksDetected    int    `json:"risksDetected"`
	DrainsExecuted   int    `json:"drainsExecuted"`
	EventsTotal      int    `json:"eventsTotal"`
	MonitoringActive bool   `json:"monitoringActive"`
	Source           string `json:"source"`
}

func (svc *Service) Stats() Stats {
	svc.loop.mu.Lock()
	risks := svc.loop.risksDetected
	drains := svc.loop.drainsExecuted
	svc.loop.mu.Unlock()

	source := svc.cfg.K8S.Source
	if svc.onFallback() {
		source = config.SourceSynthetic + " (fallback)"
	}
	return Stats{
		NodesMonitored:   svc.state.Len(),
		RisksDetected:    risks,
		DrainsExecuted:   drains,
		EventsTotal:      svc.events.Stats().Total,
		MonitoringActive: svc.MonitoringActive(),
		Source:           source,
	}
}

// interval returns the monitor tick period.
func (svc *Service) interval() time.Duration {
	return time.Duration(svc.cfg.Monitor.IntervalSeconds) * time.Second
}
