package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodepulse/nodepulse/config"
	"github.com/nodepulse/nodepulse/warden/domain"
	"github.com/nodepulse/nodepulse/warden/eventlog"
	"github.com/nodepulse/nodepulse/warden/risk"
	"github.com/nodepulse/nodepulse/warden/simulator"
	"github.com/nodepulse/nodepulse/warden/telemetry"
)

type fakeSource struct {
	snaps []domain.NodeSnapshot
	err   error
	calls int
}

func (f *fakeSource) FetchSnapshot(ctx context.Context) ([]domain.NodeSnapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.NodeSnapshot, len(f.snaps))
	copy(out, f.snaps)
	return out, nil
}

type fakeRemediator struct {
	taintErr  error
	drainErr  error
	removeErr error

	taints  int
	drains  int
	removes int
}

func (f *fakeRemediator) Taint(ctx context.Context, nodeID string, t domain.Taint) error {
	f.taints++
	return f.taintErr
}

func (f *fakeRemediator) Drain(ctx context.Context, nodeID string, gracePeriodSeconds int64) (int, error) {
	f.drains++
	if f.drainErr != nil {
		return 0, f.drainErr
	}
	return 3, nil
}

func (f *fakeRemediator) RemoveTaint(ctx context.Context, nodeID string, key string) error {
	f.removes++
	return f.removeErr
}

func testConfig(source string) config.WardenConfig {
	cfg := config.WardenConfig{}
	cfg.K8S.Source = source
	cfg.Monitor.IntervalSeconds = 1
	cfg.Monitor.EventCapacity = 50
	cfg.Monitor.HistoryCapacity = 100
	cfg.Monitor.AuditCapacity = 100
	cfg.Model.RiskThreshold = 0.65
	return cfg
}

func newTestService(backends Backends, cfg config.WardenConfig) *Service {
	return NewService(Params{
		Cfg:       cfg,
		Backends:  backends,
		Evaluator: risk.NewEvaluator(cfg.Model.RiskThreshold),
		Events:    eventlog.New(cfg.Monitor.EventCapacity),
		Metrics:   telemetry.New(),
	})
}

func healthySnap(id string) domain.NodeSnapshot {
	return domain.NodeSnapshot{
		ID: id, Name: id,
		CPUUsage: 30, MemoryUsage: 40, Temperature: 50,
		NetworkLatency: 5, DiskIO: 20, PodCount: 5,
		Status: "healthy",
	}
}

func atRiskSnap(id string) domain.NodeSnapshot {
	return domain.NodeSnapshot{
		ID: id, Name: id,
		CPUUsage: 90, MemoryUsage: 90, Temperature: 80,
		NetworkLatency: 40, DiskIO: 85, PodCount: 20,
		Status: "healthy",
	}
}

func TestManualTaintLogsOneActionEvent(t *testing.T) {
	sim := simulator.New(simulator.Options{Nodes: 3, Seed: 1})
	svc := newTestService(Backends{Simulator: sim}, testConfig(config.SourceSynthetic))

	require.NoError(t, svc.TaintNode(context.Background(), "node-01", domain.DefaultTaint()))

	actions := svc.Events().List(eventlog.Filter{Type: domain.EventAction})
	require.Len(t, actions, 1)
	require.Equal(t, "Node tainted", actions[0].Title)
	require.Equal(t, "node-01", actions[0].NodeID)
	require.True(t, sim.Nodes()[0].HasTaint(domain.DefaultTaint()))

	audit := svc.AuditEntries("taint", 0)
	require.Len(t, audit, 1)
	require.Equal(t, AuditStatusSuccess, audit[0].Status)
	require.Equal(t, actorOperator, audit[0].Actor)
}

func TestManualOpsUnknownNodeNoEvent(t *testing.T) {
	sim := simulator.New(simulator.Options{Nodes: 1, Seed: 1})
	svc := newTestService(Backends{Simulator: sim}, testConfig(config.SourceSynthetic))
	ctx := context.Background()

	require.ErrorIs(t, svc.TaintNode(ctx, "node-99", domain.DefaultTaint()), domain.ErrNodeNotFound)
	_, err := svc.DrainNode(ctx, "node-99", 30)
	require.ErrorIs(t, err, domain.ErrNodeNotFound)
	require.ErrorIs(t, svc.RemoveTaintNode(ctx, "node-99", "degradation"), domain.ErrNodeNotFound)

	require.Zero(t, svc.Events().Len())
	require.Empty(t, svc.AuditEntries("", 0))
}

func TestManualDrainFailureLogsFailureEvent(t *testing.T) {
	rem := &fakeRemediator{drainErr: &domain.RemediationError{Op: "drain", NodeID: "node-01", Err: context.DeadlineExceeded}}
	backends := Backends{
		Live:           &fakeSource{snaps: []domain.NodeSnapshot{healthySnap("node-01")}},
		LiveRemediator: rem,
		Simulator:      simulator.New(simulator.Options{Seed: 1}),
	}
	svc := newTestService(backends, testConfig(config.SourceLive))

	_, err := svc.DrainNode(context.Background(), "node-01", 30)
	require.Error(t, err)

	actions := svc.Events().List(eventlog.Filter{Type: domain.EventAction})
	require.Len(t, actions, 1)
	require.Equal(t, "Drain failed", actions[0].Title)

	audit := svc.AuditEntries("drain", 0)
	require.Len(t, audit, 1)
	require.Equal(t, AuditStatusFailure, audit[0].Status)
}

func TestGetNodeAndAccessors(t *testing.T) {
	backends := Backends{
		Live: &fakeSource{snaps: []domain.NodeSnapshot{
			healthySnap("node-01"), atRiskSnap("node-02"),
		}},
		LiveRemediator: &fakeRemediator{},
		Simulator:      simulator.New(simulator.Options{Seed: 1}),
	}
	svc := newTestService(backends, testConfig(config.SourceLive))
	svc.tick(context.Background())

	snap, err := svc.GetNode("node-01")
	require.NoError(t, err)
	require.Equal(t, "node-01", snap.ID)
	_, err = svc.GetNode("node-99")
	require.ErrorIs(t, err, domain.ErrNodeNotFound)

	require.Len(t, svc.ListNodes(), 2)

	preds := svc.Predictions(context.Background())
	require.Len(t, preds, 2)

	report, err := svc.NodeHealth("node-01")
	require.NoError(t, err)
	require.Equal(t, "A+", report.Grade)

	history, err := svc.NodeHistory("node-02", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	_, err = svc.NodeHistory("node-99", 10)
	require.ErrorIs(t, err, domain.ErrNodeNotFound)

	analytics := svc.Analytics()
	require.Equal(t, 2, analytics.Samples)
	require.Equal(t, 1, analytics.CriticalCount)

	insights := svc.ModelInsights()
	require.Equal(t, 0.65, insights.Threshold)
	require.NotEmpty(t, insights.FeatureImportance)

	stats := svc.Stats()
	require.Equal(t, 2, stats.NodesMonitored)
	require.Equal(t, 1, stats.RisksDetected)
	require.False(t, stats.MonitoringActive)
}
