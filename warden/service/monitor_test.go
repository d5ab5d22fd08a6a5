package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nodepulse/nodepulse/config"
	"github.com/nodepulse/nodepulse/warden/domain"
	"github.com/nodepulse/nodepulse/warden/eventlog"
	"github.com/nodepulse/nodepulse/warden/simulator"
)

func TestTickRemediatesAtRiskNode(t *testing.T) {
	source := &fakeSource{snaps: []domain.NodeSnapshot{
		healthySnap("node-01"), atRiskSnap("node-02"),
	}}
	rem := &fakeRemediator{}
	svc := newTestService(Backends{
		Live:           source,
		LiveRemediator: rem,
		Simulator:      simulator.New(simulator.Options{Seed: 1}),
	}, testConfig(config.SourceLive))
	ctx := context.Background()

	svc.tick(ctx)

	require.Equal(t, domain.PhaseHealthy, svc.state.Phase("node-01"))
	require.Equal(t, domain.PhaseRecovering, svc.state.Phase("node-02"))
	require.Equal(t, 1, rem.taints)
	require.Equal(t, 1, rem.drains)
	require.Zero(t, rem.removes)

	risks := svc.Events().List(eventlog.Filter{Type: domain.EventRisk})
	require.Len(t, risks, 1)
	require.Equal(t, "node-02", risks[0].NodeID)

	actions := svc.Events().List(eventlog.Filter{Type: domain.EventAction})
	require.Len(t, actions, 2)
	// newest first: drain then taint
	require.Equal(t, "Node drained", actions[0].Title)
	require.Equal(t, "Node tainted", actions[1].Title)

	// still at risk: node stays in recovering, no further remediation
	svc.tick(ctx)
	require.Equal(t, domain.PhaseRecovering, svc.state.Phase("node-02"))
	require.Equal(t, 1, rem.taints)
	require.Equal(t, 1, rem.drains)
	require.Len(t, svc.Events().List(eventlog.Filter{Type: domain.EventRisk}), 1)

	// back below threshold: taint lifted, node healthy again
	source.snaps[1] = healthySnap("node-02")
	svc.tick(ctx)
	require.Equal(t, domain.PhaseHealthy, svc.state.Phase("node-02"))
	require.Equal(t, 1, rem.removes)

	actions = svc.Events().List(eventlog.Filter{Type: domain.EventAction})
	require.Equal(t, "Node recovered", actions[0].Title)
	require.Equal(t, "Taint removed", actions[1].Title)
}

func TestTickRetriesFailedTaintInPhase(t *testing.T) {
	source := &fakeSource{snaps: []domain.NodeSnapshot{atRiskSnap("node-01")}}
	rem := &fakeRemediator{taintErr: &domain.RemediationError{Op: "taint", NodeID: "node-01", Err: fmt.Errorf("conflict")}}
	svc := newTestService(Backends{
		Live:           source,
		LiveRemediator: rem,
		Simulator:      simulator.New(simulator.Options{Seed: 1}),
	}, testConfig(config.SourceLive))
	ctx := context.Background()

	svc.tick(ctx)
	require.Equal(t, domain.PhaseTainting, svc.state.Phase("node-01"))
	require.Equal(t, 1, rem.taints)
	require.Zero(t, rem.drains)

	// risk event fires once; the failure is an action event
	require.Len(t, svc.Events().List(eventlog.Filter{Type: domain.EventRisk}), 1)
	actions := svc.Events().List(eventlog.Filter{Type: domain.EventAction})
	require.Len(t, actions, 1)
	require.Equal(t, "Taint failed", actions[0].Title)

	rem.taintErr = nil
	svc.tick(ctx)
	require.Equal(t, domain.PhaseRecovering, svc.state.Phase("node-01"))
	require.Equal(t, 2, rem.taints)
	require.Equal(t, 1, rem.drains)
	require.Len(t, svc.Events().List(eventlog.Filter{Type: domain.EventRisk}), 1)
}

func TestTickFallsBackOnClusterUnavailable(t *testing.T) {
	source := &fakeSource{err: fmt.Errorf("%w: connection refused", domain.ErrClusterUnavailable)}
	svc := newTestService(Backends{
		Live:           source,
		LiveRemediator: &fakeRemediator{},
		Simulator:      simulator.New(simulator.Options{Nodes: 4, Seed: 7}),
	}, testConfig(config.SourceLive))
	ctx := context.Background()

	svc.tick(ctx)
	require.True(t, svc.onFallback())
	require.Equal(t, 4, svc.state.Len())

	svc.tick(ctx)
	infos := svc.Events().List(eventlog.Filter{Type: domain.EventInfo})
	require.Len(t, infos, 1)
	require.Equal(t, "Cluster unreachable", infos[0].Title)

	source.err = nil
	source.snaps = []domain.NodeSnapshot{healthySnap("worker-01")}
	svc.tick(ctx)
	require.False(t, svc.onFallback())
	require.Equal(t, 1, svc.state.Len())

	svc.tick(ctx)
	infos = svc.Events().List(eventlog.Filter{Type: domain.EventInfo})
	require.Len(t, infos, 2)
	require.Equal(t, "Cluster connection restored", infos[0].Title)
}

func TestTickSkipsMalformedMetricsNode(t *testing.T) {
	broken := healthySnap("node-01")
	broken.Temperature = domain.MissingMetric
	broken.DiskIO = domain.MissingMetric

	source := &fakeSource{snaps: []domain.NodeSnapshot{broken, atRiskSnap("node-02")}}
	rem := &fakeRemediator{}
	svc := newTestService(Backends{
		Live:           source,
		LiveRemediator: rem,
		Simulator:      simulator.New(simulator.Options{Seed: 1}),
	}, testConfig(config.SourceLive))

	svc.tick(context.Background())

	infos := svc.Events().List(eventlog.Filter{Type: domain.EventInfo, NodeID: "node-01"})
	require.Len(t, infos, 1)
	require.Equal(t, "Malformed metrics", infos[0].Title)
	require.Equal(t, domain.PhaseHealthy, svc.state.Phase("node-01"))

	// the malformed node never blocks the rest of the tick
	require.Equal(t, domain.PhaseRecovering, svc.state.Phase("node-02"))
	require.Equal(t, 1, rem.taints)
}

type slowSource struct {
	delay time.Duration
	snaps []domain.NodeSnapshot
}

func (s *slowSource) FetchSnapshot(ctx context.Context) ([]domain.NodeSnapshot, error) {
	time.Sleep(s.delay)
	out := make([]domain.NodeSnapshot, len(s.snaps))
	copy(out, s.snaps)
	return out, nil
}

func TestConcurrentStopMonitoring(t *testing.T) {
	source := &slowSource{
		delay: 200 * time.Millisecond,
		snaps: []domain.NodeSnapshot{healthySnap("node-01")},
	}
	svc := newTestService(Backends{
		Live:           source,
		LiveRemediator: &fakeRemediator{},
		Simulator:      simulator.New(simulator.Options{Seed: 1}),
	}, testConfig(config.SourceLive))
	ctx := context.Background()

	require.True(t, svc.StartMonitoring(ctx))
	// let the first tick get in flight
	time.Sleep(50 * time.Millisecond)

	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		go func() {
			results <- svc.StopMonitoring(ctx)
		}()
	}
	first, second := <-results, <-results

	// exactly one caller performs the stop, the other is a no-op
	require.NotEqual(t, first, second)
	require.False(t, svc.MonitoringActive())
	require.True(t, svc.StartMonitoring(ctx))
	require.True(t, svc.StopMonitoring(ctx))
}

func TestStartStopMonitoring(t *testing.T) {
	svc := newTestService(Backends{
		Simulator: simulator.New(simulator.Options{Nodes: 2, Seed: 3}),
	}, testConfig(config.SourceSynthetic))
	ctx := context.Background()

	require.True(t, svc.StartMonitoring(ctx))
	require.False(t, svc.StartMonitoring(ctx))
	require.True(t, svc.MonitoringActive())

	// first tick fires immediately
	require.Eventually(t, func() bool { return svc.state.Len() == 2 },
		2*time.Second, 10*time.Millisecond)

	require.True(t, svc.StopMonitoring(ctx))
	require.False(t, svc.StopMonitoring(ctx))
	require.False(t, svc.MonitoringActive())

	infos := svc.Events().List(eventlog.Filter{Type: domain.EventInfo})
	var titles []string
	for _, event := range infos {
		titles = append(titles, event.Title)
	}
	require.Contains(t, titles, "Monitoring started")
	require.Contains(t, titles, "Monitoring stopped")
}
