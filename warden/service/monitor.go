package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nodepulse/nodepulse/pkg/logger"
	"github.com/nodepulse/nodepulse/warden/domain"
	"github.com/nodepulse/nodepulse/warden/risk"
)

// drainGracePeriodSeconds is the eviction grace period the loop uses;
// manual drains pass their own.
const drainGracePeriodSeconds = 30

type loopState struct {
	mu             sync.Mutex
	running        bool
	stop           chan struct{}
	done           chan struct{}
	usingFallback  bool
	risksDetected  int
	drainsExecuted int
}

// StartMonitoring launches the single monitoring goroutine. Returns
// false when the loop is already running.
func (svc *Service) StartMonitoring(ctx context.Context) bool {
	svc.loop.mu.Lock()
	if svc.loop.running {
		svc.loop.mu.Unlock()
		return false
	}
	svc.loop.running = true
	svc.loop.stop = make(chan struct{})
	svc.loop.done = make(chan struct{})
	stop, done := svc.loop.stop, svc.loop.done
	svc.loop.mu.Unlock()

	svc.metrics.SetMonitoringActive(true)
	svc.events.Append(domain.Event{
		Title:       "Monitoring started",
		Description: fmt.Sprintf("Polling node telemetry every %s", svc.interval()),
	})

	go svc.run(stop, done)
	return true
}

// StopMonitoring signals the loop and waits for the in-flight tick to
// finish. Returns false when the loop was not running.
func (svc *Service) StopMonitoring(ctx context.Context) bool {
	svc.loop.mu.Lock()
	if !svc.loop.running {
		svc.loop.mu.Unlock()
		return false
	}
	// mark stopped before unlocking so a concurrent stop cannot close
	// the channel a second time
	svc.loop.running = false
	stop, done := svc.loop.stop, svc.loop.done
	svc.loop.mu.Unlock()

	close(stop)
	<-done

	svc.metrics.SetMonitoringActive(false)
	svc.events.Append(domain.Event{
		Title:       "Monitoring stopped",
		Description: "Node telemetry polling halted",
	})
	return true
}

func (svc *Service) MonitoringActive() bool {
	svc.loop.mu.Lock()
	defer svc.loop.mu.Unlock()
	return svc.loop.running
}

func (svc *Service) onFallback() bool {
	svc.loop.mu.Lock()
	defer svc.loop.mu.Unlock()
	return svc.loop.usingFallback
}

// setFallback flips the fallback flag and reports whether it changed,
// so transition events fire exactly once per direction.
func (svc *Service) setFallback(to bool) bool {
	svc.loop.mu.Lock()
	defer svc.loop.mu.Unlock()
	if svc.loop.usingFallback == to {
		return false
	}
	svc.loop.usingFallback = to
	return true
}

// run is the loop goroutine. The timer is re-armed only after a tick
// completes, so ticks never overlap regardless of how long one takes.
func (svc *Service) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx := context.Background()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}
		svc.tick(ctx)
		timer.Reset(svc.interval())
	}
}

func (svc *Service) tick(ctx context.Context) {
	snaps, err := svc.fetch(ctx)
	if err != nil {
		logger.Logger(ctx).Error().Err(err).Msg("fetch node snapshots")
		return
	}

	svc.state.Replace(snaps)
	for _, snap := range snaps {
		svc.processNode(ctx, snap)
	}
	svc.metrics.TickCompleted()
}

// fetch prefers the live source and falls back to the simulator when
// the cluster is unreachable, logging one info event per transition.
func (svc *Service) fetch(ctx context.Context) ([]domain.NodeSnapshot, error) {
	if svc.backends.Live == nil {
		return svc.backends.Simulator.FetchSnapshot(ctx)
	}

	snaps, err := svc.backends.Live.FetchSnapshot(ctx)
	if err == nil {
		if svc.setFallback(false) {
			svc.events.Append(domain.Event{
				Title:       "Cluster connection restored",
				Description: "Live telemetry resumed, leaving synthetic fallback",
			})
		}
		return snaps, nil
	}
	if !errors.Is(err, domain.ErrClusterUnavailable) {
		return nil, err
	}

	if svc.setFallback(true) {
		logger.Logger(ctx).Warn().Err(err).Msg("cluster unreachable, switching to synthetic telemetry")
		svc.events.Append(domain.Event{
			Title:       "Cluster unreachable",
			Description: "Falling back to synthetic telemetry until the cluster responds",
			Details:     map[string]string{"error": err.Error()},
		})
	}
	return svc.backends.Simulator.FetchSnapshot(ctx)
}

// processNode evaluates one node and advances its remediation state
// machine. Errors here never abort the tick; the node retries in its
// current phase next time around.
func (svc *Service) processNode(ctx context.Context, snap domain.NodeSnapshot) {
	assessment, err := svc.evaluator.Evaluate(snap)
	if err != nil {
		if domain.IsMalformedMetrics(err) {
			svc.events.Append(domain.Event{
				Title:       "Malformed metrics",
				Description: err.Error(),
				NodeID:      snap.ID,
			})
			return
		}
		logger.Logger(ctx).Error().Err(err).Msgf("evaluate node %s", snap.ID)
		return
	}

	svc.metrics.ObserveNode(snap, risk.Health(snap).OverallScore)
	svc.metrics.ObserveRisk(assessment)
	svc.history.Record(snap, assessment.RiskScore)

	switch svc.state.Phase(snap.ID) {
	case domain.PhaseHealthy:
		if !assessment.AtRisk {
			return
		}
		svc.loop.mu.Lock()
		svc.loop.risksDetected++
		svc.loop.mu.Unlock()
		svc.metrics.RiskDetected()

		svc.events.Append(domain.Event{
			Type:        domain.EventRisk,
			Title:       "Degradation risk detected",
			Description: fmt.Sprintf("Node %s risk score %.2f: %s", snap.ID, assessment.RiskScore, factorSummary(assessment.Factors)),
			NodeID:      snap.ID,
			Details: map[string]string{
				"riskScore": strconv.FormatFloat(assessment.RiskScore, 'f', 4, 64),
				"factors":   factorSummary(assessment.Factors),
			},
		})
		svc.state.SetPhase(snap.ID, domain.PhaseTainting)
		svc.advanceRemediation(ctx, snap.ID)

	case domain.PhaseTainting, domain.PhaseDraining:
		svc.advanceRemediation(ctx, snap.ID)

	case domain.PhaseRecovering:
		if assessment.AtRisk {
			return
		}
		if err := svc.removeTaintNode(ctx, snap.ID, domain.DefaultTaintKey, actorMonitor); err != nil {
			return
		}
		svc.events.Append(domain.Event{
			Type:        domain.EventAction,
			Title:       "Node recovered",
			Description: fmt.Sprintf("Node %s back below the risk threshold, schedulable again", snap.ID),
			NodeID:      snap.ID,
		})
		svc.state.SetPhase(snap.ID, domain.PhaseHealthy)
	}
}

// advanceRemediation drives taint-then-drain. A failed step leaves the
// phase untouched so the next tick retries it; drain never runs before
// the taint has succeeded.
func (svc *Service) advanceRemediation(ctx context.Context, nodeID string) {
	if svc.state.Phase(nodeID) == domain.PhaseTainting {
		if err := svc.taintNode(ctx, nodeID, domain.DefaultTaint(), actorMonitor); err != nil {
			return
		}
		svc.state.SetPhase(nodeID, domain.PhaseDraining)
	}
	if svc.state.Phase(nodeID) == domain.PhaseDraining {
		if _, err := svc.drainNode(ctx, nodeID, drainGracePeriodSeconds, actorMonitor); err != nil {
			return
		}
		svc.state.SetPhase(nodeID, domain.PhaseRecovering)
	}
}

func factorSummary(factors []string) string {
	if len(factors) == 0 {
		return "no contributing factors"
	}
	return strings.Join(factors, "; ")
}
