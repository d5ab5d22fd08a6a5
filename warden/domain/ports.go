package domain

import "context"

// MetricsSource produces the current per-node telemetry snapshot.
// Implementations: the live cluster adapter and the synthetic
// simulator. Selected once at startup via configuration.
type MetricsSource interface {
	FetchSnapshot(ctx context.Context) ([]NodeSnapshot, error)
}

// Remediator executes node remediation operations. Every operation is
// idempotent as documented; event logging happens in the service layer
// so manual and automatic invocations are indistinguishable.
type Remediator interface {
	// Taint adds t to the node. Identical existing taint is a no-op.
	Taint(ctx context.Context, nodeID string, t Taint) error
	// Drain evicts all pods except protected system namespaces and
	// returns the number evicted. Zero pods is a valid outcome.
	Drain(ctx context.Context, nodeID string, gracePeriodSeconds int64) (int, error)
	// RemoveTaint removes all taints with the given key. No matching
	// taint is a no-op.
	RemoveTaint(ctx context.Context, nodeID string, key string) error
}

// NodePhase tracks the per-node remediation state machine.
type NodePhase string

const (
	PhaseHealthy    NodePhase = "healthy"
	PhaseTainting   NodePhase = "tainting"
	PhaseDraining   NodePhase = "draining"
	PhaseRecovering NodePhase = "recovering"
)
