package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNodeNotFound is returned for remediation calls against an
	// unknown node ID. Surfaced to the caller, never logged as an event.
	ErrNodeNotFound = errors.New("node not found")

	// ErrClusterUnavailable means the live metrics backend could not be
	// reached; the loop falls back to the synthetic source.
	ErrClusterUnavailable = errors.New("cluster unavailable")

	ErrNoKubeConfig = errors.New("no kubeconfig path configured")
	ErrNoClient     = errors.New("kubernetes client not initialized")
)

// MalformedMetricsError reports a snapshot with missing metric fields.
// The evaluator skips the node; the loop records an info event.
type MalformedMetricsError struct {
	NodeID  string
	Missing []string
}

func (e *MalformedMetricsError) Error() string {
	return fmt.Sprintf("malformed metrics for node %s: missing %s", e.NodeID, strings.Join(e.Missing, ", "))
}

func IsMalformedMetrics(err error) bool {
	var target *MalformedMetricsError
	return errors.As(err, &target)
}

// RemediationError wraps a failed taint/drain/remove-taint call. The
// node's state machine keeps its phase and the loop retries next tick.
type RemediationError struct {
	Op     string
	NodeID string
	Err    error
}

func (e *RemediationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.NodeID, e.Err)
}

func (e *RemediationError) Unwrap() error { return e.Err }
