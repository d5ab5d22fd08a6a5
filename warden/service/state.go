package service

import (
	"sync"

	"github.com/nodepulse/nodepulse/warden/domain"
)

// ClusterState is the mutex-guarded view of the fleet the REST layer
// reads from: last snapshot per node plus the remediation phase of the
// per-node state machine. The monitoring loop is the only writer of
// snapshots; manual remediation handlers apply optimistic taint and
// pod-count updates so reads reflect an operation before the next tick.
type ClusterState struct {
	mu     sync.RWMutex
	snaps  map[string]domain.NodeSnapshot
	order  []string
	phases map[string]domain.NodePhase
}

func NewClusterState() *ClusterState {
	return &ClusterState{
		snaps:  make(map[string]domain.NodeSnapshot),
		phases: make(map[string]domain.NodePhase),
	}
}

// Replace swaps in a fresh set of snapshots. Phases survive across
// ticks; nodes that disappeared from the source are dropped.
func (s *ClusterState) Replace(snaps []domain.NodeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(snaps))
	for _, snap := range snaps {
		if _, known := s.snaps[snap.ID]; !known {
			s.order = append(s.order, snap.ID)
			s.phases[snap.ID] = domain.PhaseHealthy
		}
		s.snaps[snap.ID] = snap
		seen[snap.ID] = struct{}{}
	}

	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := seen[id]; ok {
			kept = append(kept, id)
			continue
		}
		delete(s.snaps, id)
		delete(s.phases, id)
	}
	s.order = kept
}

// List returns the snapshots in insertion order.
func (s *ClusterState) List() []domain.NodeSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.NodeSnapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.snaps[id])
	}
	return out
}

func (s *ClusterState) Get(nodeID string) (domain.NodeSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[nodeID]
	return snap, ok
}

func (s *ClusterState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *ClusterState) Phase(nodeID string) domain.NodePhase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if phase, ok := s.phases[nodeID]; ok {
		return phase
	}
	return domain.PhaseHealthy
}

func (s *ClusterState) SetPhase(nodeID string, phase domain.NodePhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snaps[nodeID]; ok {
		s.phases[nodeID] = phase
	}
}

// ApplyTaint mirrors a successful taint onto the cached snapshot.
func (s *ClusterState) ApplyTaint(nodeID string, t domain.Taint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[nodeID]
	if !ok || snap.HasTaint(t) {
		return
	}
	snap.Taints = append(append([]domain.Taint(nil), snap.Taints...), t)
	s.snaps[nodeID] = snap
}

// DropTaint mirrors a successful remove-taint onto the cached snapshot.
func (s *ClusterState) DropTaint(nodeID string, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[nodeID]
	if !ok {
		return
	}
	kept := make([]domain.Taint, 0, len(snap.Taints))
	for _, t := range snap.Taints {
		if t.Key != key {
			kept = append(kept, t)
		}
	}
	snap.Taints = kept
	s.snaps[nodeID] = snap
}

// ZeroPods mirrors a successful drain onto the cached snapshot.
func (s *ClusterState) ZeroPods(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[nodeID]
	if !ok {
		return
	}
	snap.PodCount = 0
	s.snaps[nodeID] = snap
}
