// Package simulator is the synthetic metrics backend: a fixed fleet of
// fake worker nodes whose telemetry is re-rolled every tick while taints
// and pod counts persist across ticks. It stands in for a cluster when
// none is reachable and backs the demo deployment mode.
package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/nodepulse/nodepulse/warden/domain"
)

const defaultNodeCount = 5

type Options struct {
	// Nodes is the fleet size, default 5.
	Nodes int
	// Seed makes the generated telemetry reproducible in tests.
	Seed int64
}

type Simulator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	nodes map[string]*nodeState
	order []string
}

type nodeState struct {
	snapshot domain.NodeSnapshot
}

var (
	_ domain.MetricsSource = (*Simulator)(nil)
	_ domain.Remediator    = (*Simulator)(nil)
)

func New(opt Options) *Simulator {
	count := opt.Nodes
	if count <= 0 {
		count = defaultNodeCount
	}
	seed := opt.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	sim := &Simulator{
		rng:   rand.New(rand.NewSource(seed)),
		nodes: make(map[string]*nodeState, count),
	}
	for i := 1; i <= count; i++ {
		id := fmt.Sprintf("node-%02d", i)
		sim.order = append(sim.order, id)
		sim.nodes[id] = &nodeState{
			snapshot: domain.NodeSnapshot{
				ID:       id,
				Name:     fmt.Sprintf("worker-%02d", i),
				Region:   fmt.Sprintf("zone-%d", i%2),
				PodCount: sim.rng.Intn(11),
				Taints:   nil,
				Status:   "healthy",
			},
		}
	}
	return sim
}

// FetchSnapshot rolls fresh telemetry for every node. Taints and pod
// counts carry over from previous ticks and remediation calls.
func (s *Simulator) FetchSnapshot(ctx context.Context) ([]domain.NodeSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.NodeSnapshot, 0, len(s.order))
	for _, id := range s.order {
		state := s.nodes[id]
		state.snapshot.CPUUsage = s.uniform(20, 90)
		state.snapshot.MemoryUsage = s.uniform(25, 85)
		state.snapshot.Temperature = s.uniform(45, 80)
		state.snapshot.NetworkLatency = s.uniform(2, 45)
		state.snapshot.DiskIO = s.uniform(10, 80)
		out = append(out, cloneSnapshot(state.snapshot))
	}
	return out, nil
}

func (s *Simulator) Taint(ctx context.Context, nodeID string, t domain.Taint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.nodes[nodeID]
	if !ok {
		return domain.ErrNodeNotFound
	}
	if state.snapshot.HasTaint(t) {
		return nil
	}
	state.snapshot.Taints = append(state.snapshot.Taints, t)
	return nil
}

func (s *Simulator) Drain(ctx context.Context, nodeID string, gracePeriodSeconds int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.nodes[nodeID]
	if !ok {
		return 0, domain.ErrNodeNotFound
	}
	evicted := state.snapshot.PodCount
	state.snapshot.PodCount = 0
	return evicted, nil
}

func (s *Simulator) RemoveTaint(ctx context.Context, nodeID string, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.nodes[nodeID]
	if !ok {
		return domain.ErrNodeNotFound
	}
	kept := state.snapshot.Taints[:0]
	for _, t := range state.snapshot.Taints {
		if t.Key != key {
			kept = append(kept, t)
		}
	}
	state.snapshot.Taints = kept
	return nil
}

// SetMetrics pins a node's telemetry so tests can drive deterministic
// risk outcomes; subsequent FetchSnapshot calls re-roll them.
func (s *Simulator) SetMetrics(nodeID string, cpu, mem, temp, latency, disk float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.nodes[nodeID]
	if !ok {
		return domain.ErrNodeNotFound
	}
	state.snapshot.CPUUsage = cpu
	state.snapshot.MemoryUsage = mem
	state.snapshot.Temperature = temp
	state.snapshot.NetworkLatency = latency
	state.snapshot.DiskIO = disk
	return nil
}

// SetPodCount adjusts a node's pod counter (demo seeding).
func (s *Simulator) SetPodCount(nodeID string, pods int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.nodes[nodeID]
	if !ok {
		return domain.ErrNodeNotFound
	}
	state.snapshot.PodCount = pods
	return nil
}

// Nodes returns the current fleet without rolling new telemetry.
func (s *Simulator) Nodes() []domain.NodeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.NodeSnapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneSnapshot(s.nodes[id].snapshot))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func cloneSnapshot(snap domain.NodeSnapshot) domain.NodeSnapshot {
	out := snap
	out.Taints = append([]domain.Taint(nil), snap.Taints...)
	return out
}
