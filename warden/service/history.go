package service

import (
	"math"
	"sync"
	"time"

	"github.com/nodepulse/nodepulse/warden/domain"
)

const DefaultHistoryCapacity = 1000

// TickRecord is one node's metrics and risk score at one tick, kept in
// the bounded analytics ring behind /api/v1/analytics and the per-node
// trend endpoint.
type TickRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	NodeID         string    `json:"nodeId"`
	CPUUsage       float64   `json:"cpuUsage"`
	MemoryUsage    float64   `json:"memoryUsage"`
	Temperature    float64   `json:"temperature"`
	NetworkLatency float64   `json:"networkLatency"`
	DiskIO         float64   `json:"diskIo"`
	RiskScore      float64   `json:"riskScore"`
}

type History struct {
	mu       sync.RWMutex
	capacity int
	// oldest first
	records []TickRecord
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity}
}

func (h *History) Record(snap domain.NodeSnapshot, riskScore float64) {
	rec := TickRecord{
		Timestamp:      time.Now().UTC(),
		NodeID:         snap.ID,
		CPUUsage:       snap.CPUUsage,
		MemoryUsage:    snap.MemoryUsage,
		Temperature:    snap.Temperature,
		NetworkLatency: snap.NetworkLatency,
		DiskIO:         snap.DiskIO,
		RiskScore:      riskScore,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	if len(h.records) > h.capacity {
		h.records = h.records[len(h.records)-h.capacity:]
	}
}

// ForNode returns the node's records, most recent first.
func (h *History) ForNode(nodeID string, limit int) []TickRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []TickRecord
	for i := len(h.records) - 1; i >= 0; i-- {
		if h.records[i].NodeID != nodeID {
			continue
		}
		out = append(out, h.records[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// RiskStats summarizes the risk scores currently held in the ring.
type RiskStats struct {
	Samples       int     `json:"samples"`
	Average       float64 `json:"average"`
	Max           float64 `json:"max"`
	Min           float64 `json:"min"`
	StdDev        float64 `json:"stdDev"`
	CriticalCount int     `json:"criticalCount"`
}

// Stats computes cluster risk statistics over the retained records;
// scores above threshold count as critical.
func (h *History) Stats(threshold float64) RiskStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := RiskStats{Samples: len(h.records)}
	if stats.Samples == 0 {
		return stats
	}

	stats.Min = math.Inf(1)
	sum := 0.0
	for _, rec := range h.records {
		sum += rec.RiskScore
		stats.Max = math.Max(stats.Max, rec.RiskScore)
		stats.Min = math.Min(stats.Min, rec.RiskScore)
		if rec.RiskScore > threshold {
			stats.CriticalCount++
		}
	}
	stats.Average = sum / float64(stats.Samples)

	variance := 0.0
	for _, rec := range h.records {
		diff := rec.RiskScore - stats.Average
		variance += diff * diff
	}
	stats.StdDev = math.Sqrt(variance / float64(stats.Samples))
	return stats
}
