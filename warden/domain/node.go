package domain

import (
	"math"
	"strings"
)

// MissingMetric marks a metric the source could not collect. The risk
// evaluator rejects snapshots carrying it.
var MissingMetric = math.NaN()

// NodeSnapshot is one node's telemetry for a single monitoring tick.
// It is produced by a MetricsSource; taints and pod count are mutated
// only through the Remediator.
type NodeSnapshot struct {
	ID             string  `json:"nodeId"`
	Name           string  `json:"nodeName"`
	Region         string  `json:"region,omitempty"`
	CPUUsage       float64 `json:"cpuUsage"`
	MemoryUsage    float64 `json:"memoryUsage"`
	Temperature    float64 `json:"temperature"`
	NetworkLatency float64 `json:"networkLatency"`
	DiskIO         float64 `json:"diskIo"`
	PodCount       int     `json:"podCount"`
	Taints         []Taint `json:"taints"`
	Status         string  `json:"status"`
}

// MissingFields lists the metric fields the source failed to populate.
func (s NodeSnapshot) MissingFields() []string {
	var missing []string
	for _, m := range []struct {
		name  string
		value float64
	}{
		{"cpu_usage", s.CPUUsage},
		{"memory_usage", s.MemoryUsage},
		{"temperature", s.Temperature},
		{"network_latency", s.NetworkLatency},
		{"disk_io", s.DiskIO},
	} {
		if math.IsNaN(m.value) {
			missing = append(missing, m.name)
		}
	}
	return missing
}

func (s NodeSnapshot) HasTaint(t Taint) bool {
	for _, existing := range s.Taints {
		if existing == t {
			return true
		}
	}
	return false
}

func (s NodeSnapshot) HasTaintKey(key string) bool {
	for _, existing := range s.Taints {
		if existing.Key == key {
			return true
		}
	}
	return false
}

type Taint struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Effect string `json:"effect"`
}

const (
	DefaultTaintKey    = "degradation"
	DefaultTaintValue  = "true"
	DefaultTaintEffect = "NoSchedule"
)

// DefaultTaint is the marker the remediation loop applies to at-risk
// nodes: degradation=true:NoSchedule.
func DefaultTaint() Taint {
	return Taint{Key: DefaultTaintKey, Value: DefaultTaintValue, Effect: DefaultTaintEffect}
}

func (t Taint) String() string {
	return t.Key + "=" + t.Value + ":" + t.Effect
}

// ParseTaintSpec parses "key=value:Effect". Value defaults to "true"
// and effect to "NoSchedule" when omitted.
func ParseTaintSpec(spec string) Taint {
	t := Taint{Value: DefaultTaintValue, Effect: DefaultTaintEffect}
	keyPart := spec
	if idx := strings.LastIndex(spec, ":"); idx >= 0 {
		keyPart = spec[:idx]
		if effect := spec[idx+1:]; effect != "" {
			t.Effect = effect
		}
	}
	if key, value, found := strings.Cut(keyPart, "="); found {
		t.Key = key
		if value != "" {
			t.Value = value
		}
	} else {
		t.Key = keyPart
	}
	return t
}
