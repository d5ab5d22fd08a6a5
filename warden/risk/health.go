package risk

import (
	"fmt"

	"github.com/nodepulse/nodepulse/warden/domain"
)

// HealthReport grades a node's overall condition from weighted
// per-metric component scores. Separate from the risk model: this is
// the operator-facing summary, not the remediation trigger.
type HealthReport struct {
	NodeID          string             `json:"nodeId"`
	OverallScore    float64            `json:"overallScore"`
	Grade           string             `json:"grade"`
	Status          string             `json:"status"`
	ComponentScores map[string]float64 `json:"componentScores"`
	Issues          []string           `json:"issues,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`
}

type healthBand struct {
	critical float64
	warning  float64
	ok       float64
}

var (
	healthWeights = map[string]float64{
		"cpu":         0.25,
		"memory":      0.25,
		"temperature": 0.20,
		"latency":     0.15,
		"disk_io":     0.15,
	}
	healthBands = map[string]healthBand{
		"cpu":         {critical: 90, warning: 75, ok: 50},
		"memory":      {critical: 90, warning: 80, ok: 60},
		"temperature": {critical: 85, warning: 70, ok: 50},
		"latency":     {critical: 50, warning: 30, ok: 10},
		"disk_io":     {critical: 85, warning: 70, ok: 40},
	}
)

func componentScore(component string, value float64) float64 {
	band := healthBands[component]
	switch {
	case value >= band.critical:
		return 0
	case value >= band.warning:
		return 25
	case value >= band.ok:
		return 50
	default:
		return 100
	}
}

// Health computes the weighted health report for one snapshot.
func Health(snap domain.NodeSnapshot) HealthReport {
	report := HealthReport{
		NodeID:          snap.ID,
		ComponentScores: make(map[string]float64, len(healthWeights)),
	}

	values := map[string]float64{
		"cpu":         snap.CPUUsage,
		"memory":      snap.MemoryUsage,
		"temperature": snap.Temperature,
		"latency":     snap.NetworkLatency,
		"disk_io":     snap.DiskIO,
	}
	for component, value := range values {
		report.ComponentScores[component] = componentScore(component, value)
		report.OverallScore += healthWeights[component] * report.ComponentScores[component]
	}

	if snap.CPUUsage > 80 {
		report.Issues = append(report.Issues, fmt.Sprintf("High CPU usage: %.1f%%", snap.CPUUsage))
		report.Recommendations = append(report.Recommendations, "Check running processes and consider scaling")
	}
	if snap.MemoryUsage > 85 {
		report.Issues = append(report.Issues, fmt.Sprintf("High memory usage: %.1f%%", snap.MemoryUsage))
		report.Recommendations = append(report.Recommendations, "Review container limits and optimize applications")
	}
	if snap.Temperature > 75 {
		report.Issues = append(report.Issues, fmt.Sprintf("High temperature: %.1f°C", snap.Temperature))
		report.Recommendations = append(report.Recommendations, "Improve cooling or check for thermal issues")
	}
	if snap.NetworkLatency > 30 {
		report.Issues = append(report.Issues, fmt.Sprintf("High network latency: %.1fms", snap.NetworkLatency))
		report.Recommendations = append(report.Recommendations, "Check network connectivity and bandwidth")
	}
	if snap.DiskIO > 75 {
		report.Issues = append(report.Issues, fmt.Sprintf("High disk I/O: %.1f%%", snap.DiskIO))
		report.Recommendations = append(report.Recommendations, "Monitor disk operations and consider SSD upgrade")
	}

	report.Grade = grade(report.OverallScore)
	report.Status = status(report.OverallScore)
	return report
}

func grade(score float64) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 55:
		return "C"
	case score >= 40:
		return "D"
	default:
		return "F"
	}
}

func status(score float64) string {
	switch {
	case score >= 70:
		return "healthy"
	case score >= 40:
		return "degraded"
	default:
		return "critical"
	}
}
