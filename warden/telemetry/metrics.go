// Package telemetry exposes the per-node gauges and remediation
// counters served on /metrics. One Metrics instance owns a private
// registry so tests never collide on the global one.
package telemetry

import (
	"math"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nodepulse/nodepulse/warden/domain"
)

type Metrics struct {
	registry *prometheus.Registry

	nodeCPU         *prometheus.GaugeVec
	nodeMemory      *prometheus.GaugeVec
	nodeTemperature *prometheus.GaugeVec
	nodeLatency     *prometheus.GaugeVec
	nodeDiskIO      *prometheus.GaugeVec
	nodePods        *prometheus.GaugeVec
	nodeHealth      *prometheus.GaugeVec
	nodeRisk        *prometheus.GaugeVec

	risksDetected    prometheus.Counter
	remediations     *prometheus.CounterVec
	ticks            prometheus.Counter
	monitoringActive prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	nodeGauge := func(name, help string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "warden",
			Name:      name,
			Help:      help,
		}, []string{"node"})
	}

	return &Metrics{
		registry:        registry,
		nodeCPU:         nodeGauge("node_cpu_usage_percent", "Node CPU usage."),
		nodeMemory:      nodeGauge("node_memory_usage_percent", "Node memory usage."),
		nodeTemperature: nodeGauge("node_temperature_celsius", "Node temperature."),
		nodeLatency:     nodeGauge("node_network_latency_ms", "Node network latency."),
		nodeDiskIO:      nodeGauge("node_disk_io_percent", "Node disk I/O utilization."),
		nodePods:        nodeGauge("node_pod_count", "Pods scheduled on the node."),
		nodeHealth:      nodeGauge("node_health_score", "Weighted node health score, 0-100."),
		nodeRisk:        nodeGauge("node_risk_score", "Model degradation risk score, 0-1."),
		risksDetected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "risks_detected_total",
			Help:      "Nodes newly classified as at risk.",
		}),
		remediations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "remediations_total",
			Help:      "Remediation operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "monitor_ticks_total",
			Help:      "Completed monitoring ticks.",
		}),
		monitoringActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "warden",
			Name:      "monitoring_active",
			Help:      "1 while the monitoring loop is running.",
		}),
	}
}

// Handler serves the exposition format for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveNode(snap domain.NodeSnapshot, healthScore float64) {
	set := func(g *prometheus.GaugeVec, v float64) {
		if !math.IsNaN(v) {
			g.WithLabelValues(snap.ID).Set(v)
		}
	}
	set(m.nodeCPU, snap.CPUUsage)
	set(m.nodeMemory, snap.MemoryUsage)
	set(m.nodeTemperature, snap.Temperature)
	set(m.nodeLatency, snap.NetworkLatency)
	set(m.nodeDiskIO, snap.DiskIO)
	m.nodePods.WithLabelValues(snap.ID).Set(float64(snap.PodCount))
	m.nodeHealth.WithLabelValues(snap.ID).Set(healthScore)
}

func (m *Metrics) ObserveRisk(assessment domain.RiskAssessment) {
	m.nodeRisk.WithLabelValues(assessment.NodeID).Set(assessment.RiskScore)
}

func (m *Metrics) RiskDetected() {
	m.risksDetected.Inc()
}

func (m *Metrics) ObserveRemediation(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.remediations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) TickCompleted() {
	m.ticks.Inc()
}

func (m *Metrics) SetMonitoringActive(active bool) {
	if active {
		m.monitoringActive.Set(1)
		return
	}
	m.monitoringActive.Set(0)
}
