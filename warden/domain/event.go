package domain

import "time"

type EventType string

const (
	EventInfo   EventType = "info"
	EventRisk   EventType = "risk"
	EventAction EventType = "action"
)

// Event is one entry of the bounded history. Immutable once created.
type Event struct {
	ID          string            `json:"id"`
	Type        EventType         `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	NodeID      string            `json:"nodeId,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// RiskAssessment is the evaluator's verdict for one node on one tick.
// Factors come from fixed per-metric rules and are deliberately not
// coupled to the model score: an at-risk node may list zero factors.
type RiskAssessment struct {
	NodeID         string   `json:"nodeId"`
	AtRisk         bool     `json:"isAtRisk"`
	RiskScore      float64  `json:"riskScore"`
	Factors        []string `json:"riskFactors"`
	Confidence     float64  `json:"confidence"`
	Recommendation string   `json:"recommendation"`
}
