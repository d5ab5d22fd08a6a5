package service

import (
	"sync"
	"time"
)

const DefaultAuditCapacity = 1000

// AuditEntry records one remediation attempt for the compliance trail.
// Unlike the event log it also keeps failures' per-field detail and is
// queryable by action.
type AuditEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	Resource  string            `json:"resource"`
	Actor     string            `json:"actor"`
	Status    string            `json:"status"`
	Details   map[string]string `json:"details,omitempty"`
}

const (
	AuditStatusSuccess = "success"
	AuditStatusFailure = "failure"

	actorMonitor  = "monitor-loop"
	actorOperator = "api"
)

type AuditLog struct {
	mu       sync.RWMutex
	capacity int
	// oldest first
	entries []AuditEntry
}

func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &AuditLog{capacity: capacity}
}

func (l *AuditLog) Record(entry AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
}

// List returns entries most recent first, optionally filtered by action.
func (l *AuditLog) List(action string, limit int) []AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []AuditEntry
	for i := len(l.entries) - 1; i >= 0; i-- {
		if action != "" && l.entries[i].Action != action {
			continue
		}
		out = append(out, l.entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
