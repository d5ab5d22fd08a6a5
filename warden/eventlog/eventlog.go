// Package eventlog keeps the bounded append-only history of notable
// occurrences (info/risk/action). The monitoring loop is the main
// writer; REST handlers read concurrently and SSE clients subscribe
// for live delivery.
package eventlog

import (
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/nodepulse/nodepulse/warden/domain"
)

const DefaultCapacity = 200

type Log struct {
	mu       sync.RWMutex
	capacity int
	// oldest first; List returns newest first
	events []domain.Event
	total  int
	byType map[domain.EventType]int

	subMu   sync.Mutex
	subs    map[int]chan domain.Event
	nextSub int
}

func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		capacity: capacity,
		byType:   make(map[domain.EventType]int),
		subs:     make(map[int]chan domain.Event),
	}
}

// Append stores the event, assigning ID and timestamp, and fans it out
// to subscribers. Once capacity is exceeded the oldest entry is
// evicted.
func (l *Log) Append(event domain.Event) domain.Event {
	if event.ID == "" {
		event.ID = xid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Type == "" {
		event.Type = domain.EventInfo
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	if len(l.events) > l.capacity {
		l.events = l.events[len(l.events)-l.capacity:]
	}
	l.total++
	l.byType[event.Type]++
	l.mu.Unlock()

	l.publish(event)
	return event
}

type Filter struct {
	Type   domain.EventType
	NodeID string
	Limit  int
}

// List returns matching events, most recent first.
func (l *Log) List(filter Filter) []domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Event, 0, len(l.events))
	for i := len(l.events) - 1; i >= 0; i-- {
		event := l.events[i]
		if filter.Type != "" && event.Type != filter.Type {
			continue
		}
		if filter.NodeID != "" && event.NodeID != filter.NodeID {
			continue
		}
		out = append(out, event)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

type Stats struct {
	Total  int                      `json:"total"`
	ByType map[domain.EventType]int `json:"byType"`
}

// Stats counts every event ever appended, including evicted ones.
func (l *Log) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	byType := make(map[domain.EventType]int, len(l.byType))
	for t, n := range l.byType {
		byType[t] = n
	}
	return Stats{Total: l.total, ByType: byType}
}

// Subscribe registers a live event channel. The returned cancel func
// must be called when the consumer goes away. Slow consumers miss
// events rather than blocking the writer.
func (l *Log) Subscribe(buffer int) (<-chan domain.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan domain.Event, buffer)

	l.subMu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.subMu.Unlock()

	cancel := func() {
		l.subMu.Lock()
		if sub, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(sub)
		}
		l.subMu.Unlock()
	}
	return ch, cancel
}

func (l *Log) publish(event domain.Event) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
