package eventlog

import (
	"fmt"
	"testing"
	"time"

	"github.com/nodepulse/nodepulse/warden/domain"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsIdentity(t *testing.T) {
	log := New(10)

	event := log.Append(domain.Event{Title: "Monitoring Service Started"})
	require.NotEmpty(t, event.ID)
	require.False(t, event.Timestamp.IsZero())
	require.Equal(t, domain.EventInfo, event.Type)
}

func TestBoundedHistoryEvictsOldestFirst(t *testing.T) {
	log := New(5)

	for i := 0; i < 8; i++ {
		log.Append(domain.Event{
			Type:  domain.EventInfo,
			Title: fmt.Sprintf("event-%d", i),
		})
	}

	require.Equal(t, 5, log.Len())

	events := log.List(Filter{})
	require.Len(t, events, 5)
	// newest first; event-0 through event-2 were evicted
	require.Equal(t, "event-7", events[0].Title)
	require.Equal(t, "event-3", events[4].Title)

	stats := log.Stats()
	require.Equal(t, 8, stats.Total)
	require.Equal(t, 8, stats.ByType[domain.EventInfo])
}

func TestListFilters(t *testing.T) {
	log := New(20)
	log.Append(domain.Event{Type: domain.EventRisk, Title: "Risk Detected", NodeID: "node-01"})
	log.Append(domain.Event{Type: domain.EventAction, Title: "Node Tainted", NodeID: "node-01"})
	log.Append(domain.Event{Type: domain.EventAction, Title: "Node Drained", NodeID: "node-02"})
	log.Append(domain.Event{Type: domain.EventInfo, Title: "Heartbeat"})

	actions := log.List(Filter{Type: domain.EventAction})
	require.Len(t, actions, 2)
	require.Equal(t, "Node Drained", actions[0].Title)

	node1 := log.List(Filter{NodeID: "node-01"})
	require.Len(t, node1, 2)

	limited := log.List(Filter{Limit: 1})
	require.Len(t, limited, 1)
	require.Equal(t, "Heartbeat", limited[0].Title)
}

func TestSubscribeDeliversAndCancels(t *testing.T) {
	log := New(10)
	ch, cancel := log.Subscribe(4)

	appended := log.Append(domain.Event{Type: domain.EventRisk, Title: "Risk Detected"})

	select {
	case got := <-ch:
		require.Equal(t, appended.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("expected event delivery")
	}

	cancel()
	_, open := <-ch
	require.False(t, open)

	// appending after cancel must not panic or block
	log.Append(domain.Event{Title: "after cancel"})
}

func TestSlowSubscriberDoesNotBlockWriter(t *testing.T) {
	log := New(10)
	_, cancel := log.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			log.Append(domain.Event{Title: "burst"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer blocked on slow subscriber")
	}
}
