package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nodepulse/nodepulse/pkg/logger"
	"github.com/nodepulse/nodepulse/warden/domain"
	"github.com/nodepulse/nodepulse/warden/eventlog"
)

const (
	// streamReplayCount is how many recent events a new SSE client gets
	// before live delivery starts.
	streamReplayCount   = 20
	streamPingInterval  = 15 * time.Second
	streamSubscribeSize = 32
)

type ListEventsResponse struct {
	Events []domain.Event `json:"events"`
	Count  int            `json:"count"`
	Total  int            `json:"total"`
}

// ListEvents godoc
// @Summary List events
// @Description Returns logged events, newest first.
// @Tags Events
// @Produce json
// @Param type query string false "Filter by type (info, risk, action)"
// @Param node query string false "Filter by node ID"
// @Param limit query int false "Maximum events, default 50"
// @Success 200 {object} SuccessResponse[ListEventsResponse]
// @Router /api/v1/events [get]
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter := eventlog.Filter{
		Type:   domain.EventType(r.URL.Query().Get("type")),
		NodeID: r.URL.Query().Get("node"),
		Limit:  queryInt(r, "limit", 50),
	}
	events := h.Svc.Events().List(filter)
	resp := ListEventsResponse{
		Events: events,
		Count:  len(events),
		Total:  h.Svc.Events().Stats().Total,
	}
	h.JSONResponse(r.Context(), w, http.StatusOK, NewSuccessResponse(&resp))
}

// StreamEvents godoc
// @Summary Event stream
// @Description Server-sent events: replays recent history, then streams new events live.
// @Tags Events
// @Produce text/event-stream
// @Success 200
// @Router /api/v1/events/stream [get]
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.ErrorResponse(ctx, w, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// subscribe before replaying so no event falls between the two
	events, cancel := h.Svc.Events().Subscribe(streamSubscribeSize)
	defer cancel()

	replay := h.Svc.Events().List(eventlog.Filter{Limit: streamReplayCount})
	for i := len(replay) - 1; i >= 0; i-- {
		if err := writeSSEEvent(w, replay[i]); err != nil {
			return
		}
	}
	flusher.Flush()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				logger.Logger(ctx).Debug().Err(err).Msg("SSE client gone")
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
