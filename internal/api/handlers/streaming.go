package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"twinguard-lab/internal/infrastructure/database/repository"
	"twinguard-lab/internal/streaming"
	"twinguard-lab/pkg/logger"
)

// StreamingHandler handles WebSocket, streaming stats and event log endpoints
type StreamingHandler struct {
	bus    *streaming.EventBus
	hub    *streaming.WebSocketHub
	events *repository.EventRepository
	logger *logger.Logger
}

// NewStreamingHandler creates a new StreamingHandler. events may be nil.
func NewStreamingHandler(bus *streaming.EventBus, hub *streaming.WebSocketHub, events *repository.EventRepository, log *logger.Logger) *StreamingHandler {
	return &StreamingHandler{
		bus:    bus,
		hub:    hub,
		events: events,
		logger: log.WithComponent("streaming-api"),
	}
}

// HandleWebSocket handles GET /ws
func (h *StreamingHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusNotImplemented, "streaming is not enabled")
		return
	}
	h.hub.ServeWebSocket(w, r)
}

// GetStats handles GET /api/v1/streaming/stats
func (h *StreamingHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"websocket_clients": 0,
		"bus_subscribers":   0,
	}
	if h.hub != nil {
		stats["websocket_clients"] = h.hub.ClientCount()
	}
	if h.bus != nil {
		stats["bus_subscribers"] = h.bus.SubscriberCount()
	}
	respondJSON(w, http.StatusOK, stats)
}

// ListEvents handles GET /api/v1/streaming/events?limit=N from the
// persisted event log.
func (h *StreamingHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		respondError(w, http.StatusNotImplemented, "event log persistence is not enabled")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := h.events.RecentEvents(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

// GetEvent handles GET /api/v1/streaming/events/{id}
func (h *StreamingHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		respondError(w, http.StatusNotImplemented, "event log persistence is not enabled")
		return
	}

	event, err := h.events.EventByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if event == nil {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}
	respondJSON(w, http.StatusOK, event)
}
