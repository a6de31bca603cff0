package checkin_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"gym-checkin/internal/auth"
	"gym-checkin/internal/models"
	"gym-checkin/internal/utils"
)

// CodeEvents streams status changes for one code. The stored state is sent
// first so a client connecting after the outcome still sees it.
func (h *Handler) CodeEvents(w http.ResponseWriter, r *http.Request) {
	if h.Notifier == nil {
		writeJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Status streaming is not enabled", "unavailable"))
		return
	}
	code, ok := h.ownedCode(w, r, "CodeEvents")
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	events := h.Notifier.Subscribe(ctx, code.ID)

	// Re-read after subscribing so a transition in between is not lost.
	current, err := h.Service.GetCode(ctx, code.ID)
	if err != nil || current == nil {
		current = code
	}
	snapshot, terminal := h.snapshotEvent(ctx, current)

	h.setupSSEHeaders(w)
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"codeID\":\"%s\"}\n\n", code.ID)
	h.writeEvent(w, snapshot)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to status events for code: %s", code.ID))
	if terminal {
		return
	}
	h.stream(ctx, w, flusher, events)
}

// UserEvents streams status changes for every code the caller owns.
func (h *Handler) UserEvents(w http.ResponseWriter, r *http.Request) {
	if h.Notifier == nil {
		writeJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Status streaming is not enabled", "unavailable"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	userID := auth.UserID(r.Context())
	events := h.Notifier.SubscribeUser(r.Context(), userID)

	h.setupSSEHeaders(w)
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"userID\":\"%s\"}\n\n", userID)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to status events for user: %s", userID))
	h.stream(r.Context(), w, flusher, events)
}

func (h *Handler) stream(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, events <-chan models.StatusEvent) {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			h.writeEvent(w, event)
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) writeEvent(w http.ResponseWriter, event models.StatusEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize status event: %v", err))
		return
	}
	fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
}

// snapshotEvent renders the stored code as the event a subscriber would have
// received for it. Terminal snapshots end the stream.
func (h *Handler) snapshotEvent(ctx context.Context, code *models.CheckInCode) (models.StatusEvent, bool) {
	now := h.now()
	event := models.StatusEvent{CodeID: code.ID, UserID: code.UserID, At: now}

	switch code.EffectiveStatus(now) {
	case models.CodeStatusUsed:
		event.Status = models.StatusEventActive
		event.Detail = "checked in"
		if record, err := h.Service.GetCheckInByCode(ctx, code.ID); err == nil && record != nil {
			event.CheckInID = record.ID
		}
		return event, true
	case models.CodeStatusExpired:
		event.Status = models.StatusEventError
		event.Detail = "code expired"
		return event, true
	case models.CodeStatusError:
		event.Status = models.StatusEventError
		event.Detail = "code rejected"
		return event, true
	default:
		event.Status = models.StatusEventPending
		return event, false
	}
}

func (h *Handler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
