package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListNotifications returns the caller's inbox, newest first.
// Query: unread=true limits it to unread notifications.
// GET /api/notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	unread := r.URL.Query().Get("unread") == "true"
	ns, err := h.Inbox.List(r.Context(), actorFrom(r).ID, unread)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toNotificationDTOs(ns))
}

// MarkNotificationRead marks one of the caller's notifications read.
// POST /api/notifications/{id}/read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.Inbox.MarkRead(r.Context(), chi.URLParam(r, "id"), actorFrom(r).ID); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead marks the caller's whole inbox read.
// POST /api/notifications/read-all
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.Inbox.MarkAllRead(r.Context(), actorFrom(r).ID)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}
