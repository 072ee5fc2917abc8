package httpapi

import (
	"net/http"

	"github.com/wolfchat/wolfchat/internal/middleware"
)

func (h *handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	unread, err := h.app.Notifications.Unread(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unread)
}

func (h *handler) markNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Notifications.MarkAllRead(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Notifications marked as read"})
}
