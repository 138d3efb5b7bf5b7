package http

import (
	"net/http"

	"github.com/akozyreva/cloudkeep/internal/notify"
)

// NotificationsHandler lets the dashboard poll pending toasts.
type NotificationsHandler struct {
	Hub *notify.Hub
}

// List handles GET /api/notifications. Polling drains the pending toasts, so
// each notification is delivered exactly once.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	toasts := h.Hub.Drain()
	if toasts == nil {
		toasts = []notify.Toast{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": toasts})
}
