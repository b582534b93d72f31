package httpapi

import (
	"net/http"

	"github.com/UkralStul/social-feed-service/internal/auth"
	"github.com/UkralStul/social-feed-service/internal/notify"
)

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) error {
	list, err := h.svc.Notify.List(r.Context(), auth.UserID(r.Context()), pageArgs(r, notify.DefaultLimit))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// markRead чужое уведомление не меняет и ошибкой не считается.
func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	if _, err := h.svc.Notify.MarkRead(r.Context(), auth.UserID(r.Context()), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, message{Message: "Notification marked as read"})
	return nil
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) error {
	if _, err := h.svc.Notify.MarkAllRead(r.Context(), auth.UserID(r.Context())); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, message{Message: "All notifications marked as read"})
	return nil
}

func (h *Handler) deleteNotification(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	if _, err := h.svc.Notify.Delete(r.Context(), auth.UserID(r.Context()), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, message{Message: "Notification deleted successfully"})
	return nil
}
