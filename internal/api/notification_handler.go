package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/middleware"
	"github.com/reelsync/backend/internal/notify"
	"github.com/reelsync/backend/pkg/response"
)

type NotificationHandler struct {
	logger *zap.Logger
}

func NewNotificationHandler(logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{logger: logger}
}

// NotificationsResponse is the device list with its unread count
type NotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

func notificationsView(store *notify.Store) NotificationsResponse {
	list := store.List()
	if list == nil {
		list = []domain.Notification{}
	}
	return NotificationsResponse{Notifications: list, Unread: store.UnreadCount()}
}

func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}
	response.OK(w, notificationsView(session.Notifications()))
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}
	store := session.Notifications()
	store.MarkRead(r.Context(), chi.URLParam(r, "id"))
	response.OK(w, notificationsView(store))
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}
	store := session.Notifications()
	store.MarkAllRead(r.Context())
	response.OK(w, notificationsView(store))
}

func (h *NotificationHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}
	store := session.Notifications()
	store.Dismiss(r.Context(), chi.URLParam(r, "id"))
	response.OK(w, notificationsView(store))
}
