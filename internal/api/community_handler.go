package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/community"
	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/middleware"
	"github.com/reelsync/backend/pkg/response"
)

// CommunityHandler serves the public review feed
type CommunityHandler struct {
	service *community.Service
	logger  *zap.Logger
}

func NewCommunityHandler(service *community.Service, logger *zap.Logger) *CommunityHandler {
	return &CommunityHandler{service: service, logger: logger}
}

func (h *CommunityHandler) List(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.service.List(r.Context()))
}

// Create posts as the session's identity
func (h *CommunityHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}

	var req domain.NewPost
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := h.service.Post(r.Context(), session.Auth().Current(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Created(w, post)
}
