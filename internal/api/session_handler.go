package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/middleware"
	"github.com/reelsync/backend/internal/reconcile"
	"github.com/reelsync/backend/pkg/response"
)

// SessionHandler creates and ends app sessions
type SessionHandler struct {
	manager *reconcile.Manager
	logger  *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *reconcile.Manager, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{manager: manager, logger: logger}
}

// CreateSessionRequest optionally carries the token of a previous sign-in
type CreateSessionRequest struct {
	Token string `json:"token"`
}

// SessionResponse describes an app session and its identity
type SessionResponse struct {
	SessionID      string     `json:"session_id"`
	DeviceID       string     `json:"device_id"`
	State          string     `json:"state"`
	Identity       any        `json:"identity"`
	Token          string     `json:"token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

func sessionView(s *reconcile.Session) SessionResponse {
	snap := s.Auth().Snapshot()
	resp := SessionResponse{
		SessionID: s.ID,
		DeviceID:  s.DeviceID,
		State:     snap.State.String(),
		Identity:  snap.Identity,
	}
	if token, expiresAt := s.Auth().Token(); token != "" {
		resp.Token = token
		if !expiresAt.IsZero() {
			resp.TokenExpiresAt = &expiresAt
		}
	}
	return resp
}

// Create starts a session for the calling device. A device id is minted
// when the client does not have one yet.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	deviceID := r.Header.Get(middleware.DeviceHeader)
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	session, err := h.manager.Create(r.Context(), deviceID, req.Token)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set(middleware.SessionHeader, session.ID)
	w.Header().Set(middleware.DeviceHeader, session.DeviceID)
	response.Created(w, sessionView(session))
}

// Get returns the calling session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}
	response.OK(w, sessionView(session))
}

// Delete ends the calling session
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}
	if err := h.manager.Destroy(session.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.NoContent(w)
}
