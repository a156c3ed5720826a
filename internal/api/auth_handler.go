package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/middleware"
	"github.com/reelsync/backend/pkg/response"
	"github.com/reelsync/backend/pkg/validator"
)

// AuthHandler handles sign-in for the calling app session
type AuthHandler struct {
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(logger *zap.Logger) *AuthHandler {
	return &AuthHandler{logger: logger}
}

// SignUpRequest represents the sign-up request body
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// SignInRequest represents the sign-in request body
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CompletePopupRequest carries the parameters Google appended to the
// redirect
type CompletePopupRequest struct {
	State string `json:"state"`
	Code  string `json:"code"`
}

// PopupResponse carries the consent URL for the popup window
type PopupResponse struct {
	URL string `json:"url"`
}

// SignUp creates an account and signs the session in
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}

	var req SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name != "" && !validator.ValidateName(req.Name) {
		response.BadRequest(w, "name must be 2-100 characters")
		return
	}

	if _, err := session.Auth().SignUpWithCredentials(r.Context(), req.Email, req.Password, req.Name); err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Created(w, sessionView(session))
}

// SignIn signs the session in with email and password
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}

	var req SignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		response.BadRequest(w, "email and password are required")
		return
	}

	if _, err := session.Auth().SignInWithCredentials(r.Context(), req.Email, req.Password); err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.OK(w, sessionView(session))
}

// SignOut clears the session identity
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}
	session.Auth().SignOut()
	response.OK(w, sessionView(session))
}

// BeginPopup returns the Google consent URL for the popup window
func (h *AuthHandler) BeginPopup(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}

	url, err := session.Auth().BeginPopup()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.OK(w, PopupResponse{URL: url})
}

// CompletePopup finishes the popup sign-in with the code from the redirect
func (h *AuthHandler) CompletePopup(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "missing session")
		return
	}

	var req CompletePopupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.State == "" || req.Code == "" {
		response.BadRequest(w, "state and code are required")
		return
	}

	if _, err := session.Auth().CompletePopup(r.Context(), req.State, req.Code); err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.OK(w, sessionView(session))
}
