package api

import (
	"errors"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/auth"
	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/pkg/response"
)

const maxBodyBytes = 64 << 10

// decodeJSON reads a JSON request body. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "invalid request body")
		return false
	}
	return true
}

// writeError translates domain errors into the response envelope. The codes
// are stable so the client can map them to its own messages.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		response.BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrAuthRequired):
		response.Unauthorized(w, "sign in required")
	case errors.Is(err, domain.ErrInvalidCredentials):
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, domain.ErrUserNotFound):
		response.Error(w, http.StatusNotFound, "USER_NOT_FOUND", "no account with this email")
	case errors.Is(err, domain.ErrEmailInUse):
		response.Error(w, http.StatusConflict, "EMAIL_IN_USE", "an account with this email already exists")
	case errors.Is(err, domain.ErrSessionNotFound):
		response.NotFound(w, "session not found")
	case errors.Is(err, domain.ErrMovieNotFound):
		response.NotFound(w, "movie not found")
	case errors.Is(err, domain.ErrProviderUnavailable):
		response.Error(w, http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE", "sign-in is currently unavailable")
	case errors.Is(err, domain.ErrRemoteUnavailable):
		response.Error(w, http.StatusServiceUnavailable, "REMOTE_UNAVAILABLE", "could not reach the server, please try again")
	default:
		logger.Error("request failed", zap.Error(err))
		response.InternalError(w, "something went wrong")
	}
}
