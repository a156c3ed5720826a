package api

import (
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// GoogleOAuthHandler receives Google's redirect at the end of the popup
// flow and hands the code to the client page, which completes the sign-in
// for its own session.
type GoogleOAuthHandler struct {
	callbackURL string
	logger      *zap.Logger
}

// NewGoogleOAuthHandler creates a new Google OAuth handler. callbackURL is
// the client page that posts the code to /auth/popup/complete.
func NewGoogleOAuthHandler(callbackURL string, logger *zap.Logger) *GoogleOAuthHandler {
	return &GoogleOAuthHandler{callbackURL: callbackURL, logger: logger}
}

// GoogleOAuthCallback handles the callback from Google after authentication
func (h *GoogleOAuthHandler) GoogleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		h.redirectWithError(w, r, errParam)
		return
	}

	code := q.Get("code")
	state := q.Get("state")
	if code == "" || state == "" {
		h.logger.Warn("Google callback without code or state")
		h.redirectWithError(w, r, "Authorization code missing")
		return
	}

	h.redirect(w, r, url.Values{"code": {code}, "state": {state}})
}

// redirectWithError redirects to the client page with an error message
func (h *GoogleOAuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, errorMsg string) {
	h.logger.Warn("Google sign-in failed", zap.String("error", errorMsg))
	h.redirect(w, r, url.Values{"error": {errorMsg}})
}

func (h *GoogleOAuthHandler) redirect(w http.ResponseWriter, r *http.Request, params url.Values) {
	target, err := url.Parse(h.callbackURL)
	if err != nil {
		h.logger.Error("invalid popup callback URL", zap.Error(err))
		http.Error(w, "sign-in misconfigured", http.StatusInternalServerError)
		return
	}
	target.RawQuery = params.Encode()
	http.Redirect(w, r, target.String(), http.StatusTemporaryRedirect)
}
