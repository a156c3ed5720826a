package auth

import (
	"context"
	"errors"

	"google.golang.org/api/idtoken"
)

var (
	ErrInvalidGoogleToken = errors.New("invalid Google ID token")
	ErrGoogleEmailMissing = errors.New("email not found in Google token")
)

// GoogleUser represents the user info from Google
type GoogleUser struct {
	GoogleID      string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// GoogleAuthVerifier handles Google ID token verification
type GoogleAuthVerifier struct {
	clientIDs []string
	validate  validateFunc
}

// NewGoogleAuthVerifier creates a new Google auth verifier
func NewGoogleAuthVerifier(clientIDs []string) *GoogleAuthVerifier {
	return &GoogleAuthVerifier{
		clientIDs: clientIDs,
		validate:  idtoken.Validate,
	}
}

// VerifyIDToken verifies a Google ID token against each configured client
// id and returns the user info
func (v *GoogleAuthVerifier) VerifyIDToken(ctx context.Context, idToken string) (*GoogleUser, error) {
	var payload *idtoken.Payload
	for _, clientID := range v.clientIDs {
		p, err := v.validate(ctx, idToken, clientID)
		if err == nil {
			payload = p
			break
		}
	}
	if payload == nil {
		return nil, ErrInvalidGoogleToken
	}

	googleUser := &GoogleUser{}

	if sub, ok := payload.Claims["sub"].(string); ok && sub != "" {
		googleUser.GoogleID = sub
	} else {
		return nil, ErrInvalidGoogleToken
	}

	if email, ok := payload.Claims["email"].(string); ok && email != "" {
		googleUser.Email = email
	} else {
		return nil, ErrGoogleEmailMissing
	}

	if verified, ok := payload.Claims["email_verified"].(bool); ok {
		googleUser.EmailVerified = verified
	}
	if name, ok := payload.Claims["name"].(string); ok {
		googleUser.Name = name
	}
	if picture, ok := payload.Claims["picture"].(string); ok {
		googleUser.Picture = picture
	}

	return googleUser, nil
}

// IsConfigured returns true if Google sign-in is configured
func (v *GoogleAuthVerifier) IsConfigured() bool {
	return len(v.clientIDs) > 0 && v.clientIDs[0] != ""
}
