package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity is the signed-in user as seen by the rest of the application.
// It is read-only outside the auth package.
type Identity struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// FirstName returns the first word of the display name, falling back to
// the local part of the email address.
func (i Identity) FirstName() string {
	if fields := strings.Fields(i.DisplayName); len(fields) > 0 {
		return fields[0]
	}
	if at := strings.Index(i.Email, "@"); at > 0 {
		return i.Email[:at]
	}
	return "there"
}

// Account represents a user in the account database
type Account struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name"`
	PhotoURL      *string   `json:"photo_url,omitempty"`
	GoogleID      *string   `json:"-"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ToIdentity converts an Account to the Identity exposed to sessions
func (a *Account) ToIdentity() *Identity {
	identity := &Identity{
		UID:         a.ID.String(),
		DisplayName: a.DisplayName,
		Email:       a.Email,
	}
	if a.PhotoURL != nil {
		identity.PhotoURL = *a.PhotoURL
	}
	return identity
}

// CreateAccountParams holds parameters for account creation
type CreateAccountParams struct {
	Email         string
	PasswordHash  *string
	DisplayName   string
	PhotoURL      *string
	GoogleID      *string
	EmailVerified bool
}

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	CreateAccount(ctx context.Context, params CreateAccountParams) (*Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	GetAccountByGoogleID(ctx context.Context, googleID string) (*Account, error)
	GetAccountWithPassword(ctx context.Context, email string) (*Account, string, error)
	LinkGoogleAccount(ctx context.Context, accountID uuid.UUID, googleID string) (*Account, error)
	AccountExistsByEmail(ctx context.Context, email string) (bool, error)
}
