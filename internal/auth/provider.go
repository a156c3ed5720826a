package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/pkg/validator"
)

// Provider authenticates identities against the account database and the
// federated popup flow. A single Provider is shared by every app session.
type Provider struct {
	repo   domain.AccountRepository
	jwt    *JWTManager
	google *GoogleAuthVerifier
	popup  CodeExchanger
	logger *zap.Logger
}

// NewProvider creates a provider. repo and popup may be nil, in which case
// the corresponding sign-in methods fail with domain.ErrProviderUnavailable.
func NewProvider(repo domain.AccountRepository, jwt *JWTManager, google *GoogleAuthVerifier, popup CodeExchanger, logger *zap.Logger) *Provider {
	return &Provider{
		repo:   repo,
		jwt:    jwt,
		google: google,
		popup:  popup,
		logger: logger,
	}
}

func (p *Provider) popupReady() bool {
	return p.popup != nil && p.google != nil && p.google.IsConfigured() && p.repo != nil
}

// PopupURL returns the consent URL for a popup sign-in bound to state.
func (p *Provider) PopupURL(state string) (string, error) {
	if !p.popupReady() {
		return "", domain.ErrProviderUnavailable
	}
	return p.popup.AuthCodeURL(state), nil
}

// CompletePopup exchanges the authorization code, verifies the returned
// Google ID token and resolves it to an account, creating or linking one
// when needed.
func (p *Provider) CompletePopup(ctx context.Context, code string) (*domain.Identity, error) {
	if !p.popupReady() {
		return nil, domain.ErrProviderUnavailable
	}

	idToken, err := p.popup.ExchangeIDToken(ctx, code)
	if err != nil {
		p.logger.Warn("popup code exchange failed", zap.Error(err))
		return nil, domain.ErrInvalidCredentials
	}

	googleUser, err := p.google.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
	}

	account, err := p.repo.GetAccountByGoogleID(ctx, googleUser.GoogleID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUserNotFound):
		account, err = p.linkOrCreate(ctx, googleUser)
		if err != nil {
			return nil, err
		}
	default:
		return nil, unavailable(err)
	}

	return account.ToIdentity(), nil
}

func (p *Provider) linkOrCreate(ctx context.Context, g *GoogleUser) (*domain.Account, error) {
	existing, err := p.repo.GetAccountByEmail(ctx, g.Email)
	if err == nil {
		linked, err := p.repo.LinkGoogleAccount(ctx, existing.ID, g.GoogleID)
		if err != nil {
			return nil, unavailable(err)
		}
		return linked, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, unavailable(err)
	}

	googleID := g.GoogleID
	params := domain.CreateAccountParams{
		Email:         validator.SanitizeEmail(g.Email),
		DisplayName:   g.Name,
		GoogleID:      &googleID,
		EmailVerified: g.EmailVerified,
	}
	if g.Picture != "" {
		picture := g.Picture
		params.PhotoURL = &picture
	}
	account, err := p.repo.CreateAccount(ctx, params)
	if err != nil {
		return nil, unavailable(err)
	}
	p.logger.Info("account created via google", zap.String("account_id", account.ID.String()))
	return account, nil
}

// SignIn checks an email and password.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	if p.repo == nil {
		return nil, domain.ErrProviderUnavailable
	}
	email = validator.SanitizeEmail(email)
	if !validator.ValidateEmail(email) || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	account, hash, err := p.repo.GetAccountWithPassword(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, unavailable(err)
	}
	// Accounts created through Google have no password.
	if hash == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if err := VerifyPassword(password, hash); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return account.ToIdentity(), nil
}

// SignUp creates an email/password account. An empty name defaults to the
// local part of the email address.
func (p *Provider) SignUp(ctx context.Context, email, password, name string) (*domain.Identity, error) {
	if p.repo == nil {
		return nil, domain.ErrProviderUnavailable
	}
	email = validator.SanitizeEmail(email)
	if !validator.ValidateEmail(email) {
		return nil, fmt.Errorf("%w: invalid email format", domain.ErrInvalidInput)
	}
	if errs := validator.ValidatePassword(password); errs.HasErrors() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, errs.Error())
	}
	name = validator.SanitizeString(name, 100)
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}

	exists, err := p.repo.AccountExistsByEmail(ctx, email)
	if err != nil {
		return nil, unavailable(err)
	}
	if exists {
		return nil, domain.ErrEmailInUse
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	account, err := p.repo.CreateAccount(ctx, domain.CreateAccountParams{
		Email:        email,
		PasswordHash: &hash,
		DisplayName:  name,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailInUse) {
			return nil, err
		}
		return nil, unavailable(err)
	}
	return account.ToIdentity(), nil
}

// IssueToken signs an access token that restores identity in a new session.
func (p *Provider) IssueToken(identity domain.Identity) (string, time.Time, error) {
	return p.jwt.GenerateAccessToken(identity)
}

// Restore returns the identity carried by a previously issued token.
func (p *Provider) Restore(token string) (*domain.Identity, error) {
	claims, err := p.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	return claims.Identity(), nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
}
