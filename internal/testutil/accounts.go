package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reelsync/backend/internal/domain"
)

// Accounts is an in-memory domain.AccountRepository. Setting Err makes
// every call fail with it.
type Accounts struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*domain.Account
	passwords map[uuid.UUID]string
	Err       error
}

var _ domain.AccountRepository = (*Accounts)(nil)

func NewAccounts() *Accounts {
	return &Accounts{
		byID:      make(map[uuid.UUID]*domain.Account),
		passwords: make(map[uuid.UUID]string),
	}
}

func (a *Accounts) CreateAccount(_ context.Context, params domain.CreateAccountParams) (*domain.Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return nil, a.Err
	}
	for _, acc := range a.byID {
		if acc.Email == params.Email {
			return nil, domain.ErrEmailInUse
		}
	}

	now := time.Now()
	acc := &domain.Account{
		ID:            uuid.New(),
		Email:         params.Email,
		DisplayName:   params.DisplayName,
		PhotoURL:      params.PhotoURL,
		GoogleID:      params.GoogleID,
		EmailVerified: params.EmailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	a.byID[acc.ID] = acc
	if params.PasswordHash != nil {
		a.passwords[acc.ID] = *params.PasswordHash
	}
	clone := *acc
	return &clone, nil
}

func (a *Accounts) find(match func(*domain.Account) bool) (*domain.Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return nil, a.Err
	}
	for _, acc := range a.byID {
		if match(acc) {
			clone := *acc
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (a *Accounts) GetAccountByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	return a.find(func(acc *domain.Account) bool { return acc.ID == id })
}

func (a *Accounts) GetAccountByEmail(_ context.Context, email string) (*domain.Account, error) {
	return a.find(func(acc *domain.Account) bool { return acc.Email == email })
}

func (a *Accounts) GetAccountByGoogleID(_ context.Context, googleID string) (*domain.Account, error) {
	return a.find(func(acc *domain.Account) bool { return acc.GoogleID != nil && *acc.GoogleID == googleID })
}

func (a *Accounts) GetAccountWithPassword(ctx context.Context, email string) (*domain.Account, string, error) {
	acc, err := a.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return acc, a.passwords[acc.ID], nil
}

func (a *Accounts) LinkGoogleAccount(_ context.Context, accountID uuid.UUID, googleID string) (*domain.Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return nil, a.Err
	}
	acc, ok := a.byID[accountID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	acc.GoogleID = &googleID
	acc.EmailVerified = true
	clone := *acc
	return &clone, nil
}

func (a *Accounts) AccountExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := a.GetAccountByEmail(ctx, email)
	if err == domain.ErrUserNotFound {
		return false, nil
	}
	return err == nil, err
}
