package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/metrics"
	"github.com/reelsync/backend/internal/observe"
)

// State is the resolution state of an app session's identity.
type State int

const (
	StateLoading State = iota
	StateSignedOut
	StateSignedIn
)

func (s State) String() string {
	switch s {
	case StateSignedOut:
		return "signed_out"
	case StateSignedIn:
		return "signed_in"
	default:
		return "loading"
	}
}

// Snapshot is the tracker state at one point in time. Identity is nil unless
// State is StateSignedIn.
type Snapshot struct {
	State    State            `json:"-"`
	Identity *domain.Identity `json:"identity"`
}

func (s Snapshot) SignedIn() bool { return s.State == StateSignedIn && s.Identity != nil }

// Transition is delivered to observers whenever the snapshot changes.
type Transition struct {
	Previous Snapshot
	Current  Snapshot
}

// Authenticator is the identity provider behind a Tracker.
type Authenticator interface {
	PopupURL(state string) (string, error)
	CompletePopup(ctx context.Context, code string) (*domain.Identity, error)
	SignIn(ctx context.Context, email, password string) (*domain.Identity, error)
	SignUp(ctx context.Context, email, password, name string) (*domain.Identity, error)
	IssueToken(identity domain.Identity) (string, time.Time, error)
	Restore(token string) (*domain.Identity, error)
}

// Tracker holds the identity of one app session. It starts in StateLoading
// and leaves it exactly once, either through Resolve or through the first
// successful sign-in.
type Tracker struct {
	provider Authenticator
	logger   *zap.Logger

	mu         sync.Mutex
	snap       Snapshot
	token      string
	expiresAt  time.Time
	popupState string

	// pubMu orders transitions so observers see them in the order they
	// were applied. Observers must not call back into sign-in methods.
	pubMu     sync.Mutex
	observers *observe.Registry[Transition]
}

// NewTracker creates a tracker in the loading state.
func NewTracker(provider Authenticator, logger *zap.Logger) *Tracker {
	return &Tracker{
		provider:  provider,
		logger:    logger,
		snap:      Snapshot{State: StateLoading},
		observers: observe.NewRegistry[Transition](),
	}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Current returns the signed-in identity, or nil.
func (t *Tracker) Current() *domain.Identity {
	return t.Snapshot().Identity
}

// Loading reports whether the first resolution is still outstanding.
func (t *Tracker) Loading() bool {
	return t.Snapshot().State == StateLoading
}

// Token returns the access token of the signed-in identity.
func (t *Tracker) Token() (string, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token, t.expiresAt
}

// Observe registers fn for every subsequent transition.
func (t *Tracker) Observe(fn func(Transition)) observe.Disposer {
	return t.observers.Subscribe(fn)
}

// Resolve performs the first resolution from a previously issued token. An
// empty or invalid token resolves to signed out. Calls after the tracker
// has left the loading state return the current snapshot unchanged.
func (t *Tracker) Resolve(ctx context.Context, token string) Snapshot {
	t.pubMu.Lock()
	defer t.pubMu.Unlock()

	if snap := t.Snapshot(); snap.State != StateLoading {
		return snap
	}

	next := Snapshot{State: StateSignedOut}
	if token != "" {
		identity, err := t.provider.Restore(token)
		if err != nil {
			t.logger.Debug("session token not restored", zap.Error(err))
		} else {
			next = Snapshot{State: StateSignedIn, Identity: identity}
		}
	}
	if !next.SignedIn() {
		t.applyLocked(next, "")
		return next
	}

	// Restored sessions get a fresh token so the expiry slides forward.
	fresh, expiresAt, err := t.provider.IssueToken(*next.Identity)
	if err != nil {
		t.logger.Warn("reissue session token failed", zap.Error(err))
		fresh = token
	}
	t.mu.Lock()
	t.expiresAt = expiresAt
	t.mu.Unlock()
	t.applyLocked(next, fresh)
	return next
}

// BeginPopup starts a federated sign-in and returns the consent URL. The
// state parameter embedded in the URL must be presented to CompletePopup.
func (t *Tracker) BeginPopup() (string, error) {
	state, err := GenerateSecureToken(24)
	if err != nil {
		return "", err
	}
	url, err := t.provider.PopupURL(state)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	t.popupState = state
	t.mu.Unlock()
	return url, nil
}

// CompletePopup finishes a federated sign-in started with BeginPopup.
func (t *Tracker) CompletePopup(ctx context.Context, state, code string) (*domain.Identity, error) {
	t.mu.Lock()
	expected := t.popupState
	t.popupState = ""
	t.mu.Unlock()

	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		return nil, fmt.Errorf("%w: popup state mismatch", domain.ErrInvalidInput)
	}

	identity, err := t.provider.CompletePopup(ctx, code)
	if err != nil {
		return nil, err
	}
	return identity, t.signedIn(identity)
}

// SignInWithCredentials signs in with an email and password.
func (t *Tracker) SignInWithCredentials(ctx context.Context, email, password string) (*domain.Identity, error) {
	identity, err := t.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return identity, t.signedIn(identity)
}

// SignUpWithCredentials creates an account and signs it in.
func (t *Tracker) SignUpWithCredentials(ctx context.Context, email, password, name string) (*domain.Identity, error) {
	identity, err := t.provider.SignUp(ctx, email, password, name)
	if err != nil {
		return nil, err
	}
	return identity, t.signedIn(identity)
}

// SignOut clears the identity. It is a no-op when already signed out.
func (t *Tracker) SignOut() {
	t.pubMu.Lock()
	defer t.pubMu.Unlock()

	if t.Snapshot().State == StateSignedOut {
		return
	}
	t.applyLocked(Snapshot{State: StateSignedOut}, "")
}

func (t *Tracker) signedIn(identity *domain.Identity) error {
	token, expiresAt, err := t.provider.IssueToken(*identity)
	if err != nil {
		return fmt.Errorf("issue session token: %w", err)
	}

	t.pubMu.Lock()
	defer t.pubMu.Unlock()

	t.mu.Lock()
	t.expiresAt = expiresAt
	t.mu.Unlock()
	t.applyLocked(Snapshot{State: StateSignedIn, Identity: identity}, token)
	return nil
}

// applyLocked must be called with pubMu held.
func (t *Tracker) applyLocked(next Snapshot, token string) {
	t.mu.Lock()
	prev := t.snap
	t.snap = next
	t.token = token
	if token == "" {
		t.expiresAt = time.Time{}
	}
	t.mu.Unlock()

	metrics.AuthTransitions.WithLabelValues(next.State.String()).Inc()
	t.observers.Publish(Transition{Previous: prev, Current: next})
}
