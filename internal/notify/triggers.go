package notify

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/clock"
	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/kv"
)

// Persisted trigger markers.
const (
	guestPromptKey   = "smart_notify_guest_prompt"
	welcomeKey       = "smart_notify_welcome_session"
	milestoneKey     = "smart_notify_milestone_5"
	communityHintKey = "smart_notify_community_hint"
)

const (
	guestPromptText   = "Unlock full power! 🔓 Log in to sync your watchlist across devices."
	communityHintText = "Trending Alert: See what the community is raving about today! 🔥"
)

// TriggerConfig holds the delays, windows and thresholds of the triggers.
type TriggerConfig struct {
	GuestPromptDelay    time.Duration
	GuestPromptCooldown time.Duration
	CommunityHintDelay  time.Duration
	CommunityHintWindow time.Duration
	CommunityHintChance float64
	MilestoneThreshold  int
}

// DefaultTriggerConfig returns the production trigger settings.
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{
		GuestPromptDelay:    3 * time.Second,
		GuestPromptCooldown: 24 * time.Hour,
		CommunityHintDelay:  10 * time.Second,
		CommunityHintWindow: 48 * time.Hour,
		CommunityHintChance: 0.2,
		MilestoneThreshold:  5,
	}
}

// Option customises Triggers.
type Option func(*Triggers)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(t *Triggers) { t.clock = c }
}

// WithRandom replaces the source of uniform values in [0, 1).
func WithRandom(fn func() float64) Option {
	return func(t *Triggers) { t.random = fn }
}

type pending struct {
	timer     clock.Timer
	cancelled bool
}

// Triggers decides when contextual notifications are produced. Markers for
// device-wide triggers live in durable storage; the welcome marker lives in
// the app session's storage.
type Triggers struct {
	store   *Store
	durable kv.Store
	session kv.Store
	cfg     TriggerConfig
	clock   clock.Clock
	random  func() float64
	logger  *zap.Logger

	mu     sync.Mutex
	guest  *pending
	hint   *pending
	closed bool
}

// NewTriggers creates the trigger set for one app session.
func NewTriggers(store *Store, durable, session kv.Store, cfg TriggerConfig, logger *zap.Logger, opts ...Option) *Triggers {
	t := &Triggers{
		store:   store,
		durable: durable,
		session: session,
		cfg:     cfg,
		clock:   clock.System(),
		random:  rand.Float64,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WatchlistAdded confirms an add.
func (t *Triggers) WatchlistAdded(ctx context.Context, title string) {
	t.store.Add(ctx, domain.NotificationEntry{
		Text:     fmt.Sprintf("Great taste! '%s' added. 🎬 (Watch option coming soon!)", title),
		Category: domain.CategorySuccess,
	})
}

// WelcomeBack greets a signed-in user once per app session.
func (t *Triggers) WelcomeBack(ctx context.Context, identity domain.Identity) {
	t.mu.Lock()
	if t.closed || t.hasMarker(ctx, t.session, welcomeKey) {
		t.mu.Unlock()
		return
	}
	t.setMarker(ctx, t.session, welcomeKey, true)
	t.mu.Unlock()

	t.store.Add(ctx, domain.NotificationEntry{
		Text:     fmt.Sprintf("Welcome back, %s! 🍿 Ready to find your next favorite movie?", identity.FirstName()),
		Category: domain.CategorySuccess,
	})
}

// CheckMilestones emits the collection milestone the first time count
// reaches the threshold. The marker is permanent for the device.
func (t *Triggers) CheckMilestones(ctx context.Context, count int) {
	if count < t.cfg.MilestoneThreshold {
		return
	}

	t.mu.Lock()
	if t.hasMarker(ctx, t.durable, milestoneKey) {
		t.mu.Unlock()
		return
	}
	t.setMarker(ctx, t.durable, milestoneKey, true)
	t.mu.Unlock()

	t.store.Add(ctx, domain.NotificationEntry{
		Text: fmt.Sprintf("You're a certified movie buff! 🌟 That's %d movies in your collection.",
			t.cfg.MilestoneThreshold),
		Category: domain.CategoryMilestone,
	})
}

// ScheduleGuestPrompt queues the sign-in prompt unless it was shown within
// the cooldown or is already pending.
func (t *Triggers) ScheduleGuestPrompt(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.guest != nil {
		return
	}
	if t.withinWindow(ctx, guestPromptKey, t.cfg.GuestPromptCooldown) {
		return
	}

	p := &pending{}
	p.timer = t.clock.AfterFunc(t.cfg.GuestPromptDelay, func() {
		if !t.claim(p, &t.guest) {
			return
		}
		ctx := context.Background()

		t.mu.Lock()
		// Another session of the device may have shown it meanwhile.
		if t.withinWindow(ctx, guestPromptKey, t.cfg.GuestPromptCooldown) {
			t.mu.Unlock()
			return
		}
		t.setMarker(ctx, t.durable, guestPromptKey, t.clock.Now().UnixMilli())
		t.mu.Unlock()

		t.store.Add(ctx, domain.NotificationEntry{
			Text:        guestPromptText,
			Category:    domain.CategoryInfo,
			Action:      "/login",
			ActionLabel: "Sign In",
		})
	})
	t.guest = p
}

// CancelGuestPrompt drops a pending guest prompt.
func (t *Triggers) CancelGuestPrompt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancel(&t.guest)
}

// ScheduleCommunityHint rolls once for the community hint. Outside the
// window and on a successful roll the hint is queued; the marker is only
// written when the hint is actually added.
func (t *Triggers) ScheduleCommunityHint(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.hint != nil {
		return
	}
	if t.withinWindow(ctx, communityHintKey, t.cfg.CommunityHintWindow) {
		return
	}
	if t.random() >= t.cfg.CommunityHintChance {
		return
	}

	p := &pending{}
	p.timer = t.clock.AfterFunc(t.cfg.CommunityHintDelay, func() {
		if !t.claim(p, &t.hint) {
			return
		}
		ctx := context.Background()
		added := t.store.Add(ctx, domain.NotificationEntry{
			Text:        communityHintText,
			Category:    domain.CategoryInfo,
			Action:      "/community",
			ActionLabel: "Explore",
		})
		if added {
			t.mu.Lock()
			t.setMarker(ctx, t.durable, communityHintKey, t.clock.Now().UnixMilli())
			t.mu.Unlock()
		}
	})
	t.hint = p
}

// Close cancels every pending trigger. Nothing fires afterwards.
func (t *Triggers) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.cancel(&t.guest)
	t.cancel(&t.hint)
}

// claim is called from a timer callback; it reports whether the timer is
// still current and clears the slot.
func (t *Triggers) claim(p *pending, slot **pending) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.cancelled || t.closed {
		return false
	}
	if *slot == p {
		*slot = nil
	}
	return true
}

func (t *Triggers) cancel(slot **pending) {
	p := *slot
	if p == nil {
		return
	}
	p.cancelled = true
	if p.timer != nil {
		p.timer.Stop()
	}
	*slot = nil
}

func (t *Triggers) hasMarker(ctx context.Context, s kv.Store, key string) bool {
	_, err := s.Get(ctx, key)
	return err == nil
}

func (t *Triggers) setMarker(ctx context.Context, s kv.Store, key string, v any) {
	if err := kv.SetJSON(ctx, s, key, v); err != nil {
		t.logger.Warn("failed to persist trigger marker", zap.String("key", key), zap.Error(err))
	}
}

// withinWindow reports whether the timestamp marker under key is younger
// than window.
func (t *Triggers) withinWindow(ctx context.Context, key string, window time.Duration) bool {
	last := kv.LoadJSON[int64](ctx, t.durable, key, 0, t.logger)
	if last == 0 {
		return false
	}
	return t.clock.Now().Sub(time.UnixMilli(last)) <= window
}
