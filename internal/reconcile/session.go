// Package reconcile wires the auth tracker, the watchlist store and the
// notification store of one app session together.
package reconcile

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/auth"
	"github.com/reelsync/backend/internal/clock"
	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/kv"
	"github.com/reelsync/backend/internal/notify"
	"github.com/reelsync/backend/internal/observe"
	"github.com/reelsync/backend/internal/recents"
	"github.com/reelsync/backend/internal/watchlist"
)

// EventType names a live session event.
type EventType string

const (
	EventAuth          EventType = "auth"
	EventWatchlist     EventType = "watchlist"
	EventWatchlistErr  EventType = "watchlist_error"
	EventNotifications EventType = "notifications"
)

// Event is pushed to live subscribers of a session.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// AuthState is the payload of an EventAuth event.
type AuthState struct {
	State    string           `json:"state"`
	Identity *domain.Identity `json:"identity"`
}

// Config is shared by every session a Manager creates.
type Config struct {
	// Remote backs the watchlist of signed-in users. Nil means no remote
	// store is configured and signed-in writes fail with
	// domain.ErrRemoteUnavailable.
	Remote        watchlist.Source
	RecentsRemote recents.Remote
	Triggers      notify.TriggerConfig
	Clock         clock.Clock
	Random        func() float64
}

// Session is one app session: a browser tab with its own identity, its own
// ephemeral storage and a view of its device's durable storage.
type Session struct {
	ID       string
	DeviceID string

	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	clock  clock.Clock

	tracker       *auth.Tracker
	watchlist     *watchlist.Store
	notifications *notify.Store
	triggers      *notify.Triggers
	recents       *recents.Recents
	local         watchlist.Source
	remote        watchlist.Source

	events *observe.Registry[Event]

	mu          sync.Mutex
	disposers   []observe.Disposer
	hintChecked bool
	closeOnce   sync.Once

	lastSeen atomic.Int64
}

// NewSession builds a session in the loading state. Start performs the
// first identity resolution.
func NewSession(id, deviceID string, durable kv.Store, authn auth.Authenticator, cfg Config, logger *zap.Logger) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	logger = logger.With(zap.String("session_id", id), zap.String("device_id", deviceID))
	ctx, cancel := context.WithCancel(context.Background())

	opts := []notify.Option{notify.WithClock(cfg.Clock)}
	if cfg.Random != nil {
		opts = append(opts, notify.WithRandom(cfg.Random))
	}

	remote := cfg.Remote
	if remote == nil {
		remote = watchlist.NewFirestoreRemote(nil, logger)
	}

	notifications := notify.NewStore(ctx, durable, logger)
	s := &Session{
		ID:            id,
		DeviceID:      deviceID,
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger,
		clock:         cfg.Clock,
		tracker:       auth.NewTracker(authn, logger),
		watchlist:     watchlist.NewStore(logger, cfg.Clock.Now),
		notifications: notifications,
		triggers:      notify.NewTriggers(notifications, durable, kv.NewMemoryStore(), cfg.Triggers, logger, opts...),
		recents:       recents.New(cfg.RecentsRemote, durable, logger),
		local:         watchlist.NewLocal(durable, logger),
		remote:        remote,
		events:        observe.NewRegistry[Event](),
	}
	s.Touch()

	s.disposers = append(s.disposers,
		s.tracker.Observe(s.onTransition),
		s.watchlist.Subscribe(func(items []domain.WatchlistItem) {
			s.events.Publish(Event{Type: EventWatchlist, Data: items})
		}),
		s.watchlist.OnError(func(err error) {
			s.events.Publish(Event{Type: EventWatchlistErr, Data: err.Error()})
		}),
		s.notifications.Subscribe(func(list []domain.Notification) {
			s.events.Publish(Event{Type: EventNotifications, Data: list})
		}),
	)
	return s
}

// Start resolves the identity from a previously issued token, or to signed
// out when token is empty.
func (s *Session) Start(ctx context.Context, token string) auth.Snapshot {
	return s.tracker.Resolve(ctx, token)
}

func (s *Session) onTransition(t auth.Transition) {
	if s.ctx.Err() != nil {
		return
	}
	cur := t.Current

	if cur.SignedIn() {
		s.triggers.CancelGuestPrompt()
		if !sameUID(t.Previous.Identity, cur.Identity) {
			s.watchlist.Attach(s.remote, cur.Identity.UID)
		}
		if t.Previous.Identity == nil {
			s.triggers.WelcomeBack(s.ctx, *cur.Identity)
		}
	} else {
		if t.Previous.SignedIn() || t.Previous.State == auth.StateLoading {
			s.watchlist.Attach(s.local, "")
		}
		s.triggers.ScheduleGuestPrompt(s.ctx)
	}

	s.mu.Lock()
	rollHint := !s.hintChecked
	s.hintChecked = true
	s.mu.Unlock()
	if rollHint {
		s.triggers.ScheduleCommunityHint(s.ctx)
	}

	s.events.Publish(Event{Type: EventAuth, Data: AuthState{State: cur.State.String(), Identity: cur.Identity}})
}

func sameUID(a, b *domain.Identity) bool {
	return a != nil && b != nil && a.UID == b.UID
}

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context { return s.ctx }

// Auth returns the session's identity tracker.
func (s *Session) Auth() *auth.Tracker { return s.tracker }

// Watchlist returns the session's watchlist store.
func (s *Session) Watchlist() *watchlist.Store { return s.watchlist }

// Notifications returns the device notification list as seen by this session.
func (s *Session) Notifications() *notify.Store { return s.notifications }

// AddToWatchlist writes item to the active source and, on success, runs the
// add confirmation and the milestone check against the collection size.
func (s *Session) AddToWatchlist(ctx context.Context, item domain.WatchlistItem) (domain.WatchlistItem, error) {
	added, err := s.watchlist.Add(ctx, item)
	if err != nil {
		return added, err
	}
	s.triggers.WatchlistAdded(ctx, added.Title)
	s.triggers.CheckMilestones(ctx, s.watchlist.Count(ctx))
	return added, nil
}

// RemoveFromWatchlist deletes an item from the active source.
func (s *Session) RemoveFromWatchlist(ctx context.Context, id int) error {
	return s.watchlist.Remove(ctx, id)
}

// ViewItem records item as recently viewed.
func (s *Session) ViewItem(ctx context.Context, item domain.RecentItem) {
	s.recents.Add(ctx, s.uid(), item)
}

// RecentlyViewed lists recently viewed items, newest first.
func (s *Session) RecentlyViewed(ctx context.Context) []domain.RecentItem {
	return s.recents.List(ctx, s.uid())
}

// LastViewed returns the most recently viewed item.
func (s *Session) LastViewed(ctx context.Context) (domain.RecentItem, bool) {
	return s.recents.LastViewed(ctx, s.uid())
}

func (s *Session) uid() string {
	if identity := s.tracker.Current(); identity != nil {
		return identity.UID
	}
	return ""
}

// Subscribe registers fn for the session's live events.
func (s *Session) Subscribe(fn func(Event)) observe.Disposer {
	return s.events.Subscribe(fn)
}

// Touch marks the session as used now.
func (s *Session) Touch() {
	s.lastSeen.Store(s.clock.Now().UnixNano())
}

// IdleFor returns how long the session has gone unused as of now.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

// Close disposes every subscription and pending timer. It is safe to call
// more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.triggers.Close()

		s.mu.Lock()
		disposers := s.disposers
		s.disposers = nil
		s.mu.Unlock()
		for _, dispose := range disposers {
			dispose()
		}

		s.watchlist.Close()
		s.notifications.Close()
		s.logger.Debug("session closed")
	})
}
