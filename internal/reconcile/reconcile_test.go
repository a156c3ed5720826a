package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/auth"
	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/kv"
	"github.com/reelsync/backend/internal/notify"
	"github.com/reelsync/backend/internal/testutil"
	"github.com/reelsync/backend/internal/watchlist"
)

// fakeAuth signs in any known email regardless of password and encodes the
// uid directly in its tokens.
type fakeAuth struct {
	mu    sync.Mutex
	users map[string]domain.Identity
}

func newFakeAuth(users ...domain.Identity) *fakeAuth {
	f := &fakeAuth{users: make(map[string]domain.Identity)}
	for _, u := range users {
		f.users[u.Email] = u
	}
	return f
}

func (f *fakeAuth) PopupURL(string) (string, error) { return "", domain.ErrProviderUnavailable }

func (f *fakeAuth) CompletePopup(context.Context, string) (*domain.Identity, error) {
	return nil, domain.ErrProviderUnavailable
}

func (f *fakeAuth) SignIn(_ context.Context, email, _ string) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password, name string) (*domain.Identity, error) {
	return nil, domain.ErrProviderUnavailable
}

func (f *fakeAuth) IssueToken(identity domain.Identity) (string, time.Time, error) {
	return "token:" + identity.Email, time.Now().Add(time.Hour), nil
}

func (f *fakeAuth) Restore(token string) (*domain.Identity, error) {
	return f.SignIn(context.Background(), strings.TrimPrefix(token, "token:"), "")
}

var ann = domain.Identity{UID: "u1", DisplayName: "Ann", Email: "ann@example.com"}

type fixture struct {
	clock   *testutil.FakeClock
	devices *kv.BadgerBackend
	remote  *watchlist.MemoryRemote
	authn   *fakeAuth
	cfg     Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	devices, err := kv.OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = devices.Close() })

	f := &fixture{
		clock:   testutil.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		devices: devices,
		remote:  watchlist.NewMemoryRemote(),
		authn:   newFakeAuth(ann),
	}
	f.cfg = Config{
		Remote:   f.remote,
		Triggers: notify.DefaultTriggerConfig(),
		Clock:    f.clock,
		Random:   func() float64 { return 0.99 },
	}
	return f
}

func (f *fixture) session(t *testing.T, deviceID, token string) *Session {
	t.Helper()
	s := NewSession(uuid.NewString(), deviceID, f.devices.Device(deviceID), f.authn, f.cfg, zap.NewNop())
	t.Cleanup(s.Close)
	s.Start(context.Background(), token)
	return s
}

func movie(id int) domain.WatchlistItem {
	return domain.WatchlistItem{ID: id, Title: fmt.Sprintf("Movie %d", id), PosterURL: "p.jpg"}
}

func byCategory(list []domain.Notification, c domain.Category) []domain.Notification {
	var out []domain.Notification
	for _, n := range list {
		if n.Category == c {
			out = append(out, n)
		}
	}
	return out
}

func TestSession_GuestMilestoneAfterFiveAdds(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, "device-1", "")
	ctx := context.Background()

	require.Equal(t, watchlist.KindLocal, s.Watchlist().Kind())
	for i := 1; i <= 5; i++ {
		_, err := s.AddToWatchlist(ctx, movie(i))
		require.NoError(t, err)
		if i < 5 {
			assert.Empty(t, byCategory(s.Notifications().List(), domain.CategoryMilestone))
		}
	}

	milestones := byCategory(s.Notifications().List(), domain.CategoryMilestone)
	require.Len(t, milestones, 1)
	assert.Contains(t, milestones[0].Text, "5 movies")

	_, err := s.AddToWatchlist(ctx, movie(6))
	require.NoError(t, err)
	assert.Len(t, byCategory(s.Notifications().List(), domain.CategoryMilestone), 1)
}

func TestSession_WatchlistAddedConfirmation(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, "device-1", "")

	_, err := s.AddToWatchlist(context.Background(), domain.WatchlistItem{ID: 603, Title: "The Matrix"})
	require.NoError(t, err)

	list := s.Notifications().List()
	require.NotEmpty(t, list)
	assert.Equal(t, domain.CategorySuccess, list[0].Category)
	assert.Contains(t, list[0].Text, "'The Matrix' added")
}

func TestSession_WelcomeBackOncePerSession(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, "device-1", "")
	ctx := context.Background()

	_, err := s.Auth().SignInWithCredentials(ctx, ann.Email, "pw")
	require.NoError(t, err)

	welcomes := byCategory(s.Notifications().List(), domain.CategorySuccess)
	require.Len(t, welcomes, 1)
	assert.Contains(t, welcomes[0].Text, "Welcome back, Ann")

	// Read entries no longer dedupe, so only the session marker can block
	// a second welcome.
	s.Notifications().MarkAllRead(ctx)
	s.Auth().SignOut()
	_, err = s.Auth().SignInWithCredentials(ctx, ann.Email, "pw")
	require.NoError(t, err)
	assert.Len(t, byCategory(s.Notifications().List(), domain.CategorySuccess), 1)
}

func TestSession_WelcomeOnRestoredIdentity(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, "device-1", "token:"+ann.Email)

	require.True(t, s.Auth().Snapshot().SignedIn())
	assert.Len(t, byCategory(s.Notifications().List(), domain.CategorySuccess), 1)

	// A new session of the same device greets again.
	other := f.session(t, "device-1", "token:"+ann.Email)
	other.Notifications().MarkAllRead(context.Background())
	third := f.session(t, "device-1", "token:"+ann.Email)
	assert.Len(t, byCategory(third.Notifications().List(), domain.CategorySuccess), 2)
}

func TestSession_SourceFollowsIdentity(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, "device-1", "")
	ctx := context.Background()

	_, err := s.AddToWatchlist(ctx, movie(1))
	require.NoError(t, err)

	_, err = s.Auth().SignInWithCredentials(ctx, ann.Email, "pw")
	require.NoError(t, err)
	assert.Equal(t, watchlist.KindRemote, s.Watchlist().Kind())
	assert.Empty(t, s.Watchlist().List(ctx))

	_, err = s.AddToWatchlist(ctx, movie(2))
	require.NoError(t, err)
	remote, err := f.remote.List(ctx, ann.UID)
	require.NoError(t, err)
	require.Len(t, remote, 1)
	assert.Equal(t, 2, remote[0].ID)

	s.Auth().SignOut()
	assert.Equal(t, watchlist.KindLocal, s.Watchlist().Kind())
	assert.True(t, s.Watchlist().Contains(ctx, 1))
	assert.False(t, s.Watchlist().Contains(ctx, 2))
}

func TestSession_RemoteWriteFailsClosed(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, "device-1", "token:"+ann.Email)
	ctx := context.Background()
	before := len(s.Notifications().List())

	f.remote.SetAvailable(false)
	_, err := s.AddToWatchlist(ctx, movie(1))
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	assert.Len(t, s.Notifications().List(), before)

	local, _ := watchlist.NewLocal(f.devices.Device("device-1"), zap.NewNop()).List(ctx, "")
	assert.Empty(t, local)
}

func TestSession_NoRemoteConfigured(t *testing.T) {
	f := newFixture(t)
	f.cfg.Remote = nil
	s := f.session(t, "device-1", "token:"+ann.Email)

	_, err := s.AddToWatchlist(context.Background(), movie(1))
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	assert.False(t, s.Watchlist().Contains(context.Background(), 1))
}

func TestSession_GuestPromptScheduledAndCancelled(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, "device-1", "")

	f.clock.Advance(3 * time.Second)
	prompts := byCategory(s.Notifications().List(), domain.CategoryInfo)
	require.Len(t, prompts, 1)
	assert.Equal(t, "/login", prompts[0].Action)

	f2 := newFixture(t)
	s2 := f2.session(t, "device-2", "")
	_, err := s2.Auth().SignInWithCredentials(context.Background(), ann.Email, "pw")
	require.NoError(t, err)
	f2.clock.Advance(time.Minute)
	assert.Empty(t, byCategory(s2.Notifications().List(), domain.CategoryInfo))
}

func TestSession_CloseCancelsTimers(t *testing.T) {
	f := newFixture(t)
	f.cfg.Random = func() float64 { return 0 }
	s := f.session(t, "device-1", "")
	assert.Equal(t, 2, f.clock.Pending())

	s.Close()
	s.Close()
	f.clock.Advance(time.Hour)

	fresh := notify.NewStore(context.Background(), f.devices.Device("device-1"), zap.NewNop())
	defer fresh.Close()
	assert.Empty(t, fresh.List())
}

func TestSession_CommunityHintRolledOnce(t *testing.T) {
	f := newFixture(t)
	f.cfg.Random = func() float64 { return 0.1 }
	s := f.session(t, "device-1", "")

	_, err := s.Auth().SignInWithCredentials(context.Background(), ann.Email, "pw")
	require.NoError(t, err)
	f.clock.Advance(10 * time.Second)

	hints := 0
	for _, n := range s.Notifications().List() {
		if n.Action == "/community" {
			hints++
		}
	}
	assert.Equal(t, 1, hints)
}

func TestSession_UnsubscribeStopsDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	calls := 0
	dispose := f.remote.Subscribe(ann.UID, func([]domain.WatchlistItem) { calls++ }, nil)
	dispose()
	after := calls
	require.NoError(t, f.remote.Add(ctx, ann.UID, movie(1)))
	assert.Equal(t, after, calls)

	s := f.session(t, "device-1", "token:"+ann.Email)
	var events []Event
	stop := s.Subscribe(func(e Event) { events = append(events, e) })
	stop()
	stop()
	_, err := s.AddToWatchlist(ctx, movie(2))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSession_LiveEvents(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, "device-1", "")
	ctx := context.Background()

	var types []EventType
	dispose := s.Subscribe(func(e Event) { types = append(types, e.Type) })
	defer dispose()

	_, err := s.Auth().SignInWithCredentials(ctx, ann.Email, "pw")
	require.NoError(t, err)
	assert.Contains(t, types, EventAuth)
	assert.Contains(t, types, EventWatchlist)
	assert.Contains(t, types, EventNotifications)
}

func TestSession_CrossSessionNotifications(t *testing.T) {
	f := newFixture(t)
	a := f.session(t, "device-1", "")
	b := f.session(t, "device-1", "")

	_, err := a.AddToWatchlist(context.Background(), movie(7))
	require.NoError(t, err)

	assert.Equal(t, a.Notifications().List(), b.Notifications().List())
	assert.True(t, b.Watchlist().Contains(context.Background(), 7))
}

func TestSession_Recents(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, "device-1", "")
	ctx := context.Background()

	_, ok := s.LastViewed(ctx)
	assert.False(t, ok)

	s.ViewItem(ctx, domain.RecentItem{ID: 1, Title: "Heat"})
	s.ViewItem(ctx, domain.RecentItem{ID: 2, Title: "Ronin"})
	s.ViewItem(ctx, domain.RecentItem{ID: 1, Title: "Heat"})

	list := s.RecentlyViewed(ctx)
	require.Len(t, list, 2)
	last, ok := s.LastViewed(ctx)
	require.True(t, ok)
	assert.Equal(t, 1, last.ID)
}

func TestManager_Lifecycle(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.devices, f.authn, f.cfg, 30*time.Minute, zap.NewNop())
	defer m.Close()
	ctx := context.Background()

	_, err := m.Create(ctx, "not-a-uuid", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	device := uuid.NewString()
	s, err := m.Create(ctx, device, "token:"+ann.Email)
	require.NoError(t, err)
	assert.Equal(t, ann.UID, s.Auth().Current().UID)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	idle, err := m.Create(ctx, device, "")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	f.clock.Advance(20 * time.Minute)
	_, err = m.Get(s.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, m.Reap(f.clock.Now().Add(15*time.Minute)))
	_, err = m.Get(idle.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, m.Destroy(s.ID))
	assert.ErrorIs(t, m.Destroy(s.ID), domain.ErrSessionNotFound)
	assert.Zero(t, m.Len())
}
