package watchlist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/kv"
	"github.com/reelsync/backend/internal/observe"
	"github.com/reelsync/backend/internal/testutil"
)

type tick struct{ t time.Time }

func (c *tick) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore() *Store {
	c := &tick{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewStore(zap.NewNop(), c.now)
}

func item(id int, title string) domain.WatchlistItem {
	return domain.WatchlistItem{ID: id, Title: title, PosterURL: "https://img.example/" + title}
}

func ids(items []domain.WatchlistItem) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestStore_ContainsReflectsNetAdds(t *testing.T) {
	sources := map[string]func() (Source, string){
		"local":  func() (Source, string) { return NewLocal(kv.NewMemoryStore(), zap.NewNop()), "" },
		"remote": func() (Source, string) { return NewMemoryRemote(), "u1" },
	}

	for name, build := range sources {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			src, uid := build()
			s := newTestStore()
			s.Attach(src, uid)
			defer s.Detach()

			_, err := s.Add(ctx, item(1, "Inception"))
			require.NoError(t, err)
			_, err = s.Add(ctx, item(1, "Inception"))
			require.NoError(t, err)
			_, err = s.Add(ctx, item(2, "Heat"))
			require.NoError(t, err)

			require.NoError(t, s.Remove(ctx, 1))
			require.NoError(t, s.Remove(ctx, 1))
			require.NoError(t, s.Remove(ctx, 99))

			assert.False(t, s.Contains(ctx, 1))
			assert.True(t, s.Contains(ctx, 2))
			assert.Equal(t, 1, s.Count(ctx))
		})
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	s.Attach(NewLocal(kv.NewMemoryStore(), zap.NewNop()), "")

	for i := 1; i <= 3; i++ {
		_, err := s.Add(ctx, item(i, "t"))
		require.NoError(t, err)
	}
	// Re-adding overwrites and moves to the front.
	_, err := s.Add(ctx, item(1, "t"))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3, 2}, ids(s.List(ctx)))
}

func TestStore_DetachedRequiresAuth(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	_, err := s.Add(ctx, item(1, "x"))
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	assert.ErrorIs(t, s.Remove(ctx, 1), domain.ErrAuthRequired)
	assert.False(t, s.Contains(ctx, 1))
	assert.Empty(t, s.List(ctx))
	assert.Equal(t, Kind(""), s.Kind())
}

func TestMemoryRemote_RejectsMissingIdentity(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRemote()

	assert.ErrorIs(t, r.Add(ctx, "", item(1, "x")), domain.ErrAuthRequired)
	_, err := r.List(ctx, "")
	assert.ErrorIs(t, err, domain.ErrAuthRequired)

	var gotErr error
	dispose := r.Subscribe("", func([]domain.WatchlistItem) {}, func(err error) { gotErr = err })
	dispose()
	assert.ErrorIs(t, gotErr, domain.ErrAuthRequired)
}

func TestStore_RemoteFailureFailsWritesAndReadsOpen(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryRemote()
	s := newTestStore()
	s.Attach(remote, "u1")
	defer s.Detach()

	_, err := s.Add(ctx, item(7, "Alien"))
	require.NoError(t, err)

	remote.SetAvailable(false)

	_, err = s.Add(ctx, item(8, "Aliens"))
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	assert.ErrorIs(t, s.Remove(ctx, 7), domain.ErrRemoteUnavailable)

	// Reads answer from the last snapshot.
	assert.True(t, s.Contains(ctx, 7))
	assert.False(t, s.Contains(ctx, 8))
	assert.Equal(t, []int{7}, ids(s.List(ctx)))
	assert.Equal(t, 1, s.Count(ctx))

	remote.SetAvailable(true)
	assert.False(t, s.Contains(ctx, 8), "failed write left no trace")
}

func TestMemoryRemote_NoDeliveryAfterUnsubscribe(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRemote()

	calls := 0
	dispose := r.Subscribe("u1", func([]domain.WatchlistItem) { calls++ }, nil)
	dispose()
	after := calls

	require.NoError(t, r.Add(ctx, "u1", item(1, "x")))
	require.NoError(t, r.Remove(ctx, "u1", 1))

	assert.Equal(t, after, calls)
	dispose()
}

func TestMemoryRemote_FeedsOtherClients(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRemote()

	var seen [][]int
	dispose := r.Subscribe("u1", func(items []domain.WatchlistItem) { seen = append(seen, ids(items)) }, nil)
	defer dispose()
	otherUser := 0
	defer r.Subscribe("u2", func([]domain.WatchlistItem) { otherUser++ }, nil)()

	require.NoError(t, r.Add(ctx, "u1", domain.WatchlistItem{ID: 1, AddedAt: time.Unix(10, 0)}))
	require.NoError(t, r.Add(ctx, "u1", domain.WatchlistItem{ID: 2, AddedAt: time.Unix(20, 0)}))

	assert.Equal(t, [][]int{{}, {1}, {2, 1}}, seen)
	assert.Equal(t, 1, otherUser, "only the initial snapshot")
}

func TestStore_ReattachSwitchesFeeds(t *testing.T) {
	ctx := context.Background()
	local := NewLocal(kv.NewMemoryStore(), zap.NewNop())
	remote := NewMemoryRemote()
	s := newTestStore()

	var snapshots [][]int
	defer s.Subscribe(func(items []domain.WatchlistItem) { snapshots = append(snapshots, ids(items)) })()

	s.Attach(local, "")
	_, err := s.Add(ctx, item(1, "guest pick"))
	require.NoError(t, err)

	s.Attach(remote, "u1")
	assert.Equal(t, KindRemote, s.Kind())
	assert.False(t, s.Contains(ctx, 1), "guest list stays local")

	// Writes to the old source no longer reach this store.
	before := len(snapshots)
	require.NoError(t, local.Add(ctx, "", item(2, "other tab")))
	assert.Len(t, snapshots, before)

	_, err = s.Add(ctx, item(3, "synced"))
	require.NoError(t, err)
	assert.Equal(t, []int{3}, snapshots[len(snapshots)-1])
}

func TestLocal_FollowsOtherSessionsOfDevice(t *testing.T) {
	ctx := context.Background()
	backend, err := kv.OpenBadger("")
	require.NoError(t, err)
	defer backend.Close()

	tabA := NewLocal(backend.Device("dev"), zap.NewNop())
	tabB := NewLocal(backend.Device("dev"), zap.NewNop())

	var seen [][]int
	dispose := tabB.Subscribe("", func(items []domain.WatchlistItem) { seen = append(seen, ids(items)) }, nil)

	require.NoError(t, tabA.Add(ctx, "", item(5, "x")))
	dispose()
	require.NoError(t, tabA.Add(ctx, "", item(6, "y")))

	assert.Equal(t, [][]int{{}, {5}}, seen)
}

func TestLocal_CorruptDataResetsToEmpty(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemoryStore()
	require.NoError(t, storage.Set(ctx, localKey, "not json"))

	l := NewLocal(storage, zap.NewNop())
	items, err := l.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, l.Add(ctx, "", item(1, "x")))
	ok, err := l.Contains(ctx, "", 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocal_WriteFailsClosedOnReadError(t *testing.T) {
	ctx := context.Background()
	storage := testutil.NewFlakyStore(kv.NewMemoryStore())
	s := newTestStore()
	s.Attach(NewLocal(storage, zap.NewNop()), "")
	defer s.Detach()

	for i := 1; i <= 4; i++ {
		_, err := s.Add(ctx, item(i, "t"))
		require.NoError(t, err)
	}

	storage.FailGets.Store(1)
	_, err := s.Add(ctx, item(5, "t"))
	require.ErrorIs(t, err, testutil.ErrInjected)
	assert.Equal(t, []int{4, 3, 2, 1}, ids(s.List(ctx)))

	storage.FailGets.Store(1)
	require.ErrorIs(t, s.Remove(ctx, 1), testutil.ErrInjected)
	assert.True(t, s.Contains(ctx, 1))

	// Reads fall back to the last snapshot
	storage.FailGets.Store(1)
	assert.Len(t, s.List(ctx), 4)
}

type countingSource struct {
	Source
	open int
}

func (c *countingSource) Subscribe(uid string, onUpdate func([]domain.WatchlistItem), onError func(error)) observe.Disposer {
	c.open++
	dispose := c.Source.Subscribe(uid, onUpdate, onError)
	return func() {
		c.open--
		dispose()
	}
}

func TestStore_AttachAfterCloseIsIgnored(t *testing.T) {
	ctx := context.Background()
	remote := &countingSource{Source: NewMemoryRemote()}
	s := newTestStore()

	s.Attach(remote, "u1")
	require.Equal(t, 1, remote.open)

	s.Close()
	assert.Equal(t, 0, remote.open)

	s.Attach(remote, "u1")
	assert.Equal(t, 0, remote.open, "no subscription outlives Close")
	assert.Equal(t, Kind(""), s.Kind())

	_, err := s.Add(ctx, item(1, "Heat"))
	assert.ErrorIs(t, err, domain.ErrAuthRequired)

	s.Close()
}
