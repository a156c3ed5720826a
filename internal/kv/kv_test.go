package kv

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/domain"
)

func newTestBadger(t *testing.T) *BadgerBackend {
	t.Helper()
	b, err := OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBadgerStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestBadger(t).Device("dev-1")

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", `"v"`))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `"v"`, got)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStore_DevicesAreIsolated(t *testing.T) {
	ctx := context.Background()
	b := newTestBadger(t)

	require.NoError(t, b.Device("a").Set(ctx, "k", "1"))
	_, err := b.Device("b").Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStore_ChangesReachOtherStoresOfSameDevice(t *testing.T) {
	ctx := context.Background()
	b := newTestBadger(t)
	first := b.Device("dev")
	second := b.Device("dev")
	other := b.Device("other")

	var seen, otherSeen []Change
	dispose := second.Watch(func(c Change) { seen = append(seen, c) })
	defer dispose()
	other.Watch(func(c Change) { otherSeen = append(otherSeen, c) })

	require.NoError(t, first.Set(ctx, "watchlist", "[]"))
	require.NoError(t, first.Delete(ctx, "watchlist"))

	assert.Equal(t, []Change{{Key: "watchlist"}, {Key: "watchlist", Deleted: true}}, seen)
	assert.Empty(t, otherSeen)
}

func TestBadgerStore_FeedsAreReleasedWithLastWatcher(t *testing.T) {
	ctx := context.Background()
	b := newTestBadger(t)

	for i := 0; i < 50; i++ {
		dev := b.Device(fmt.Sprintf("dev-%d", i))
		stop := dev.Watch(func(Change) {})
		require.NoError(t, dev.Set(ctx, "k", "v"))
		stop()
		stop()
	}
	assert.Zero(t, b.feedCount())

	// Stores opened before the feed was dropped still reach new watchers
	writer := b.Device("dev")
	first := writer.Watch(func(Change) {})
	first()
	require.Zero(t, b.feedCount())

	var seen []Change
	stop := b.Device("dev").Watch(func(c Change) { seen = append(seen, c) })
	require.NoError(t, writer.Set(ctx, "watchlist", "[]"))
	assert.Equal(t, []Change{{Key: "watchlist"}}, seen)
	assert.Equal(t, 1, b.feedCount())

	stop()
	assert.Zero(t, b.feedCount())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var changes []Change
	s.Watch(func(c Change) { changes = append(changes, c) })

	require.NoError(t, s.Set(ctx, "a", "1"))
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
	assert.Len(t, changes, 2)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	logger := zap.NewNop()

	type payload struct {
		Name string `json:"name"`
	}

	require.NoError(t, SetJSON(ctx, s, "p", payload{Name: "x"}))
	var got payload
	require.NoError(t, GetJSON(ctx, s, "p", &got))
	assert.Equal(t, "x", got.Name)

	require.NoError(t, s.Set(ctx, "bad", "{not json"))
	err := GetJSON(ctx, s, "bad", &got)
	assert.True(t, errors.Is(err, domain.ErrParseFailure))

	def := []payload{}
	loaded := LoadJSON(ctx, s, "bad", def, logger)
	assert.Empty(t, loaded)
	_, err = s.Get(ctx, "bad")
	assert.ErrorIs(t, err, ErrNotFound, "corrupt value is discarded")

	assert.Equal(t, 7, LoadJSON(ctx, s, "missing", 7, logger))
}

type failingGets struct {
	Store
}

func (failingGets) Get(context.Context, string) (string, error) {
	return "", errors.New("disk unavailable")
}

func TestReadJSON_ReturnsReadErrors(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	inner := NewMemoryStore()
	require.NoError(t, SetJSON(ctx, inner, "list", []int{1, 2, 3}))

	_, err := ReadJSON(ctx, failingGets{inner}, "list", []int{}, logger)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	got, err := ReadJSON(ctx, inner, "missing", []int{9}, logger)
	require.NoError(t, err)
	assert.Equal(t, []int{9}, got)

	require.NoError(t, inner.Set(ctx, "bad", "{"))
	got, err = ReadJSON(ctx, inner, "bad", []int{}, logger)
	require.NoError(t, err)
	assert.Empty(t, got)

	// The value that could not be read is left untouched
	raw, err := inner.Get(ctx, "list")
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3]", raw)
}
