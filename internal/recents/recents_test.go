package recents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/kv"
	"github.com/reelsync/backend/internal/testutil"
)

type failingRemote struct{}

func (failingRemote) Put(context.Context, string, domain.RecentItem) error {
	return errors.New("offline")
}

func (failingRemote) List(context.Context, string, int) ([]domain.RecentItem, error) {
	return nil, errors.New("offline")
}

func newRecents(remote Remote) *Recents {
	r := New(remote, kv.NewMemoryStore(), zap.NewNop())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		base = base.Add(time.Minute)
		return base
	}
	return r
}

func TestRecents_GuestUsesDeviceStorage(t *testing.T) {
	ctx := context.Background()
	r := newRecents(NewMemoryRemote())

	_, ok := r.LastViewed(ctx, "")
	assert.False(t, ok)

	r.Add(ctx, "", domain.RecentItem{ID: 1, Title: "A"})
	r.Add(ctx, "", domain.RecentItem{ID: 2, Title: "B"})
	r.Add(ctx, "", domain.RecentItem{ID: 1, Title: "A"})

	items := r.List(ctx, "")
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].ID)
	assert.Equal(t, 2, items[1].ID)

	last, ok := r.LastViewed(ctx, "")
	require.True(t, ok)
	assert.Equal(t, "A", last.Title)
}

func TestRecents_LocalListIsCapped(t *testing.T) {
	ctx := context.Background()
	r := newRecents(nil)

	for i := 0; i < MaxRecents+5; i++ {
		r.Add(ctx, "", domain.RecentItem{ID: i})
	}
	items := r.List(ctx, "")
	require.Len(t, items, MaxRecents)
	assert.Equal(t, MaxRecents+4, items[0].ID)
}

func TestRecents_SignedInUsesRemote(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryRemote()
	r := newRecents(remote)

	r.Add(ctx, "u1", domain.RecentItem{ID: 3})
	r.Add(ctx, "u1", domain.RecentItem{ID: 4})

	assert.Empty(t, r.List(ctx, ""), "device list untouched")
	items := r.List(ctx, "u1")
	require.Len(t, items, 2)
	assert.Equal(t, 4, items[0].ID)
}

func TestRecents_RemoteFailureFallsBackToDevice(t *testing.T) {
	ctx := context.Background()
	r := newRecents(failingRemote{})

	r.Add(ctx, "u1", domain.RecentItem{ID: 9})

	items := r.List(ctx, "u1")
	require.Len(t, items, 1)
	assert.Equal(t, 9, items[0].ID)
}

func TestRecents_ReadErrorKeepsStoredHistory(t *testing.T) {
	ctx := context.Background()
	storage := testutil.NewFlakyStore(kv.NewMemoryStore())
	r := New(nil, storage, zap.NewNop())

	for i := 1; i <= 3; i++ {
		r.Add(ctx, "", domain.RecentItem{ID: i, Title: "t"})
	}

	storage.FailGets.Store(1)
	r.Add(ctx, "", domain.RecentItem{ID: 4, Title: "t"})

	items := r.List(ctx, "")
	require.Len(t, items, 3)
	assert.Equal(t, 3, items[0].ID)
}
