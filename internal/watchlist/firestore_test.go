package watchlist

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/domain"
)

func TestFirestoreRemote_Unconfigured(t *testing.T) {
	ctx := context.Background()
	r := NewFirestoreRemote(nil, zap.NewNop())

	assert.ErrorIs(t, r.Add(ctx, "u1", item(1, "x")), domain.ErrRemoteUnavailable)
	assert.ErrorIs(t, r.Add(ctx, "", item(1, "x")), domain.ErrAuthRequired)
	_, err := r.Contains(ctx, "u1", 1)
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)

	var subErr error
	r.Subscribe("u1", func([]domain.WatchlistItem) {}, func(err error) { subErr = err })()
	assert.ErrorIs(t, subErr, domain.ErrRemoteUnavailable)
}

// Runs against the Firestore emulator when FIRESTORE_EMULATOR_HOST is set.
func TestFirestoreRemote_Emulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "reelsync-test")
	require.NoError(t, err)
	defer client.Close()

	r := NewFirestoreRemote(client, zap.NewNop())
	uid := uuid.NewString()

	updates := make(chan []domain.WatchlistItem, 16)
	dispose := r.Subscribe(uid, func(items []domain.WatchlistItem) { updates <- items }, nil)
	defer dispose()

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, r.Add(ctx, uid, domain.WatchlistItem{ID: 1, Title: "A", AddedAt: now}))
	require.NoError(t, r.Add(ctx, uid, domain.WatchlistItem{ID: 2, Title: "B", AddedAt: now.Add(time.Second)}))

	ok, err := r.Contains(ctx, uid, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	items, err := r.List(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, ids(items))

	require.NoError(t, r.Remove(ctx, uid, 2))
	require.NoError(t, r.Remove(ctx, uid, 2))
	ok, err = r.Contains(ctx, uid, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Eventually(t, func() bool {
		for {
			select {
			case got := <-updates:
				if len(got) == 1 && got[0].ID == 1 {
					return true
				}
			default:
				return false
			}
		}
	}, 5*time.Second, 50*time.Millisecond)
}
