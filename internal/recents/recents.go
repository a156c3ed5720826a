// Package recents tracks recently viewed catalog items, remotely for signed
// in users and in device storage otherwise.
package recents

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/kv"
)

const (
	// MaxRecents bounds both the remote query and the local list.
	MaxRecents = 20

	localKey = "recent_views"
)

// Remote stores recents per user.
type Remote interface {
	Put(ctx context.Context, uid string, item domain.RecentItem) error
	List(ctx context.Context, uid string, limit int) ([]domain.RecentItem, error)
}

// Recents records views for one app session. Remote failures fall back to
// the device list.
type Recents struct {
	remote Remote
	local  kv.Store
	now    func() time.Time
	logger *zap.Logger

	mu sync.Mutex
}

// New returns a Recents. remote may be nil.
func New(remote Remote, local kv.Store, logger *zap.Logger) *Recents {
	return &Recents{remote: remote, local: local, now: time.Now, logger: logger}
}

// Add records a view of item, stamping ViewedAt.
func (r *Recents) Add(ctx context.Context, uid string, item domain.RecentItem) {
	item.ViewedAt = r.now().UTC()

	if uid != "" && r.remote != nil {
		err := r.remote.Put(ctx, uid, item)
		if err == nil {
			return
		}
		r.logger.Warn("failed to save recent remotely, using device storage", zap.Error(err))
	}
	r.addLocal(ctx, item)
}

// List returns the recents newest first.
func (r *Recents) List(ctx context.Context, uid string) []domain.RecentItem {
	if uid != "" && r.remote != nil {
		items, err := r.remote.List(ctx, uid, MaxRecents)
		if err == nil {
			return items
		}
		r.logger.Warn("failed to fetch recents remotely, using device storage", zap.Error(err))
	}
	return r.loadLocal(ctx)
}

// LastViewed returns the most recent view.
func (r *Recents) LastViewed(ctx context.Context, uid string) (domain.RecentItem, bool) {
	items := r.List(ctx, uid)
	if len(items) == 0 {
		return domain.RecentItem{}, false
	}
	return items[0], true
}

func (r *Recents) loadLocal(ctx context.Context) []domain.RecentItem {
	return kv.LoadJSON(ctx, r.local, localKey, []domain.RecentItem{}, r.logger)
}

func (r *Recents) addLocal(ctx context.Context, item domain.RecentItem) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := kv.ReadJSON(ctx, r.local, localKey, []domain.RecentItem{}, r.logger)
	if err != nil {
		// Rewriting from an empty list would drop the stored history
		r.logger.Error("failed to read device recents, view not recorded", zap.Error(err))
		return
	}
	items = slices.DeleteFunc(items, func(it domain.RecentItem) bool { return it.ID == item.ID })
	items = append([]domain.RecentItem{item}, items...)
	if len(items) > MaxRecents {
		items = items[:MaxRecents]
	}
	if err := kv.SetJSON(ctx, r.local, localKey, items); err != nil {
		r.logger.Error("failed to save recent", zap.Error(err))
	}
}

// FirestoreRemote stores recents at users/{uid}/recents/{itemId}.
type FirestoreRemote struct {
	client *firestore.Client
}

// NewFirestoreRemote wraps client.
func NewFirestoreRemote(client *firestore.Client) *FirestoreRemote {
	return &FirestoreRemote{client: client}
}

func (f *FirestoreRemote) col(uid string) (*firestore.CollectionRef, error) {
	if f.client == nil {
		return nil, domain.ErrRemoteUnavailable
	}
	return f.client.Collection("users").Doc(uid).Collection("recents"), nil
}

func (f *FirestoreRemote) Put(ctx context.Context, uid string, item domain.RecentItem) error {
	col, err := f.col(uid)
	if err != nil {
		return err
	}
	if _, err := col.Doc(strconv.Itoa(item.ID)).Set(ctx, item); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	return nil
}

func (f *FirestoreRemote) List(ctx context.Context, uid string, limit int) ([]domain.RecentItem, error) {
	col, err := f.col(uid)
	if err != nil {
		return nil, err
	}
	docs, err := col.OrderBy("viewedAt", firestore.Desc).Limit(limit).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	items := make([]domain.RecentItem, 0, len(docs))
	for _, doc := range docs {
		var item domain.RecentItem
		if err := doc.DataTo(&item); err != nil {
			continue
		}
		if id, err := strconv.Atoi(doc.Ref.ID); err == nil {
			item.ID = id
		}
		items = append(items, item)
	}
	return items, nil
}

// MemoryRemote keeps recents in process memory.
type MemoryRemote struct {
	mu    sync.Mutex
	users map[string][]domain.RecentItem
}

// NewMemoryRemote returns an empty store.
func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{users: make(map[string][]domain.RecentItem)}
}

func (m *MemoryRemote) Put(_ context.Context, uid string, item domain.RecentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := slices.DeleteFunc(m.users[uid], func(it domain.RecentItem) bool { return it.ID == item.ID })
	m.users[uid] = append([]domain.RecentItem{item}, items...)
	return nil
}

func (m *MemoryRemote) List(_ context.Context, uid string, limit int) ([]domain.RecentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := slices.Clone(m.users[uid])
	slices.SortStableFunc(items, func(a, b domain.RecentItem) int { return b.ViewedAt.Compare(a.ViewedAt) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
