package watchlist

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/observe"
)

// MemoryRemote is an in-process stand-in for the remote document store,
// shared by every session of the process. It is used in development and
// tests; SetAvailable(false) simulates an unreachable store.
type MemoryRemote struct {
	mu    sync.RWMutex
	users map[string]map[int]domain.WatchlistItem
	feeds map[string]*observe.Registry[[]domain.WatchlistItem]

	unavailable atomic.Bool
}

// NewMemoryRemote returns an empty store.
func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{
		users: make(map[string]map[int]domain.WatchlistItem),
		feeds: make(map[string]*observe.Registry[[]domain.WatchlistItem]),
	}
}

// SetAvailable toggles simulated reachability.
func (m *MemoryRemote) SetAvailable(ok bool) {
	m.unavailable.Store(!ok)
}

func (m *MemoryRemote) Kind() Kind { return KindRemote }

func (m *MemoryRemote) check(uid string) error {
	if uid == "" {
		return domain.ErrAuthRequired
	}
	if m.unavailable.Load() {
		return domain.ErrRemoteUnavailable
	}
	return nil
}

func (m *MemoryRemote) feed(uid string) *observe.Registry[[]domain.WatchlistItem] {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.feeds[uid]
	if !ok {
		f = observe.NewRegistry[[]domain.WatchlistItem]()
		m.feeds[uid] = f
	}
	return f
}

func (m *MemoryRemote) snapshot(uid string) []domain.WatchlistItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]domain.WatchlistItem, 0, len(m.users[uid]))
	for _, it := range m.users[uid] {
		items = append(items, it)
	}
	sortNewestFirst(items)
	return items
}

func (m *MemoryRemote) Add(_ context.Context, uid string, item domain.WatchlistItem) error {
	if err := m.check(uid); err != nil {
		return err
	}
	m.mu.Lock()
	if m.users[uid] == nil {
		m.users[uid] = make(map[int]domain.WatchlistItem)
	}
	m.users[uid][item.ID] = item
	m.mu.Unlock()

	m.feed(uid).Publish(m.snapshot(uid))
	return nil
}

func (m *MemoryRemote) Remove(_ context.Context, uid string, id int) error {
	if err := m.check(uid); err != nil {
		return err
	}
	m.mu.Lock()
	_, existed := m.users[uid][id]
	delete(m.users[uid], id)
	m.mu.Unlock()

	if existed {
		m.feed(uid).Publish(m.snapshot(uid))
	}
	return nil
}

func (m *MemoryRemote) Contains(_ context.Context, uid string, id int) (bool, error) {
	if err := m.check(uid); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[uid][id]
	return ok, nil
}

func (m *MemoryRemote) List(_ context.Context, uid string) ([]domain.WatchlistItem, error) {
	if err := m.check(uid); err != nil {
		return nil, err
	}
	return m.snapshot(uid), nil
}

func (m *MemoryRemote) Subscribe(uid string, onUpdate func([]domain.WatchlistItem), onError func(error)) observe.Disposer {
	if err := m.check(uid); err != nil {
		if onError != nil {
			onError(err)
		}
		return observe.Noop
	}
	deliver, stop := observe.Guard(onUpdate)
	unsubscribe := m.feed(uid).Subscribe(deliver)
	deliver(m.snapshot(uid))
	return func() {
		stop()
		unsubscribe()
	}
}
