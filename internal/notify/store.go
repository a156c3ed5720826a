// Package notify holds the notification list shown in the bell menu and the
// timed, idempotent triggers that feed it.
package notify

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/kv"
	"github.com/reelsync/backend/internal/metrics"
	"github.com/reelsync/backend/internal/observe"
)

const (
	listKey = "smart_notify_list"

	// MaxNotifications caps the list; the oldest entries are evicted first.
	MaxNotifications = 10

	justNow = "Just now"
)

// Store is the ordered, most-recent-first notification list of one device.
// Every mutation is written through to durable storage.
type Store struct {
	mu    sync.Mutex
	items []domain.Notification
	// synced is false while the stored list could not be read; the
	// in-memory list is then not written back over it.
	synced bool

	// persistMu serialises writes so they reach storage in mutation order.
	persistMu sync.Mutex

	storage kv.Store
	feed    *observe.Registry[[]domain.Notification]
	watch   observe.Disposer
	newID   func() string
	logger  *zap.Logger
}

// NewStore loads any previously persisted list from storage. A corrupt list
// is discarded and the store starts empty.
func NewStore(ctx context.Context, storage kv.Store, logger *zap.Logger) *Store {
	s := &Store{
		storage: storage,
		feed:    observe.NewRegistry[[]domain.Notification](),
		newID:   uuid.NewString,
		logger:  logger,
	}
	if items, err := s.load(ctx); err != nil {
		logger.Error("failed to load notifications", zap.Error(err))
	} else {
		s.items, s.synced = items, true
	}
	s.watch = storage.Watch(func(c kv.Change) {
		if c.Key == listKey {
			s.reload(context.Background())
		}
	})
	return s
}

// Close stops following storage changes made by other sessions.
func (s *Store) Close() {
	s.watch()
}

// load reads the stored list. A missing or corrupt list reads as empty.
func (s *Store) load(ctx context.Context) ([]domain.Notification, error) {
	items, err := kv.ReadJSON(ctx, s.storage, listKey, []domain.Notification{}, s.logger)
	if err != nil {
		return nil, err
	}
	if len(items) > MaxNotifications {
		items = items[:MaxNotifications]
	}
	return items, nil
}

// reload refreshes the in-memory copy after another session wrote the list.
// A failed read keeps the current copy, which is re-read before the next
// mutation.
func (s *Store) reload(ctx context.Context) {
	fresh, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("failed to reload notifications", zap.Error(err))
		s.mu.Lock()
		s.synced = false
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.synced = true
	if slices.Equal(fresh, s.items) {
		s.mu.Unlock()
		return
	}
	s.items = fresh
	snapshot := slices.Clone(fresh)
	s.mu.Unlock()

	s.feed.Publish(snapshot)
}

// mutate applies fn under the lock, persists the result and notifies
// observers. fn reports whether anything changed. While the stored list is
// unreadable the change stays in memory only.
func (s *Store) mutate(ctx context.Context, fn func(items []domain.Notification) ([]domain.Notification, bool)) bool {
	s.mu.Lock()
	if !s.synced {
		if items, err := s.load(ctx); err == nil {
			s.items, s.synced = items, true
		}
	}
	next, changed := fn(s.items)
	if !changed {
		s.mu.Unlock()
		return false
	}
	s.items = next
	persist := s.synced
	snapshot := slices.Clone(next)
	s.persistMu.Lock()
	s.mu.Unlock()

	if !persist {
		s.logger.Error("notification storage unreadable, change not persisted")
	} else if err := kv.SetJSON(ctx, s.storage, listKey, snapshot); err != nil {
		s.logger.Error("failed to persist notifications", zap.Error(err))
	}
	s.persistMu.Unlock()

	s.feed.Publish(snapshot)
	return true
}

// Add prepends a new unread notification. It is a no-op when an unread
// notification with identical text already exists. Reports whether the
// entry was added.
func (s *Store) Add(ctx context.Context, entry domain.NotificationEntry) bool {
	n := domain.Notification{
		ID:          s.newID(),
		Text:        entry.Text,
		Time:        justNow,
		Category:    entry.Category,
		Action:      entry.Action,
		ActionLabel: entry.ActionLabel,
	}
	if !n.Category.Valid() {
		n.Category = domain.CategoryInfo
	}

	added := s.mutate(ctx, func(items []domain.Notification) ([]domain.Notification, bool) {
		for _, existing := range items {
			if !existing.Read && existing.Text == n.Text {
				return items, false
			}
		}
		next := make([]domain.Notification, 0, len(items)+1)
		next = append(next, n)
		next = append(next, items...)
		if len(next) > MaxNotifications {
			next = next[:MaxNotifications]
		}
		return next, true
	})

	if added {
		metrics.NotificationsCreated.WithLabelValues(string(n.Category)).Inc()
	} else {
		metrics.NotificationsDeduplicated.Inc()
	}
	return added
}

// MarkRead marks one notification as read. Unknown ids are ignored.
func (s *Store) MarkRead(ctx context.Context, id string) {
	s.mutate(ctx, func(items []domain.Notification) ([]domain.Notification, bool) {
		i := slices.IndexFunc(items, func(n domain.Notification) bool { return n.ID == id })
		if i < 0 || items[i].Read {
			return items, false
		}
		next := slices.Clone(items)
		next[i].Read = true
		return next, true
	})
}

// MarkAllRead marks every notification as read.
func (s *Store) MarkAllRead(ctx context.Context) {
	s.mutate(ctx, func(items []domain.Notification) ([]domain.Notification, bool) {
		next := slices.Clone(items)
		changed := false
		for i := range next {
			if !next[i].Read {
				next[i].Read = true
				changed = true
			}
		}
		return next, changed
	})
}

// Dismiss removes a notification regardless of its read state.
func (s *Store) Dismiss(ctx context.Context, id string) {
	s.mutate(ctx, func(items []domain.Notification) ([]domain.Notification, bool) {
		next := slices.DeleteFunc(slices.Clone(items), func(n domain.Notification) bool { return n.ID == id })
		return next, len(next) != len(items)
	})
}

// List returns a copy of the notifications, most recent first.
func (s *Store) List() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// UnreadCount is derived from the list on every call.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.items {
		if !n.Read {
			count++
		}
	}
	return count
}

// Subscribe registers fn for every change of the list.
func (s *Store) Subscribe(fn func([]domain.Notification)) observe.Disposer {
	return s.feed.Subscribe(fn)
}
