package watchlist

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/kv"
	"github.com/reelsync/backend/internal/observe"
)

const localKey = "watchlist"

// Local is the guest watchlist kept in the device's durable storage, keyed
// only by item id.
type Local struct {
	mu      sync.Mutex
	storage kv.Store
	logger  *zap.Logger
}

// NewLocal returns the local source backed by storage.
func NewLocal(storage kv.Store, logger *zap.Logger) *Local {
	return &Local{storage: storage, logger: logger}
}

func (l *Local) Kind() Kind { return KindLocal }

// load reads the stored list. A missing or corrupt list reads as empty;
// any other storage error is returned.
func (l *Local) load(ctx context.Context) ([]domain.WatchlistItem, error) {
	items, err := kv.ReadJSON(ctx, l.storage, localKey, []domain.WatchlistItem{}, l.logger)
	if err != nil {
		return nil, fmt.Errorf("guest watchlist: %w", err)
	}
	sortNewestFirst(items)
	return items, nil
}

func (l *Local) Add(ctx context.Context, _ string, item domain.WatchlistItem) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.load(ctx)
	if err != nil {
		return err
	}
	items = slices.DeleteFunc(items, func(it domain.WatchlistItem) bool { return it.ID == item.ID })
	items = append([]domain.WatchlistItem{item}, items...)
	sortNewestFirst(items)
	return kv.SetJSON(ctx, l.storage, localKey, items)
}

func (l *Local) Remove(ctx context.Context, _ string, id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.load(ctx)
	if err != nil {
		return err
	}
	if !containsID(items, id) {
		return nil
	}
	items = slices.DeleteFunc(items, func(it domain.WatchlistItem) bool { return it.ID == id })
	return kv.SetJSON(ctx, l.storage, localKey, items)
}

func (l *Local) Contains(ctx context.Context, _ string, id int) (bool, error) {
	items, err := l.load(ctx)
	if err != nil {
		return false, err
	}
	return containsID(items, id), nil
}

func (l *Local) List(ctx context.Context, _ string) ([]domain.WatchlistItem, error) {
	return l.load(ctx)
}

// Subscribe follows the device storage, so writes from other sessions of
// the same device are delivered too.
func (l *Local) Subscribe(_ string, onUpdate func([]domain.WatchlistItem), onError func(error)) observe.Disposer {
	if onError == nil {
		onError = func(error) {}
	}
	deliver, stop := observe.Guard(onUpdate)
	fail, stopErrors := observe.Guard(onError)
	refresh := func() {
		items, err := l.load(context.Background())
		if err != nil {
			fail(err)
			return
		}
		deliver(items)
	}
	unwatch := l.storage.Watch(func(c kv.Change) {
		if c.Key == localKey {
			refresh()
		}
	})
	refresh()

	return func() {
		stop()
		stopErrors()
		unwatch()
	}
}
