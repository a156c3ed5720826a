package watchlist

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/metrics"
	"github.com/reelsync/backend/internal/observe"
)

// Store is the watchlist of one app session. It forwards to the attached
// Source and keeps the last delivered snapshot as a non-authoritative cache
// for read paths.
type Store struct {
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	source      Source
	uid         string
	generation  uint64
	cache       []domain.WatchlistItem
	unsubscribe observe.Disposer
	closed      bool

	updates *observe.Registry[[]domain.WatchlistItem]
	errs    *observe.Registry[error]
}

// NewStore returns a detached store. now stamps AddedAt on new items.
func NewStore(logger *zap.Logger, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		logger:  logger,
		now:     now,
		updates: observe.NewRegistry[[]domain.WatchlistItem](),
		errs:    observe.NewRegistry[error](),
	}
}

// Attach points the store at source for uid and re-subscribes to its live
// feed. The previous subscription is disposed first.
func (s *Store) Attach(source Source, uid string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prev := s.unsubscribe
	s.generation++
	gen := s.generation
	s.source = source
	s.uid = uid
	s.cache = nil
	s.unsubscribe = nil
	s.mu.Unlock()

	if prev != nil {
		prev()
	}
	if source == nil {
		return
	}

	onUpdate := func(items []domain.WatchlistItem) {
		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			return
		}
		s.cache = slices.Clone(items)
		s.mu.Unlock()
		s.updates.Publish(items)
	}
	onError := func(err error) {
		s.mu.Lock()
		current := s.generation == gen
		s.mu.Unlock()
		if current {
			s.logger.Warn("watchlist feed error", zap.String("source", string(source.Kind())), zap.Error(err))
			s.errs.Publish(err)
		}
	}

	dispose := source.Subscribe(uid, onUpdate, onError)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		dispose()
		return
	}
	s.unsubscribe = dispose
	s.mu.Unlock()
}

// Detach drops the current source and its subscription.
func (s *Store) Detach() {
	s.Attach(nil, "")
}

// Close detaches the store for good; later Attach calls are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	prev := s.unsubscribe
	s.generation++
	s.source = nil
	s.uid = ""
	s.unsubscribe = nil
	s.mu.Unlock()

	if prev != nil {
		prev()
	}
}

func (s *Store) current() (Source, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source, s.uid
}

func (s *Store) cached() []domain.WatchlistItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.cache)
}

// Kind reports the kind of the attached source, or "" when detached.
func (s *Store) Kind() Kind {
	src, _ := s.current()
	if src == nil {
		return ""
	}
	return src.Kind()
}

// Add stamps AddedAt and writes the item. Errors are returned unchanged;
// nothing is written elsewhere on failure.
func (s *Store) Add(ctx context.Context, item domain.WatchlistItem) (domain.WatchlistItem, error) {
	src, uid := s.current()
	if src == nil {
		return item, domain.ErrAuthRequired
	}
	item.AddedAt = s.now().UTC()

	err := src.Add(ctx, uid, item)
	metrics.RecordWatchlistOp(string(src.Kind()), "add", err)
	if err != nil {
		s.logger.Error("watchlist add failed", zap.Int("item_id", item.ID), zap.Error(err))
		return item, err
	}
	return item, nil
}

// Remove deletes an item; absent items are not an error.
func (s *Store) Remove(ctx context.Context, id int) error {
	src, uid := s.current()
	if src == nil {
		return domain.ErrAuthRequired
	}

	err := src.Remove(ctx, uid, id)
	metrics.RecordWatchlistOp(string(src.Kind()), "remove", err)
	if err != nil {
		s.logger.Error("watchlist remove failed", zap.Int("item_id", id), zap.Error(err))
		return err
	}
	return nil
}

// Contains never fails: on error it answers from the cached snapshot, and
// without one it reports false.
func (s *Store) Contains(ctx context.Context, id int) bool {
	src, uid := s.current()
	if src == nil {
		return false
	}
	ok, err := src.Contains(ctx, uid, id)
	if err != nil {
		s.logger.Warn("watchlist lookup failed, using cache", zap.Int("item_id", id), zap.Error(err))
		return containsID(s.cached(), id)
	}
	return ok
}

// List returns the collection newest first, falling back to the cached
// snapshot when the source cannot be read.
func (s *Store) List(ctx context.Context) []domain.WatchlistItem {
	items, err := s.read(ctx)
	if err != nil {
		return s.cached()
	}
	return items
}

// Count returns the authoritative size of the active collection. When the
// source cannot be read it falls back to the cached snapshot's length.
func (s *Store) Count(ctx context.Context) int {
	items, err := s.read(ctx)
	if err != nil {
		return len(s.cached())
	}
	return len(items)
}

func (s *Store) read(ctx context.Context) ([]domain.WatchlistItem, error) {
	src, uid := s.current()
	if src == nil {
		return nil, domain.ErrAuthRequired
	}
	items, err := src.List(ctx, uid)
	if err != nil {
		s.logger.Warn("watchlist list failed, using cache", zap.Error(err))
		return nil, err
	}
	return items, nil
}

// Subscribe registers fn for every snapshot delivered by the attached
// source, across re-attachments.
func (s *Store) Subscribe(fn func([]domain.WatchlistItem)) observe.Disposer {
	return s.updates.Subscribe(fn)
}

// OnError registers fn for live feed failures.
func (s *Store) OnError(fn func(error)) observe.Disposer {
	return s.errs.Subscribe(fn)
}
