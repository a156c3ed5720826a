package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/reelsync/backend/internal/observe"
)

// Key prefix for device namespaces
const deviceKeyPrefix = "device:"

// BadgerBackend holds the durable per-device storage. Every device gets its
// own key namespace; stores opened for the same device share change feeds,
// so a write from one app session refreshes the others. A feed exists only
// while the device has watchers.
type BadgerBackend struct {
	db *badger.DB

	mu    sync.Mutex
	feeds map[string]*observe.Registry[Change]
}

// OpenBadger opens (or creates) a BadgerDB at path. An empty path opens an
// in-memory database.
func OpenBadger(path string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return NewBadgerBackend(db), nil
}

// NewBadgerBackend wraps an open BadgerDB.
func NewBadgerBackend(db *badger.DB) *BadgerBackend {
	return &BadgerBackend{
		db:    db,
		feeds: make(map[string]*observe.Registry[Change]),
	}
}

// Close closes the underlying database.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

// Device returns the store for one device namespace.
func (b *BadgerBackend) Device(deviceID string) Store {
	return &badgerStore{backend: b, db: b.db, prefix: deviceKeyPrefix + deviceID + ":"}
}

// watch subscribes fn to the feed for prefix, creating it on first use.
// The feed is dropped again once its last watcher is gone.
func (b *BadgerBackend) watch(prefix string, fn func(Change)) observe.Disposer {
	b.mu.Lock()
	feed, ok := b.feeds[prefix]
	if !ok {
		feed = observe.NewRegistry[Change]()
		b.feeds[prefix] = feed
	}
	// Subscribing under b.mu keeps a concurrent prune from orphaning feed
	dispose := feed.Subscribe(fn)
	b.mu.Unlock()

	return func() {
		dispose()
		b.mu.Lock()
		if feed.Len() == 0 && b.feeds[prefix] == feed {
			delete(b.feeds, prefix)
		}
		b.mu.Unlock()
	}
}

func (b *BadgerBackend) publish(prefix string, c Change) {
	b.mu.Lock()
	feed := b.feeds[prefix]
	b.mu.Unlock()
	if feed != nil {
		feed.Publish(c)
	}
}

func (b *BadgerBackend) feedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.feeds)
}

type badgerStore struct {
	backend *BadgerBackend
	db      *badger.DB
	prefix  string
}

func (s *badgerStore) key(k string) []byte {
	return []byte(s.prefix + k)
}

func (s *badgerStore) Get(_ context.Context, key string) (string, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %q: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *badgerStore) Set(_ context.Context, key, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	s.backend.publish(s.prefix, Change{Key: key})
	return nil
}

func (s *badgerStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key(key))
	})
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	s.backend.publish(s.prefix, Change{Key: key, Deleted: true})
	return nil
}

func (s *badgerStore) Watch(fn func(Change)) observe.Disposer {
	return s.backend.watch(s.prefix, fn)
}
