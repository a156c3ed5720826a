package testutil

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/reelsync/backend/internal/kv"
)

// ErrInjected is returned by FlakyStore reads while failures are armed.
var ErrInjected = errors.New("injected storage failure")

// FlakyStore wraps a kv.Store and fails the next FailGets reads with
// ErrInjected.
type FlakyStore struct {
	kv.Store
	FailGets atomic.Int32
}

func NewFlakyStore(inner kv.Store) *FlakyStore {
	return &FlakyStore{Store: inner}
}

func (f *FlakyStore) Get(ctx context.Context, key string) (string, error) {
	if f.FailGets.Load() > 0 {
		f.FailGets.Add(-1)
		return "", ErrInjected
	}
	return f.Store.Get(ctx, key)
}
