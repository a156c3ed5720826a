// Package kv is the local key-value storage used for per-device and
// per-session state. Values are JSON-encoded strings.
package kv

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/observe"
)

var ErrNotFound = errors.New("kv: key not found")

// Change signals that a key was written or removed.
type Change struct {
	Key     string
	Deleted bool
}

// Store is a string key-value store with change notifications.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Watch registers fn for every change made through any Store sharing
	// the same namespace.
	Watch(fn func(Change)) observe.Disposer
}

// GetJSON decodes the value stored under key into dst. A value that does not
// decode yields an error wrapping domain.ErrParseFailure.
func GetJSON(ctx context.Context, s Store, key string, dst any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("%w: key %q: %v", domain.ErrParseFailure, key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}

// ReadJSON returns the decoded value under key, or def when the key is
// missing or its value is corrupt. Corrupt values are logged and discarded.
// Any other read error is returned so write paths do not overwrite data they
// could not read.
func ReadJSON[T any](ctx context.Context, s Store, key string, def T, logger *zap.Logger) (T, error) {
	var v T
	err := GetJSON(ctx, s, key, &v)
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, ErrNotFound):
		return def, nil
	case errors.Is(err, domain.ErrParseFailure):
		logger.Warn("discarding corrupt local data", zap.String("key", key), zap.Error(err))
		_ = s.Delete(ctx, key)
		return def, nil
	default:
		return def, fmt.Errorf("read %q: %w", key, err)
	}
}

// LoadJSON is ReadJSON for read paths that fail open: a read error is logged
// and def returned.
func LoadJSON[T any](ctx context.Context, s Store, key string, def T, logger *zap.Logger) T {
	v, err := ReadJSON(ctx, s, key, def, logger)
	if err != nil {
		logger.Warn("local storage read failed", zap.String("key", key), zap.Error(err))
		return def
	}
	return v
}
