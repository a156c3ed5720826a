// Package watchlist keeps a user's saved items in either a remote document
// store or the device's local storage, and exposes a live feed of changes.
package watchlist

import (
	"context"
	"slices"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/observe"
)

// Kind tags the backing of a Source.
type Kind string

const (
	KindRemote Kind = "remote"
	KindLocal  Kind = "local"
)

// Source is a backing collection for the watchlist. Remote sources are
// scoped by uid and reject an empty one with domain.ErrAuthRequired; local
// sources ignore it.
type Source interface {
	Kind() Kind
	// Add inserts or overwrites the item keyed by its ID.
	Add(ctx context.Context, uid string, item domain.WatchlistItem) error
	// Remove deletes the item. Removing an absent item is not an error.
	Remove(ctx context.Context, uid string, id int) error
	Contains(ctx context.Context, uid string, id int) (bool, error)
	// List returns the items ordered by AddedAt, newest first.
	List(ctx context.Context, uid string) ([]domain.WatchlistItem, error)
	// Subscribe delivers the full ordered collection on every change,
	// starting with the current contents. No callback runs after the
	// returned Disposer has returned.
	Subscribe(uid string, onUpdate func([]domain.WatchlistItem), onError func(error)) observe.Disposer
}

func sortNewestFirst(items []domain.WatchlistItem) {
	slices.SortStableFunc(items, func(a, b domain.WatchlistItem) int {
		return b.AddedAt.Compare(a.AddedAt)
	})
}

func containsID(items []domain.WatchlistItem, id int) bool {
	return slices.ContainsFunc(items, func(it domain.WatchlistItem) bool { return it.ID == id })
}
