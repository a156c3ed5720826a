package watchlist

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/metrics"
	"github.com/reelsync/backend/internal/observe"
)

// FirestoreRemote stores watchlists at users/{uid}/watchlist/{itemId}.
type FirestoreRemote struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreRemote returns the Firestore-backed source. A nil client
// yields a source whose every call fails with domain.ErrRemoteUnavailable.
func NewFirestoreRemote(client *firestore.Client, logger *zap.Logger) *FirestoreRemote {
	return &FirestoreRemote{client: client, logger: logger}
}

func (f *FirestoreRemote) Kind() Kind { return KindRemote }

func (f *FirestoreRemote) collection(uid string) (*firestore.CollectionRef, error) {
	if uid == "" {
		return nil, domain.ErrAuthRequired
	}
	if f.client == nil {
		return nil, fmt.Errorf("%w: firestore not configured", domain.ErrRemoteUnavailable)
	}
	return f.client.Collection("users").Doc(uid).Collection("watchlist"), nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrRemoteUnavailable, op, err)
}

func (f *FirestoreRemote) Add(ctx context.Context, uid string, item domain.WatchlistItem) error {
	col, err := f.collection(uid)
	if err != nil {
		return err
	}
	if _, err := col.Doc(strconv.Itoa(item.ID)).Set(ctx, item); err != nil {
		return unavailable("add", err)
	}
	return nil
}

func (f *FirestoreRemote) Remove(ctx context.Context, uid string, id int) error {
	col, err := f.collection(uid)
	if err != nil {
		return err
	}
	if _, err := col.Doc(strconv.Itoa(id)).Delete(ctx); err != nil {
		return unavailable("remove", err)
	}
	return nil
}

func (f *FirestoreRemote) Contains(ctx context.Context, uid string, id int) (bool, error) {
	col, err := f.collection(uid)
	if err != nil {
		return false, err
	}
	snap, err := col.Doc(strconv.Itoa(id)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, unavailable("contains", err)
	}
	return snap.Exists(), nil
}

func (f *FirestoreRemote) List(ctx context.Context, uid string) ([]domain.WatchlistItem, error) {
	col, err := f.collection(uid)
	if err != nil {
		return nil, err
	}
	docs, err := col.OrderBy("addedAt", firestore.Desc).Documents(ctx).GetAll()
	if err != nil {
		return nil, unavailable("list", err)
	}
	return f.decode(docs), nil
}

// decode skips documents that do not match the item schema.
func (f *FirestoreRemote) decode(docs []*firestore.DocumentSnapshot) []domain.WatchlistItem {
	items := make([]domain.WatchlistItem, 0, len(docs))
	for _, doc := range docs {
		var item domain.WatchlistItem
		if err := doc.DataTo(&item); err != nil {
			f.logger.Warn("skipping malformed watchlist document",
				zap.String("path", doc.Ref.Path), zap.Error(err))
			continue
		}
		if id, err := strconv.Atoi(doc.Ref.ID); err == nil {
			item.ID = id
		}
		items = append(items, item)
	}
	return items
}

// Subscribe streams query snapshots on a background goroutine until the
// Disposer is called or the stream fails.
func (f *FirestoreRemote) Subscribe(uid string, onUpdate func([]domain.WatchlistItem), onError func(error)) observe.Disposer {
	col, err := f.collection(uid)
	if err != nil {
		if onError != nil {
			onError(err)
		}
		return observe.Noop
	}

	ctx, cancel := context.WithCancel(context.Background())
	deliver, stop := observe.Guard(onUpdate)
	fail, stopErrors := observe.Guard(func(err error) {
		if onError != nil {
			onError(err)
		}
	})

	it := col.OrderBy("addedAt", firestore.Desc).Snapshots(ctx)
	metrics.RemoteSubscriptions.Inc()

	go func() {
		defer metrics.RemoteSubscriptions.Dec()
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || status.Code(err) == codes.Canceled || errors.Is(err, context.Canceled) {
					return
				}
				f.logger.Error("watchlist subscription failed", zap.String("uid", uid), zap.Error(err))
				fail(unavailable("subscribe", err))
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				fail(unavailable("subscribe", err))
				return
			}
			deliver(f.decode(docs))
		}
	}()

	return func() {
		stop()
		stopErrors()
		cancel()
	}
}
