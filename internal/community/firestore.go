package community

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/observe"
)

const postsCollection = "community_posts"

// FirestoreRepository stores posts in the top-level community_posts
// collection.
type FirestoreRepository struct {
	client *firestore.Client
}

// NewFirestoreRepository wraps client; nil makes every call fail with
// domain.ErrRemoteUnavailable.
func NewFirestoreRepository(client *firestore.Client) *FirestoreRepository {
	return &FirestoreRepository{client: client}
}

func (r *FirestoreRepository) query(limit int) (firestore.Query, error) {
	if r.client == nil {
		return firestore.Query{}, domain.ErrRemoteUnavailable
	}
	return r.client.Collection(postsCollection).OrderBy("createdAt", firestore.Desc).Limit(limit), nil
}

func (r *FirestoreRepository) Create(ctx context.Context, post domain.CommunityPost) (domain.CommunityPost, error) {
	if r.client == nil {
		return domain.CommunityPost{}, domain.ErrRemoteUnavailable
	}
	ref, _, err := r.client.Collection(postsCollection).Add(ctx, post)
	if err != nil {
		return domain.CommunityPost{}, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	post.ID = ref.ID
	return post, nil
}

func (r *FirestoreRepository) List(ctx context.Context, limit int) ([]domain.CommunityPost, error) {
	q, err := r.query(limit)
	if err != nil {
		return nil, err
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var docs []*firestore.DocumentSnapshot
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
		}
		docs = append(docs, doc)
	}
	return decodePosts(docs), nil
}

func (r *FirestoreRepository) Subscribe(limit int, onUpdate func([]domain.CommunityPost), onError func(error)) observe.Disposer {
	q, err := r.query(limit)
	if err != nil {
		onError(err)
		return observe.Noop
	}

	ctx, cancel := context.WithCancel(context.Background())
	deliver, stop := observe.Guard(onUpdate)
	it := q.Snapshots(ctx)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil && status.Code(err) != codes.Canceled {
					onError(fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err))
				}
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				onError(fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err))
				return
			}
			deliver(decodePosts(docs))
		}
	}()

	return func() {
		stop()
		cancel()
	}
}

func decodePosts(docs []*firestore.DocumentSnapshot) []domain.CommunityPost {
	posts := make([]domain.CommunityPost, 0, len(docs))
	for _, doc := range docs {
		var p domain.CommunityPost
		if err := doc.DataTo(&p); err != nil {
			continue
		}
		p.ID = doc.Ref.ID
		posts = append(posts, normalize(p))
	}
	return posts
}
