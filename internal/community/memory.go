package community

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/observe"
)

// MemoryRepository keeps posts in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	posts []domain.CommunityPost
	feed  *observe.Registry[struct{}]
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{feed: observe.NewRegistry[struct{}]()}
}

func (m *MemoryRepository) Create(_ context.Context, post domain.CommunityPost) (domain.CommunityPost, error) {
	post.ID = uuid.NewString()
	m.mu.Lock()
	m.posts = append(m.posts, post)
	m.mu.Unlock()

	m.feed.Publish(struct{}{})
	return post, nil
}

func (m *MemoryRepository) List(_ context.Context, limit int) ([]domain.CommunityPost, error) {
	return m.newest(limit), nil
}

func (m *MemoryRepository) newest(limit int) []domain.CommunityPost {
	m.mu.RLock()
	posts := slices.Clone(m.posts)
	m.mu.RUnlock()

	slices.SortStableFunc(posts, func(a, b domain.CommunityPost) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if len(posts) > limit {
		posts = posts[:limit]
	}
	for i := range posts {
		posts[i] = normalize(posts[i])
	}
	return posts
}

func (m *MemoryRepository) Subscribe(limit int, onUpdate func([]domain.CommunityPost), _ func(error)) observe.Disposer {
	deliver, stop := observe.Guard(onUpdate)
	unsubscribe := m.feed.Subscribe(func(struct{}) { deliver(m.newest(limit)) })
	deliver(m.newest(limit))
	return func() {
		stop()
		unsubscribe()
	}
}
