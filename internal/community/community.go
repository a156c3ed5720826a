// Package community serves the public review feed.
package community

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/observe"
	"github.com/reelsync/backend/pkg/validator"
)

// FeedLimit is the number of posts listed and streamed.
const FeedLimit = 50

// Repository persists posts.
type Repository interface {
	Create(ctx context.Context, post domain.CommunityPost) (domain.CommunityPost, error)
	List(ctx context.Context, limit int) ([]domain.CommunityPost, error)
	// Subscribe streams the newest posts, starting with the current page.
	Subscribe(limit int, onUpdate func([]domain.CommunityPost), onError func(error)) observe.Disposer
}

// Service validates and publishes posts.
type Service struct {
	repo   Repository
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a Service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, now: time.Now, logger: logger}
}

// Post publishes a new post by author.
func (s *Service) Post(ctx context.Context, author *domain.Identity, in domain.NewPost) (domain.CommunityPost, error) {
	if author == nil {
		return domain.CommunityPost{}, domain.ErrAuthRequired
	}

	in.Content = strings.TrimSpace(in.Content)
	if errs := validator.Struct(in); errs.HasErrors() {
		return domain.CommunityPost{}, fmt.Errorf("%w: %s", domain.ErrInvalidInput, errs.Error())
	}

	avatar := strings.TrimSpace(in.Avatar)
	if avatar == "" {
		avatar = domain.DefaultPostAvatar
	}
	name := strings.TrimSpace(author.DisplayName)
	if name == "" {
		name = author.FirstName()
	}

	post := domain.CommunityPost{
		UserID:    author.UID,
		User:      name,
		Avatar:    avatar,
		Movie:     in.Movie,
		Rating:    in.Rating,
		Content:   in.Content,
		CreatedAt: s.now().UTC(),
	}

	created, err := s.repo.Create(ctx, post)
	if err != nil {
		s.logger.Error("failed to create community post", zap.String("user_id", author.UID), zap.Error(err))
		return domain.CommunityPost{}, err
	}
	return created, nil
}

// List returns the newest posts. A failing store yields an empty feed.
func (s *Service) List(ctx context.Context) []domain.CommunityPost {
	posts, err := s.repo.List(ctx, FeedLimit)
	if err != nil {
		s.logger.Warn("failed to list community posts", zap.Error(err))
		return []domain.CommunityPost{}
	}
	return posts
}

// Subscribe streams the feed to fn.
func (s *Service) Subscribe(fn func([]domain.CommunityPost)) observe.Disposer {
	return s.repo.Subscribe(FeedLimit, fn, func(err error) {
		s.logger.Warn("community feed error", zap.Error(err))
	})
}

// normalize fills the defaults for documents written by older clients.
func normalize(p domain.CommunityPost) domain.CommunityPost {
	if p.User == "" {
		p.User = "Anonymous"
	}
	if p.Avatar == "" {
		p.Avatar = domain.DefaultPostAvatar
	}
	return p
}
