package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/metrics"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

const (
	MaxTitleLength   = 200
	MaxContentLength = 5000
)

// PostService implements posting, liking and the feed.
type PostService struct {
	posts  repository.PostRepository
	users  repository.UserRepository
	logger *slog.Logger
}

func NewPostService(posts repository.PostRepository, users repository.UserRepository, logger *slog.Logger) *PostService {
	return &PostService{
		posts:  posts,
		users:  users,
		logger: logger,
	}
}

// CreatePost stores a new post by author. The timestamp is assigned by the
// store and the like count starts at zero.
func (s *PostService) CreatePost(ctx context.Context, author *model.User, title, content string) (*model.Post, error) {
	if author == nil {
		return nil, apperror.ValidationFailed("author", "login required")
	}

	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if err := validatePost(title, content); err != nil {
		return nil, err
	}

	post := &model.Post{
		Title:    title,
		Content:  content,
		Username: author.Username,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		s.logger.Error("failed to create post",
			slog.String("username", author.Username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating post: %w", err)
	}

	metrics.PostsCreated.Inc()
	s.logger.Info("post created", slog.String("id", post.ID), slog.String("username", post.Username))
	return post, nil
}

// DeletePost removes a post if requester wrote it or is an admin. A missing
// post and a foreign post are reported the same way.
func (s *PostService) DeletePost(ctx context.Context, postID string, requester *model.User) error {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.Forbidden("not found or no perms")
		}
		return fmt.Errorf("deleting post %s: %w", postID, err)
	}
	if !canDelete(requester, post) {
		return apperror.Forbidden("not found or no perms")
	}

	if err := s.posts.DeletePost(ctx, postID); err != nil {
		return fmt.Errorf("deleting post %s: %w", postID, err)
	}

	s.logger.Info("post deleted",
		slog.String("id", postID),
		slog.String("by", requester.Username),
		slog.Bool("admin", requester.IsAdmin()),
	)
	return nil
}

// ToggleLike likes the post for userID, or unlikes it if already liked.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID string) (model.LikeResult, error) {
	res, err := s.posts.ToggleLike(ctx, userID, postID)
	if err != nil {
		return model.LikeResult{}, fmt.Errorf("toggling like on %s: %w", postID, err)
	}

	action := "unliked"
	if res.Liked {
		action = "liked"
	}
	metrics.LikeToggles.WithLabelValues(action).Inc()
	return res, nil
}

// ListFeed returns every post ordered by mode and enriched for viewer, who
// may be nil.
func (s *PostService) ListFeed(ctx context.Context, mode model.SortMode, viewer *model.User) (*model.Feed, error) {
	if _, ok := model.ParseSortMode(string(mode)); !ok {
		return nil, apperror.ValidationFailed("sortMode", fmt.Sprintf("unknown sort mode %q", mode))
	}

	posts, err := s.posts.ListPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing feed: %w", err)
	}
	if mode == model.SortLikes {
		// ListPosts is newest first, so equal counts keep recency order.
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].Likes > posts[j].Likes
		})
	}

	items, err := s.enrich(ctx, posts, viewer)
	if err != nil {
		return nil, err
	}
	return &model.Feed{Items: items, Viewer: viewer, SortMode: mode}, nil
}

// ListProfile returns the viewer's own posts, newest first.
func (s *PostService) ListProfile(ctx context.Context, viewer *model.User) (*model.Feed, error) {
	if viewer == nil {
		return nil, apperror.ValidationFailed("viewer", "login required")
	}

	posts, err := s.posts.ListPostsByAuthor(ctx, viewer.Username)
	if err != nil {
		return nil, fmt.Errorf("listing posts of %q: %w", viewer.Username, err)
	}

	items, err := s.enrich(ctx, posts, viewer)
	if err != nil {
		return nil, err
	}
	return &model.Feed{Items: items, Viewer: viewer, SortMode: model.SortRecency}, nil
}

func (s *PostService) enrich(ctx context.Context, posts []model.Post, viewer *model.User) ([]model.FeedItem, error) {
	liked := map[string]bool{}
	if viewer != nil {
		var err error
		liked, err = s.posts.LikedPostIDs(ctx, viewer.ID)
		if err != nil {
			return nil, fmt.Errorf("loading likes of %s: %w", viewer.ID, err)
		}
	}

	avatars := make(map[string]string)
	items := make([]model.FeedItem, 0, len(posts))
	for _, p := range posts {
		avatar, seen := avatars[p.Username]
		if !seen {
			author, err := s.users.GetUserByUsername(ctx, p.Username)
			switch {
			case err == nil:
				avatar = author.AvatarURL
			case errors.Is(err, apperror.ErrNotFound):
				// author row is gone; the post renders without an avatar
			default:
				return nil, fmt.Errorf("loading author %q: %w", p.Username, err)
			}
			avatars[p.Username] = avatar
		}

		items = append(items, model.FeedItem{
			Post:      p,
			AvatarURL: avatar,
			Liked:     liked[p.ID],
			CanDelete: canDelete(viewer, &p),
		})
	}
	return items, nil
}

func canDelete(u *model.User, p *model.Post) bool {
	if u == nil {
		return false
	}
	return u.IsAdmin() || u.Username == p.Username
}

func validatePost(title, content string) error {
	if title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if content == "" {
		return apperror.ValidationFailed("content", "content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxContentLength))
	}
	return nil
}
