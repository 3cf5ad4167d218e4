// Package repository declares the storage contracts the services depend on.
// Two implementations exist: repository/sqlite and repository/memory.
package repository

import (
	"context"
	"time"

	"github.com/sakif/microblog/internal/model"
)

// UserRepository persists accounts.
type UserRepository interface {
	// CreateUser assigns ID and MemberSince. A taken username or fingerprint
	// yields apperror.ErrConflict.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByFingerprint(ctx context.Context, fingerprint string) (*model.User, error)
	ListUsersMissingAvatar(ctx context.Context) ([]model.User, error)
	UpdateAvatar(ctx context.Context, id, avatarURL string) error
	UpdateRole(ctx context.Context, id string, role model.Role) error

	// DeleteUserCascade removes the user, their posts, their likes, and the
	// likes others left on their posts, and decrements the counters of the
	// posts they liked. All of it happens atomically.
	DeleteUserCascade(ctx context.Context, id string) error
}

// PostRepository persists posts and the like relation.
type PostRepository interface {
	// CreatePost assigns ID, and CreatedAt when it is zero.
	CreatePost(ctx context.Context, post *model.Post) error
	GetPost(ctx context.Context, id string) (*model.Post, error)
	// ListPosts returns every post, newest first.
	ListPosts(ctx context.Context) ([]model.Post, error)
	ListPostsByAuthor(ctx context.Context, username string) ([]model.Post, error)
	// DeletePost removes the post and its Like rows atomically.
	DeletePost(ctx context.Context, id string) error

	// ToggleLike flips the (userID, postID) like and adjusts the post's
	// counter in the same atomic unit.
	ToggleLike(ctx context.Context, userID, postID string) (model.LikeResult, error)
	LikedPostIDs(ctx context.Context, userID string) (map[string]bool, error)
}

// SessionRepository stores encoded session payloads keyed by session id.
type SessionRepository interface {
	SaveSession(ctx context.Context, id, data string, expiresAt time.Time) error
	// LoadSession returns apperror.ErrNotFound for unknown or expired ids.
	LoadSession(ctx context.Context, id string) (string, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Store is everything the application persists.
type Store interface {
	UserRepository
	PostRepository
	SessionRepository
	Close() error
}
