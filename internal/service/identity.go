// Package service holds the business rules. Handlers call it with plain
// values; it talks to storage only through the repository interfaces, so the
// same rules run over SQLite in production and the memory store in tests.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/metrics"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

const MaxUsernameLength = 32

// AvatarRenderer produces the stored avatar for a username.
type AvatarRenderer interface {
	ForUsername(username string) (string, error)
}

// IdentityService maps external identities and usernames to accounts.
type IdentityService struct {
	users   repository.UserRepository
	avatars AvatarRenderer
	logger  *slog.Logger
}

func NewIdentityService(users repository.UserRepository, avatars AvatarRenderer, logger *slog.Logger) *IdentityService {
	return &IdentityService{
		users:   users,
		avatars: avatars,
		logger:  logger,
	}
}

// ResolveByFingerprint finds the account registered for a Google identity.
func (s *IdentityService) ResolveByFingerprint(ctx context.Context, fingerprint string) (*model.User, error) {
	if fingerprint == "" {
		return nil, apperror.ValidationFailed("fingerprint", "identity is required")
	}
	return s.users.GetUserByFingerprint(ctx, fingerprint)
}

// ResolveByUsername finds an account by name.
func (s *IdentityService) ResolveByUsername(ctx context.Context, username string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	return s.users.GetUserByUsername(ctx, username)
}

// GetUser loads the account behind a session.
func (s *IdentityService) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetUserByID(ctx, id)
}

// Register creates an account. fingerprint is empty for username-only
// accounts. The avatar is rendered from the first letter and stored with the
// row.
func (s *IdentityService) Register(ctx context.Context, username, fingerprint string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	// The store's UNIQUE constraint settles races; this lookup only gives the
	// common case a precise message.
	_, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		return nil, apperror.Conflict("Username already exists")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("registering %q: %w", username, err)
	}

	user := &model.User{
		Username:    username,
		Fingerprint: fingerprint,
		Role:        model.RoleUser,
	}
	if avatar, err := s.renderAvatar(username); err != nil {
		// Not fatal: the startup backfill or the first /avatar request retries.
		s.logger.Warn("avatar generation failed",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
	} else {
		user.AvatarURL = avatar
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			s.logger.Error("failed to create user",
				slog.String("username", username),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("registering %q: %w", username, err)
	}

	s.logger.Info("user registered",
		slog.String("id", user.ID),
		slog.String("username", user.Username),
		slog.Bool("google", fingerprint != ""),
	)
	return user, nil
}

// SetRole switches the caller's own role. Any logged-in user may enter admin
// mode.
func (s *IdentityService) SetRole(ctx context.Context, userID string, role model.Role) error {
	if role != model.RoleUser && role != model.RoleAdmin {
		return apperror.ValidationFailed("role", fmt.Sprintf("unknown role %q", role))
	}
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return fmt.Errorf("setting role of %s: %w", userID, err)
	}
	s.logger.Info("role changed", slog.String("userID", userID), slog.String("role", string(role)))
	return nil
}

// EnsureAvatar returns the user with an avatar, rendering and storing one
// first if the row has none.
func (s *IdentityService) EnsureAvatar(ctx context.Context, username string) (*model.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.AvatarURL != "" {
		return user, nil
	}

	avatar, err := s.renderAvatar(user.Username)
	if err != nil {
		return nil, fmt.Errorf("rendering avatar for %q: %w", username, err)
	}
	if err := s.users.UpdateAvatar(ctx, user.ID, avatar); err != nil {
		return nil, fmt.Errorf("storing avatar for %q: %w", username, err)
	}
	user.AvatarURL = avatar
	return user, nil
}

// BackfillAvatars gives every user without an avatar one. It runs once at
// startup and keeps going past individual failures.
func (s *IdentityService) BackfillAvatars(ctx context.Context) (int, error) {
	users, err := s.users.ListUsersMissingAvatar(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing users missing avatar: %w", err)
	}

	filled := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return filled, err
		}
		if _, err := s.EnsureAvatar(ctx, u.Username); err != nil {
			s.logger.Warn("avatar backfill failed",
				slog.String("username", u.Username),
				slog.String("error", err.Error()),
			)
			continue
		}
		filled++
	}
	if filled > 0 {
		s.logger.Info("avatars backfilled", slog.Int("count", filled))
	}
	return filled, nil
}

func (s *IdentityService) renderAvatar(username string) (string, error) {
	avatar, err := s.avatars.ForUsername(username)
	if err != nil {
		return "", err
	}
	metrics.AvatarsGenerated.Inc()
	return avatar, nil
}

func validateUsername(username string) error {
	if username == "" {
		return apperror.ValidationFailed("username", "username is required")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}
	if strings.ContainsAny(username, "/?#") {
		return apperror.ValidationFailed("username", "username may not contain /, ? or #")
	}
	return nil
}
