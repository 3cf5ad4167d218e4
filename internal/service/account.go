package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/metrics"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

// AccountService removes accounts. The caller destroys the session of a
// self-deleted account.
type AccountService struct {
	users  repository.UserRepository
	posts  repository.PostRepository
	logger *slog.Logger
}

func NewAccountService(users repository.UserRepository, posts repository.PostRepository, logger *slog.Logger) *AccountService {
	return &AccountService{
		users:  users,
		posts:  posts,
		logger: logger,
	}
}

// DeleteAccount removes userID with their posts and likes.
func (s *AccountService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.users.DeleteUserCascade(ctx, userID); err != nil {
		s.logger.Error("failed to delete account",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("deleting account %s: %w", userID, err)
	}

	metrics.AccountsDeleted.WithLabelValues("self").Inc()
	s.logger.Info("account deleted", slog.String("userID", userID))
	return nil
}

// RemoveAuthorOfPost lets an admin remove the account that wrote postID.
// It returns the removed user.
func (s *AccountService) RemoveAuthorOfPost(ctx context.Context, postID string, requester *model.User) (*model.User, error) {
	if !requester.IsAdmin() {
		return nil, apperror.Forbidden("admin mode required")
	}

	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("removing author of %s: %w", postID, err)
	}
	author, err := s.users.GetUserByUsername(ctx, post.Username)
	if err != nil {
		return nil, fmt.Errorf("removing author of %s: %w", postID, err)
	}

	if err := s.users.DeleteUserCascade(ctx, author.ID); err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to remove account",
				slog.String("userID", author.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("removing account %s: %w", author.ID, err)
	}

	metrics.AccountsDeleted.WithLabelValues("admin").Inc()
	s.logger.Info("account removed by admin",
		slog.String("userID", author.ID),
		slog.String("username", author.Username),
		slog.String("by", requester.Username),
	)
	return author, nil
}
