package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
)

// ===== Register =====

func TestRegister_Success(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	u, err := s.identity.Register(ctx, "  ann  ", "294")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if u.ID == "" {
		t.Error("expected an id")
	}
	if u.Username != "ann" {
		t.Errorf("Username = %q, want trimmed %q", u.Username, "ann")
	}
	if u.Role != model.RoleUser {
		t.Errorf("Role = %q, want %q", u.Role, model.RoleUser)
	}
	if u.AvatarURL != "data:image/png;base64,A" {
		t.Errorf("AvatarURL = %q", u.AvatarURL)
	}

	got, err := s.identity.ResolveByFingerprint(ctx, "294")
	if err != nil {
		t.Fatalf("ResolveByFingerprint() error: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("resolved %q, want %q", got.ID, u.ID)
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	s.register(t, "ann")

	_, err := s.identity.Register(ctx, "ann", "")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Message != "Username already exists" {
		t.Errorf("expected message %q, got %v", "Username already exists", err)
	}

	users, err := s.store.ListUsersMissingAvatar(ctx)
	if err != nil {
		t.Fatalf("ListUsersMissingAvatar() error: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("unexpected users without avatar: %v", users)
	}
	if s.avatars.calls != 1 {
		t.Errorf("avatar rendered %d times, want 1", s.avatars.calls)
	}
}

func TestRegister_Validation(t *testing.T) {
	s := newTestServices(t)

	tests := []struct {
		name     string
		username string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"too long", strings.Repeat("a", MaxUsernameLength+1)},
		{"slash", "a/b"},
		{"query", "a?b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.identity.Register(context.Background(), tt.username, "")
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestRegister_AvatarFailureStillCreatesUser(t *testing.T) {
	s := newTestServices(t)
	s.avatars.err = errors.New("font unavailable")

	u, err := s.identity.Register(context.Background(), "ann", "")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if u.AvatarURL != "" {
		t.Errorf("AvatarURL = %q, want empty", u.AvatarURL)
	}
}

// ===== Resolve =====

func TestResolveByUsername(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	ann := s.register(t, "ann")

	got, err := s.identity.ResolveByUsername(ctx, " ann ")
	if err != nil {
		t.Fatalf("ResolveByUsername() error: %v", err)
	}
	if got.ID != ann.ID {
		t.Errorf("got %q, want %q", got.ID, ann.ID)
	}

	if _, err := s.identity.ResolveByUsername(ctx, "nobody"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.identity.ResolveByUsername(ctx, ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestResolveByFingerprint_Unknown(t *testing.T) {
	s := newTestServices(t)

	_, err := s.identity.ResolveByFingerprint(context.Background(), "150")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ===== SetRole =====

func TestSetRole(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	ann := s.register(t, "ann")

	if err := s.identity.SetRole(ctx, ann.ID, model.RoleAdmin); err != nil {
		t.Fatalf("SetRole(admin) error: %v", err)
	}
	got, _ := s.identity.GetUser(ctx, ann.ID)
	if !got.IsAdmin() {
		t.Error("expected admin after SetRole(admin)")
	}

	if err := s.identity.SetRole(ctx, ann.ID, model.RoleUser); err != nil {
		t.Fatalf("SetRole(user) error: %v", err)
	}
	got, _ = s.identity.GetUser(ctx, ann.ID)
	if got.IsAdmin() {
		t.Error("expected user after SetRole(user)")
	}

	if err := s.identity.SetRole(ctx, ann.ID, "root"); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if err := s.identity.SetRole(ctx, "missing", model.RoleAdmin); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ===== Avatars =====

func TestEnsureAvatar(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	s.avatars.err = errors.New("font unavailable")
	s.register(t, "bob")
	s.avatars.err = nil

	u, err := s.identity.EnsureAvatar(ctx, "bob")
	if err != nil {
		t.Fatalf("EnsureAvatar() error: %v", err)
	}
	if u.AvatarURL != "data:image/png;base64,B" {
		t.Errorf("AvatarURL = %q", u.AvatarURL)
	}

	calls := s.avatars.calls
	if _, err := s.identity.EnsureAvatar(ctx, "bob"); err != nil {
		t.Fatalf("EnsureAvatar() second call error: %v", err)
	}
	if s.avatars.calls != calls {
		t.Error("stored avatar was regenerated")
	}

	if _, err := s.identity.EnsureAvatar(ctx, "nobody"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBackfillAvatars(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	s.register(t, "ann")
	s.avatars.err = errors.New("font unavailable")
	s.register(t, "bob")
	s.register(t, "cat")
	s.avatars.err = nil

	n, err := s.identity.BackfillAvatars(ctx)
	if err != nil {
		t.Fatalf("BackfillAvatars() error: %v", err)
	}
	if n != 2 {
		t.Errorf("filled %d, want 2", n)
	}

	missing, _ := s.store.ListUsersMissingAvatar(ctx)
	if len(missing) != 0 {
		t.Errorf("still missing avatars: %v", missing)
	}

	n, err = s.identity.BackfillAvatars(ctx)
	if err != nil || n != 0 {
		t.Errorf("second backfill = %d, %v; want 0, nil", n, err)
	}
}
