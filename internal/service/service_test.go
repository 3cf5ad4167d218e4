package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository/memory"
)

type stubAvatars struct {
	calls int
	err   error
}

func (a *stubAvatars) ForUsername(username string) (string, error) {
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	return "data:image/png;base64," + strings.ToUpper(username[:1]), nil
}

type services struct {
	store    *memory.Store
	avatars  *stubAvatars
	identity *IdentityService
	posts    *PostService
	accounts *AccountService
}

func newTestServices(t *testing.T) *services {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	store := memory.New()
	t.Cleanup(func() { store.Close() })

	avatars := &stubAvatars{}
	return &services{
		store:    store,
		avatars:  avatars,
		identity: NewIdentityService(store, avatars, logger),
		posts:    NewPostService(store, store, logger),
		accounts: NewAccountService(store, store, logger),
	}
}

func (s *services) register(t *testing.T, username string) *model.User {
	t.Helper()
	u, err := s.identity.Register(context.Background(), username, "")
	if err != nil {
		t.Fatalf("Register(%q) error: %v", username, err)
	}
	return u
}

func (s *services) post(t *testing.T, author *model.User, title string) *model.Post {
	t.Helper()
	p, err := s.posts.CreatePost(context.Background(), author, title, "content of "+title)
	if err != nil {
		t.Fatalf("CreatePost(%q) error: %v", title, err)
	}
	return p
}

func feedTitles(feed *model.Feed) []string {
	titles := make([]string, len(feed.Items))
	for i, it := range feed.Items {
		titles[i] = it.Title
	}
	return titles
}

// failingPosts breaks the feed query while leaving everything else working.
type failingPosts struct {
	*memory.Store
}

func (failingPosts) ListPosts(context.Context) ([]model.Post, error) {
	return nil, apperror.StoreFailure("listing posts", errors.New("disk I/O error"))
}
