// Package memory implements repository.Store in process memory. It backs the
// username-only variant and the handler tests; nothing survives a restart.
//
// A single mutex guards all state, so every operation is atomic with respect
// to every other, including the like toggle and the account cascade.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type likeKey struct {
	userID string
	postID string
}

type sessionRow struct {
	data      string
	expiresAt time.Time
}

type Store struct {
	mu       sync.Mutex
	users    map[string]*model.User
	posts    map[string]*model.Post
	order    map[string]int // insertion sequence, breaks timestamp ties
	seq      int
	likes    map[likeKey]struct{}
	sessions map[string]sessionRow
}

func New() *Store {
	return &Store{
		users:    make(map[string]*model.User),
		posts:    make(map[string]*model.Post),
		order:    make(map[string]int),
		likes:    make(map[likeKey]struct{}),
		sessions: make(map[string]sessionRow),
	}
}

func (s *Store) Close() error { return nil }

// ===== users =====

func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username {
			return apperror.Conflict("Username already exists")
		}
		if user.Fingerprint != "" && u.Fingerprint == user.Fingerprint {
			return apperror.Conflict("Account already registered")
		}
	}

	user.ID = xid.New().String()
	if user.MemberSince.IsZero() {
		user.MemberSince = time.Now().UTC()
	}
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	out := *u
	return &out, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	return s.findUser(username, func(u *model.User) bool { return u.Username == username })
}

func (s *Store) GetUserByFingerprint(_ context.Context, fingerprint string) (*model.User, error) {
	if fingerprint == "" {
		return nil, apperror.NotFound("user", fingerprint)
	}
	return s.findUser(fingerprint, func(u *model.User) bool { return u.Fingerprint == fingerprint })
}

func (s *Store) findUser(key string, match func(*model.User) bool) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if match(u) {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (s *Store) ListUsersMissingAvatar(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.User
	for _, u := range s.users {
		if u.AvatarURL == "" {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberSince.Before(out[j].MemberSince) })
	return out, nil
}

func (s *Store) UpdateAvatar(_ context.Context, id, avatarURL string) error {
	return s.updateUser(id, func(u *model.User) { u.AvatarURL = avatarURL })
}

func (s *Store) UpdateRole(_ context.Context, id string, role model.Role) error {
	return s.updateUser(id, func(u *model.User) { u.Role = role })
}

func (s *Store) updateUser(id string, fn func(*model.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	fn(u)
	return nil
}

func (s *Store) DeleteUserCascade(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}

	for k := range s.likes {
		if k.userID != id {
			continue
		}
		if p, ok := s.posts[k.postID]; ok {
			p.Likes--
		}
		delete(s.likes, k)
	}
	for pid, p := range s.posts {
		if p.Username == u.Username {
			s.deletePostLocked(pid)
		}
	}
	delete(s.users, id)
	return nil
}

// ===== posts =====

func (s *Store) CreatePost(_ context.Context, post *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post.ID = xid.New().String()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	stored := *post
	s.posts[post.ID] = &stored
	s.seq++
	s.order[post.ID] = s.seq
	return nil
}

func (s *Store) GetPost(_ context.Context, id string) (*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	out := *p
	return &out, nil
}

func (s *Store) ListPosts(_ context.Context) ([]model.Post, error) {
	return s.listPosts(func(*model.Post) bool { return true }), nil
}

func (s *Store) ListPostsByAuthor(_ context.Context, username string) ([]model.Post, error) {
	return s.listPosts(func(p *model.Post) bool { return p.Username == username }), nil
}

func (s *Store) listPosts(keep func(*model.Post) bool) []model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.Post{}
	for _, p := range s.posts {
		if keep(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.order[out[i].ID] > s.order[out[j].ID]
	})
	return out
}

func (s *Store) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return apperror.NotFound("post", id)
	}
	s.deletePostLocked(id)
	return nil
}

// deletePostLocked removes a post and its likes. Caller holds s.mu.
func (s *Store) deletePostLocked(id string) {
	for k := range s.likes {
		if k.postID == id {
			delete(s.likes, k)
		}
	}
	delete(s.posts, id)
	delete(s.order, id)
}

func (s *Store) ToggleLike(_ context.Context, userID, postID string) (model.LikeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return model.LikeResult{}, apperror.NotFound("post", postID)
	}
	if _, ok := s.users[userID]; !ok {
		return model.LikeResult{}, apperror.NotFound("user", userID)
	}

	k := likeKey{userID: userID, postID: postID}
	if _, liked := s.likes[k]; liked {
		delete(s.likes, k)
		p.Likes--
		return model.LikeResult{Likes: p.Likes, Liked: false}, nil
	}
	s.likes[k] = struct{}{}
	p.Likes++
	return model.LikeResult{Likes: p.Likes, Liked: true}, nil
}

func (s *Store) LikedPostIDs(_ context.Context, userID string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	liked := make(map[string]bool)
	for k := range s.likes {
		if k.userID == userID {
			liked[k.postID] = true
		}
	}
	return liked, nil
}

// LikeRows counts the like rows for a post. Tests use it to check the
// counter invariant.
func (s *Store) LikeRows(postID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.likes {
		if k.postID == postID {
			n++
		}
	}
	return n
}

// ===== sessions =====

func (s *Store) SaveSession(_ context.Context, id, data string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = sessionRow{data: data, expiresAt: expiresAt}
	return nil
}

func (s *Store) LoadSession(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.sessions[id]
	if !ok || !row.expiresAt.After(time.Now()) {
		return "", apperror.NotFound("session", id)
	}
	return row.data, nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, row := range s.sessions {
		if !row.expiresAt.After(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}
