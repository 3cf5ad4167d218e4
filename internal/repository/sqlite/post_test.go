package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
)

// =========================================================================
// CREATE / READ TESTS
// =========================================================================

func TestCreatePost(t *testing.T) {
	db := newTestDB(t)
	post := createTestPost(t, db, "ann", "Hello")

	if post.ID == "" {
		t.Error("CreatePost() did not set post.ID")
	}
	if post.CreatedAt.IsZero() {
		t.Error("CreatePost() did not set post.CreatedAt")
	}

	got, err := db.GetPost(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("GetPost() error = %v", err)
	}
	if got.Title != "Hello" || got.Username != "ann" || got.Likes != 0 {
		t.Errorf("GetPost() = %+v", got)
	}
}

func TestGetPost_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetPost(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetPost() error = %v, want ErrNotFound", err)
	}
}

func TestListPosts_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, title := range []string{"old", "new", "mid"} {
		offset := map[int]time.Duration{0: 0, 1: 2 * time.Hour, 2: time.Hour}[i]
		p := &model.Post{Title: title, Content: "c", Username: "ann", CreatedAt: base.Add(offset)}
		if err := db.CreatePost(ctx, p); err != nil {
			t.Fatalf("CreatePost() error = %v", err)
		}
	}

	posts, err := db.ListPosts(ctx)
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	var titles []string
	for _, p := range posts {
		titles = append(titles, p.Title)
	}
	if fmt.Sprint(titles) != "[new mid old]" {
		t.Errorf("ListPosts() order = %v, want [new mid old]", titles)
	}
}

func TestListPosts_Empty(t *testing.T) {
	db := newTestDB(t)

	posts, err := db.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	if posts == nil || len(posts) != 0 {
		t.Errorf("ListPosts() = %v, want empty non-nil slice", posts)
	}
}

func TestListPosts_MixedOffsetsOrderByInstant(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	plus2 := time.FixedZone("UTC+2", 2*60*60)

	// 13:00+02:00 is 11:00Z, an hour before the other post.
	older := &model.Post{Title: "older", Content: "c", Username: "ann",
		CreatedAt: time.Date(2024, 5, 1, 13, 0, 0, 0, plus2)}
	newer := &model.Post{Title: "newer", Content: "c", Username: "ann",
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	for _, p := range []*model.Post{newer, older} {
		if err := db.CreatePost(ctx, p); err != nil {
			t.Fatalf("CreatePost() error = %v", err)
		}
	}

	posts, err := db.ListPosts(ctx)
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	if len(posts) != 2 || posts[0].Title != "newer" || posts[1].Title != "older" {
		t.Errorf("ListPosts() = %v, want [newer older]", posts)
	}
	if !posts[1].CreatedAt.Equal(older.CreatedAt) {
		t.Errorf("older CreatedAt = %s, want %s", posts[1].CreatedAt, older.CreatedAt)
	}
}

func TestListPostsByAuthor(t *testing.T) {
	db := newTestDB(t)
	createTestPost(t, db, "ann", "a1")
	createTestPost(t, db, "bob", "b1")
	createTestPost(t, db, "ann", "a2")

	posts, err := db.ListPostsByAuthor(context.Background(), "ann")
	if err != nil {
		t.Fatalf("ListPostsByAuthor() error = %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("ListPostsByAuthor() = %d posts, want 2", len(posts))
	}
	for _, p := range posts {
		if p.Username != "ann" {
			t.Errorf("got post by %q", p.Username)
		}
	}
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestDeletePost_CascadesLikes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	post := createTestPost(t, db, "ann", "doomed")
	other := createTestPost(t, db, "ann", "survivor")

	for _, u := range []*model.User{createTestUser(t, db, "u1"), createTestUser(t, db, "u2")} {
		db.ToggleLike(ctx, u.ID, post.ID)
		db.ToggleLike(ctx, u.ID, other.ID)
	}

	if err := db.DeletePost(ctx, post.ID); err != nil {
		t.Fatalf("DeletePost() error = %v", err)
	}
	if n := countLikes(t, db, post.ID); n != 0 {
		t.Errorf("like rows for deleted post = %d, want 0", n)
	}

	survivor, _ := db.GetPost(ctx, other.ID)
	if survivor.Likes != 2 {
		t.Errorf("survivor likes = %d, want 2", survivor.Likes)
	}
	assertCounterMatchesRows(t, db)
}

func TestDeletePost_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.DeletePost(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeletePost() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// LIKE TESTS
// =========================================================================

func TestToggleLike_TwiceRestoresState(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	post := createTestPost(t, db, "ann", "Hello")
	u1 := createTestUser(t, db, "u1")

	first, err := db.ToggleLike(ctx, u1.ID, post.ID)
	if err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}
	if first != (model.LikeResult{Likes: 1, Liked: true}) {
		t.Errorf("first toggle = %+v, want {1 true}", first)
	}

	second, err := db.ToggleLike(ctx, u1.ID, post.ID)
	if err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}
	if second != (model.LikeResult{Likes: 0, Liked: false}) {
		t.Errorf("second toggle = %+v, want {0 false}", second)
	}

	liked, _ := db.LikedPostIDs(ctx, u1.ID)
	if liked[post.ID] {
		t.Error("post still listed as liked")
	}
}

func TestToggleLike_MissingPost(t *testing.T) {
	db := newTestDB(t)
	u1 := createTestUser(t, db, "u1")

	_, err := db.ToggleLike(context.Background(), u1.ID, "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ToggleLike() error = %v, want ErrNotFound", err)
	}
}

func TestToggleLike_RemovedUserLeavesNoRow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	post := createTestPost(t, db, "ann", "Hello")
	gone := createTestUser(t, db, "gone")
	if err := db.DeleteUserCascade(ctx, gone.ID); err != nil {
		t.Fatalf("DeleteUserCascade() error = %v", err)
	}

	_, err := db.ToggleLike(ctx, gone.ID, post.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ToggleLike() error = %v, want ErrNotFound", err)
	}
	if n := countLikes(t, db, post.ID); n != 0 {
		t.Errorf("like rows = %d, want 0", n)
	}
	got, _ := db.GetPost(ctx, post.ID)
	if got.Likes != 0 {
		t.Errorf("likes = %d, want 0", got.Likes)
	}
}

func TestToggleLike_Concurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	post := createTestPost(t, db, "ann", "popular")

	// 20 users; even-numbered users toggle twice, odd-numbered once.
	const users = 20
	ids := make([]string, users)
	for i := range ids {
		ids[i] = createTestUser(t, db, fmt.Sprintf("user-%d", i)).ID
	}
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		toggles := 1
		if i%2 == 0 {
			toggles = 2
		}
		for j := 0; j < toggles; j++ {
			wg.Add(1)
			go func(uid string) {
				defer wg.Done()
				if _, err := db.ToggleLike(ctx, uid, post.ID); err != nil {
					t.Errorf("ToggleLike() error = %v", err)
				}
			}(ids[i])
		}
	}
	wg.Wait()

	got, _ := db.GetPost(ctx, post.ID)
	if got.Likes != users/2 {
		t.Errorf("likes = %d, want %d", got.Likes, users/2)
	}
	assertCounterMatchesRows(t, db)
}

func TestLikedPostIDs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestPost(t, db, "ann", "a")
	b := createTestPost(t, db, "ann", "b")
	u1 := createTestUser(t, db, "u1")

	db.ToggleLike(ctx, u1.ID, a.ID)

	liked, err := db.LikedPostIDs(ctx, u1.ID)
	if err != nil {
		t.Fatalf("LikedPostIDs() error = %v", err)
	}
	if !liked[a.ID] || liked[b.ID] {
		t.Errorf("LikedPostIDs() = %v", liked)
	}
}
