// Package seed fills a store with demo data: the five sample artists and
// their posts, plus optional random users, posts and likes for load-testing
// the feed. Development only.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

// Options controls a seeding run.
type Options struct {
	FakeUsers int   // random users on top of the sample ones
	FakePosts int   // random posts spread over all seeded users
	MaxLikes  int   // upper bound of random likes per fake user
	Seed      int64 // gofakeit seed; 0 picks one from the clock
}

// Result counts what a run created. Rows that already existed are skipped,
// so running twice is harmless.
type Result struct {
	Users int
	Posts int
	Likes int
}

type sampleUser struct {
	username    string
	fingerprint string
}

type samplePost struct {
	title, content, username, timestamp string
}

var sampleUsers = []sampleUser{
	{"ByteArtist", "hashedGoogleId1"},
	{"PixelMaster", "hashedGoogleId2"},
	{"EightBits", "hashedGoogleId3"},
	{"RetroRogue", "hashedGoogleId4"},
	{"SpriteSuccessor", "hashedGoogleId5"},
}

const sampleMemberSince = "2024-06-01 12:00:00"

var samplePosts = []samplePost{
	{"Getting Started with Pixel Art: An Introductory Guide", "Just created a comprehensive guide for beginners covering the basics of pixel art, essential tools, and fundamental techniques.", "SpriteSuccessor", "2024-02-02 08:30:00"},
	{"Monetizing Your Pixel Art: Tips for Selling and Commissioning Work", "Practical advice on how to turn your pixel art hobby into a source of income through commissions, prints, and digital sales.", "PixelMaster", "2024-02-02 09:45:00"},
	{"Exploring Different Styles of Pixel Art: Minimalism to Hyper-Detail", "A look at various pixel art styles, providing examples and techniques for achieving each style.", "EightBits", "2024-02-02 11:00:00"},
	{"Pixel Art Trends: Whats Hot in 2024", "An analysis of current trends in pixel art, predicting future directions and highlighting popular themes and techniques.", "RetroRogue", "2024-02-02 13:00:00"},
	{"Top 10 Pixel Art Tools for Aspiring Artists", "An overview of the best software and online tools available for creating pixel art, with pros and cons for each.", "ByteArtist", "2024-02-02 14:00:00"},
	{"Top 20 Pixel Art Games You Must Play", "A curated list of the best pixel art games across various genres, highlighting what makes each game unique and visually appealing.", "RetroRogue", "2024-02-02 15:00:00"},
	{"Exploring Minimalist Pixel Art: Less is More", "An introduction to minimalist pixel art, showcasing techniques for creating impactful images with a limited number of pixels and colors.", "SpriteSuccessor", "2024-02-02 16:00:00"},
	{"Seasonal Pixel Art: Designing Art for Holidays and Celebrations", "Ideas and techniques for creating pixel art themed around different seasons and holidays, from festive decorations to seasonal landscapes.", "PixelMaster", "2024-01-02 17:00:00"},
}

// Seeder writes demo data through the repository interfaces. Avatars are
// left empty; the server's startup sweep renders them.
type Seeder struct {
	users  repository.UserRepository
	posts  repository.PostRepository
	faker  *gofakeit.Faker
	logger *slog.Logger
}

func New(users repository.UserRepository, posts repository.PostRepository, seed int64, logger *slog.Logger) *Seeder {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{
		users:  users,
		posts:  posts,
		faker:  gofakeit.New(seed),
		logger: logger,
	}
}

// Run seeds the sample data, then the random data opts asks for.
func (s *Seeder) Run(ctx context.Context, opts Options) (Result, error) {
	var res Result

	users, created, err := s.sampleUsers(ctx)
	if err != nil {
		return res, err
	}
	res.Users += created

	// Sample posts only go in alongside freshly created sample users, so a
	// second run does not duplicate them.
	if created > 0 {
		n, err := s.samplePosts(ctx)
		if err != nil {
			return res, err
		}
		res.Posts += n
	}

	fakes, err := s.fakeUsers(ctx, opts.FakeUsers)
	if err != nil {
		return res, err
	}
	res.Users += len(fakes)
	users = append(users, fakes...)

	posts, err := s.fakePosts(ctx, users, opts.FakePosts)
	if err != nil {
		return res, err
	}
	res.Posts += len(posts)

	likes, err := s.fakeLikes(ctx, fakes, posts, opts.MaxLikes)
	if err != nil {
		return res, err
	}
	res.Likes = likes

	s.logger.Info("seeding complete",
		slog.Int("users", res.Users),
		slog.Int("posts", res.Posts),
		slog.Int("likes", res.Likes),
	)
	return res, nil
}

func (s *Seeder) sampleUsers(ctx context.Context) ([]*model.User, int, error) {
	memberSince, err := time.Parse(model.TimestampLayout, sampleMemberSince)
	if err != nil {
		return nil, 0, err
	}

	var users []*model.User
	created := 0
	for _, su := range sampleUsers {
		u := &model.User{
			Username:    su.username,
			Fingerprint: su.fingerprint,
			Role:        model.RoleUser,
			MemberSince: memberSince,
		}
		err := s.users.CreateUser(ctx, u)
		if errors.Is(err, apperror.ErrConflict) {
			existing, err := s.users.GetUserByUsername(ctx, su.username)
			if err != nil {
				return nil, created, fmt.Errorf("loading sample user %q: %w", su.username, err)
			}
			users = append(users, existing)
			continue
		}
		if err != nil {
			return nil, created, fmt.Errorf("creating sample user %q: %w", su.username, err)
		}
		users = append(users, u)
		created++
	}
	return users, created, nil
}

func (s *Seeder) samplePosts(ctx context.Context) (int, error) {
	for i, sp := range samplePosts {
		ts, err := time.Parse(model.TimestampLayout, sp.timestamp)
		if err != nil {
			return i, fmt.Errorf("sample post %d: %w", i, err)
		}
		p := &model.Post{
			Title:     sp.title,
			Content:   sp.content,
			Username:  sp.username,
			CreatedAt: ts,
		}
		if err := s.posts.CreatePost(ctx, p); err != nil {
			return i, fmt.Errorf("creating sample post %d: %w", i, err)
		}
	}
	return len(samplePosts), nil
}

func (s *Seeder) fakeUsers(ctx context.Context, n int) ([]*model.User, error) {
	users := make([]*model.User, 0, n)
	for len(users) < n {
		u := &model.User{
			Username: fmt.Sprintf("%s%d", s.faker.Username(), s.faker.Number(100, 999)),
			Role:     model.RoleUser,
		}
		err := s.users.CreateUser(ctx, u)
		if errors.Is(err, apperror.ErrConflict) {
			continue
		}
		if err != nil {
			return users, fmt.Errorf("creating fake user: %w", err)
		}
		users = append(users, u)
	}
	return users, nil
}

// fakePosts spreads n posts over authors with timestamps in the last 90 days.
func (s *Seeder) fakePosts(ctx context.Context, authors []*model.User, n int) ([]*model.Post, error) {
	if n > 0 && len(authors) == 0 {
		return nil, errors.New("seed: no authors for fake posts")
	}

	now := time.Now().UTC()
	posts := make([]*model.Post, 0, n)
	for i := 0; i < n; i++ {
		author := authors[s.faker.Number(0, len(authors)-1)]
		p := &model.Post{
			Title:     s.faker.Sentence(5),
			Content:   s.faker.Paragraph(1, 3, 12, " "),
			Username:  author.Username,
			CreatedAt: s.faker.DateRange(now.AddDate(0, 0, -90), now),
		}
		if err := s.posts.CreatePost(ctx, p); err != nil {
			return posts, fmt.Errorf("creating fake post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// fakeLikes has each fake user like up to maxLikes distinct posts.
func (s *Seeder) fakeLikes(ctx context.Context, users []*model.User, posts []*model.Post, maxLikes int) (int, error) {
	if len(posts) == 0 || maxLikes <= 0 {
		return 0, nil
	}

	total := 0
	for _, u := range users {
		want := s.faker.Number(0, min(maxLikes, len(posts)))
		for _, idx := range s.faker.Rand.Perm(len(posts))[:want] {
			if _, err := s.posts.ToggleLike(ctx, u.ID, posts[idx].ID); err != nil {
				return total, fmt.Errorf("liking post: %w", err)
			}
			total++
		}
	}
	return total, nil
}
