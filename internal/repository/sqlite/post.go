package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
)

const postColumns = `id, title, content, username, created_at, likes`

func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	// created_at is stored as RFC3339 text and ordered as text, so every row
	// must carry the same offset.
	post.CreatedAt = post.CreatedAt.UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (id, title, content, username, created_at, likes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.Title,
		post.Content,
		post.Username,
		post.CreatedAt,
		post.Likes,
	)
	if err != nil {
		return apperror.StoreFailure(fmt.Sprintf("sqlite: inserting post by %q", post.Username), err)
	}
	return nil
}

func (db *DB) GetPost(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id,
	).Scan(&p.ID, &p.Title, &p.Content, &p.Username, &p.CreatedAt, &p.Likes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("post", id)
	}
	if err != nil {
		return nil, apperror.StoreFailure(fmt.Sprintf("sqlite: getting post %s", id), err)
	}
	return &p, nil
}

// ListPosts returns every post, newest first. rowid breaks timestamp ties in
// insertion order.
func (db *DB) ListPosts(ctx context.Context) ([]model.Post, error) {
	return db.queryPosts(ctx, "sqlite: listing posts",
		`SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, rowid DESC`)
}

func (db *DB) ListPostsByAuthor(ctx context.Context, username string) ([]model.Post, error) {
	return db.queryPosts(ctx, fmt.Sprintf("sqlite: listing posts by %q", username),
		`SELECT `+postColumns+` FROM posts WHERE username = ? ORDER BY created_at DESC, rowid DESC`,
		username)
}

func (db *DB) queryPosts(ctx context.Context, op, query string, args ...any) ([]model.Post, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.StoreFailure(op, err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.Username, &p.CreatedAt, &p.Likes); err != nil {
			return nil, apperror.StoreFailure(op, err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.StoreFailure(op, err)
	}
	return posts, nil
}

// DeletePost removes the post together with every Like row pointing at it.
func (db *DB) DeletePost(ctx context.Context, id string) error {
	op := fmt.Sprintf("sqlite: deleting post %s", id)

	return db.inTx(ctx, op, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM likes WHERE post_id = ?`, id); err != nil {
			return apperror.StoreFailure(op, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
		if err != nil {
			return apperror.StoreFailure(op, err)
		}
		return requireAffected(res, "post", id)
	})
}

// ToggleLike flips the like in a single transaction using conditional writes:
// the DELETE only succeeds if the row exists and the INSERT only succeeds if
// it does not, and the counter moves only when one of them changed a row.
// Two toggles can therefore never both observe "not liked" and both
// increment. The user is checked inside the same transaction so a toggle
// racing DeleteUserCascade cannot leave a like behind for a removed account.
func (db *DB) ToggleLike(ctx context.Context, userID, postID string) (model.LikeResult, error) {
	op := fmt.Sprintf("sqlite: toggling like on post %s", postID)
	var result model.LikeResult

	err := db.inTx(ctx, op, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, postID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("post", postID)
		}
		if err != nil {
			return apperror.StoreFailure(op, err)
		}
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("user", userID)
		}
		if err != nil {
			return apperror.StoreFailure(op, err)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM likes WHERE user_id = ? AND post_id = ?`, userID, postID)
		if err != nil {
			return apperror.StoreFailure(op, err)
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return apperror.StoreFailure(op, err)
		}

		delta := -1
		if removed == 0 {
			res, err = tx.ExecContext(ctx,
				`INSERT INTO likes (user_id, post_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
				userID, postID)
			if err != nil {
				return apperror.StoreFailure(op, err)
			}
			added, err := res.RowsAffected()
			if err != nil {
				return apperror.StoreFailure(op, err)
			}
			if added == 0 {
				return apperror.StoreFailure(op, errors.New("like row neither removed nor inserted"))
			}
			delta = 1
		}

		err = tx.QueryRowContext(ctx,
			`UPDATE posts SET likes = likes + ? WHERE id = ? RETURNING likes`, delta, postID,
		).Scan(&result.Likes)
		if err != nil {
			return apperror.StoreFailure(op, err)
		}
		result.Liked = delta > 0
		return nil
	})
	if err != nil {
		return model.LikeResult{}, err
	}
	return result, nil
}

// LikedPostIDs returns the set of posts userID has liked.
func (db *DB) LikedPostIDs(ctx context.Context, userID string) (map[string]bool, error) {
	op := fmt.Sprintf("sqlite: listing likes of user %s", userID)

	rows, err := db.conn.QueryContext(ctx, `SELECT post_id FROM likes WHERE user_id = ?`, userID)
	if err != nil {
		return nil, apperror.StoreFailure(op, err)
	}
	defer rows.Close()

	liked := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperror.StoreFailure(op, err)
		}
		liked[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.StoreFailure(op, err)
	}
	return liked, nil
}
