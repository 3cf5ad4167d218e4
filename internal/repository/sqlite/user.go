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

const userColumns = `id, username, fingerprint, avatar_url, role, member_since`

// CreateUser inserts a new account. The UNIQUE constraints on username and
// fingerprint are the final arbiter of duplicates; a violation is reported as
// a Conflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	if user.MemberSince.IsZero() {
		user.MemberSince = time.Now().UTC()
	}
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, fingerprint, avatar_url, role, member_since)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		nullable(user.Fingerprint),
		user.AvatarURL,
		string(user.Role),
		user.MemberSince,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("Username already exists")
		}
		return apperror.StoreFailure(fmt.Sprintf("sqlite: inserting user %q", user.Username), err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row, "id", id)
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row, "username", username)
}

func (db *DB) GetUserByFingerprint(ctx context.Context, fingerprint string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE fingerprint = ?`, fingerprint)
	return scanUser(row, "fingerprint", fingerprint)
}

// ListUsersMissingAvatar feeds the startup avatar backfill.
func (db *DB) ListUsersMissingAvatar(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE avatar_url = '' ORDER BY member_since`)
	if err != nil {
		return nil, apperror.StoreFailure("sqlite: listing users missing avatar", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, apperror.StoreFailure("sqlite: scanning user", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.StoreFailure("sqlite: iterating users", err)
	}
	return users, nil
}

func (db *DB) UpdateAvatar(ctx context.Context, id, avatarURL string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET avatar_url = ? WHERE id = ?`, avatarURL, id)
	if err != nil {
		return apperror.StoreFailure(fmt.Sprintf("sqlite: updating avatar of user %s", id), err)
	}
	return requireAffected(res, "user", id)
}

func (db *DB) UpdateRole(ctx context.Context, id string, role model.Role) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE id = ?`, string(role), id)
	if err != nil {
		return apperror.StoreFailure(fmt.Sprintf("sqlite: updating role of user %s", id), err)
	}
	return requireAffected(res, "user", id)
}

// DeleteUserCascade removes an account and everything hanging off it in one
// transaction.
//
// Order matters: the counters of posts the user liked are decremented while
// the user's like rows still exist to say which posts those are. The user's
// own posts may be among them; they are deleted right after, so the
// decrement is harmless there.
func (db *DB) DeleteUserCascade(ctx context.Context, id string) error {
	op := fmt.Sprintf("sqlite: deleting user %s", id)

	return db.inTx(ctx, op, func(tx *sql.Tx) error {
		var username string
		err := tx.QueryRowContext(ctx, `SELECT username FROM users WHERE id = ?`, id).Scan(&username)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("user", id)
		}
		if err != nil {
			return apperror.StoreFailure(op, err)
		}

		steps := []struct {
			query string
			arg   string
		}{
			{`UPDATE posts SET likes = likes - 1
			  WHERE id IN (SELECT post_id FROM likes WHERE user_id = ?)`, id},
			{`DELETE FROM likes WHERE user_id = ?`, id},
			{`DELETE FROM likes WHERE post_id IN (SELECT id FROM posts WHERE username = ?)`, username},
			{`DELETE FROM posts WHERE username = ?`, username},
			{`DELETE FROM users WHERE id = ?`, id},
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.query, step.arg); err != nil {
				return apperror.StoreFailure(op, err)
			}
		}
		return nil
	})
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUserRow(s scanner) (*model.User, error) {
	var (
		u           model.User
		fingerprint sql.NullString
		role        string
	)
	err := s.Scan(&u.ID, &u.Username, &fingerprint, &u.AvatarURL, &role, &u.MemberSince)
	if err != nil {
		return nil, err
	}
	u.Fingerprint = fingerprint.String
	u.Role = model.Role(role)
	return &u, nil
}

func scanUser(row *sql.Row, key, value string) (*model.User, error) {
	u, err := scanUserRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", value)
	}
	if err != nil {
		return nil, apperror.StoreFailure(fmt.Sprintf("sqlite: getting user by %s", key), err)
	}
	return u, nil
}

// requireAffected turns a zero-row UPDATE/DELETE into NotFound.
func requireAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.StoreFailure(fmt.Sprintf("sqlite: checking rows affected for %s %s", resource, id), err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
