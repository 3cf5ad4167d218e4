package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sakif/microblog/internal/apperror"
)

// SaveSession upserts the encoded payload for a session id.
func (db *DB) SaveSession(ctx context.Context, id, data string, expiresAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, data, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
		id, data, expiresAt.UTC(),
	)
	if err != nil {
		return apperror.StoreFailure("sqlite: saving session", err)
	}
	return nil
}

func (db *DB) LoadSession(ctx context.Context, id string) (string, error) {
	var (
		data      string
		expiresAt time.Time
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT data, expires_at FROM sessions WHERE id = ?`, id,
	).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperror.NotFound("session", id)
	}
	if err != nil {
		return "", apperror.StoreFailure("sqlite: loading session", err)
	}
	if !expiresAt.After(time.Now()) {
		return "", apperror.NotFound("session", id)
	}
	return data, nil
}

// DeleteSession is idempotent: deleting an unknown id is not an error.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return apperror.StoreFailure("sqlite: deleting session", err)
	}
	return nil
}

func (db *DB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, apperror.StoreFailure("sqlite: pruning sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperror.StoreFailure("sqlite: pruning sessions", err)
	}
	return n, nil
}
