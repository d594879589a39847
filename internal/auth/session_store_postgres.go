package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type PostgresSessionStore struct {
	db *sql.DB
}

// NewPostgresSessionStore expects the auth_sessions table to exist; see
// internal/migrations.
func NewPostgresSessionStore(db *sql.DB) (*PostgresSessionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresSessionStore{db: db}, nil
}

func (s *PostgresSessionStore) Create(ctx context.Context, sess Session) error {
	snapshot, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("encode session snapshot: %w", err)
	}
	const q = `
INSERT INTO auth_sessions (id, user_id, snapshot, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.db.ExecContext(ctx, q, sess.ID, sess.User.ID, snapshot, sess.CreatedAt, sess.ExpiresAt); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) Get(ctx context.Context, id string) (Session, error) {
	const q = `SELECT id, snapshot, created_at, expires_at FROM auth_sessions WHERE id = $1`
	var sess Session
	var snapshot []byte
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&sess.ID, &snapshot, &sess.CreatedAt, &sess.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("query session: %w", err)
	}
	if err := json.Unmarshal(snapshot, &sess.User); err != nil {
		return Session{}, fmt.Errorf("decode session snapshot: %w", err)
	}
	return sess, nil
}

func (s *PostgresSessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired sessions rows affected: %w", err)
	}
	return n, nil
}
