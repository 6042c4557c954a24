package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"blogsite/internal/repository"
)

const createRevokedSessionsTable = `
CREATE TABLE IF NOT EXISTS revoked_sessions (
	token_id TEXT PRIMARY KEY,
	expires_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_revoked_sessions_expires ON revoked_sessions (expires_at);
`

type RevokedSessionRepository struct {
	db *sql.DB
}

func NewRevokedSessionRepository(db *sql.DB) repository.RevokedSessionRepository {
	return &RevokedSessionRepository{db: db}
}

func (r *RevokedSessionRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createRevokedSessionsTable); err != nil {
		return fmt.Errorf("create revoked_sessions table: %w", err)
	}
	return nil
}

// Revoke is idempotent; revoking the same id twice keeps the first expiry.
func (r *RevokedSessionRepository) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_sessions (token_id, expires_at) VALUES (?, ?)`,
		tokenID, expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (r *RevokedSessionRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_sessions WHERE token_id = ?)`, tokenID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check revoked session: %w", err)
	}
	return exists, nil
}

// PurgeExpired drops revocations whose token has expired anyway.
func (r *RevokedSessionRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM revoked_sessions WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge revoked sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge revoked sessions rows: %w", err)
	}
	return n, nil
}
