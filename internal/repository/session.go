package repository

import (
	"context"
	"time"
)

// RevokedSessionRepository records session token ids that were logged out
// before they expired.
type RevokedSessionRepository interface {
	Init(ctx context.Context) error
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
