package repository

import (
	"context"
	"errors"
	"time"

	"blogsite/internal/domain"
)

var (
	// ErrUserNotFound is returned when no user matches a lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when the email unique constraint rejects a write.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrDuplicateUsername is returned when the username unique constraint rejects a write.
	ErrDuplicateUsername = errors.New("username already exists")
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdateFlags(ctx context.Context, user *domain.User) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	Count(ctx context.Context) (int64, error)
}
