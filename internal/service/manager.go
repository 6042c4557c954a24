package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"blogsite/internal/domain"
	"blogsite/internal/repository"
)

var (
	// ErrEmailRequired is returned when a user is constructed without an email.
	ErrEmailRequired = errors.New("user must have an email address")
	// ErrUsernameRequired is returned when a user is constructed without a username.
	ErrUsernameRequired = errors.New("user must have a username")
	// ErrSuperuserNotStaff is returned when a superuser is requested with IsStaff=false.
	ErrSuperuserNotStaff = errors.New("superuser must have is_staff=true")
	// ErrSuperuserNotSuperuser is returned when a superuser is requested with IsSuperuser=false.
	ErrSuperuserNotSuperuser = errors.New("superuser must have is_superuser=true")
	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken is returned when the username is already registered.
	ErrUsernameTaken = errors.New("username already registered")
)

// ExtraFields carries optional account flags. A nil field means "not supplied".
type ExtraFields struct {
	IsStaff     *bool
	IsActive    *bool
	IsSuperuser *bool
}

func (f ExtraFields) apply(user *domain.User) {
	if f.IsStaff != nil {
		user.IsStaff = *f.IsStaff
	}
	if f.IsActive != nil {
		user.IsActive = *f.IsActive
	}
	if f.IsSuperuser != nil {
		user.IsSuperuser = *f.IsSuperuser
	}
}

// Bool returns a pointer to v, for building ExtraFields.
func Bool(v bool) *bool {
	return &v
}

// Manager builds and persists user records.
type Manager struct {
	users repository.UserRepository
	cost  int
	now   func() time.Time
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) ManagerOption {
	return func(m *Manager) { m.cost = cost }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(users repository.UserRepository, opts ...ManagerOption) *Manager {
	m := &Manager{
		users: users,
		cost:  bcrypt.DefaultCost,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateUser validates required fields, normalizes the email, hashes the password
// and stores the user. An empty password produces an account that cannot log in.
func (m *Manager) CreateUser(ctx context.Context, email, username, password string, extra ExtraFields) (*domain.User, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if username == "" {
		return nil, ErrUsernameRequired
	}

	hash, err := m.hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		Email:        NormalizeEmail(email),
		PasswordHash: hash,
		IsActive:     true,
		Created:      m.now().UTC(),
	}
	extra.apply(user)

	if _, err := m.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrEmailTaken
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return user, nil
}

// CreateSuperuser creates a user with every administrative flag set.
func (m *Manager) CreateSuperuser(ctx context.Context, email, username, password string, extra ExtraFields) (*domain.User, error) {
	if extra.IsStaff == nil {
		extra.IsStaff = Bool(true)
	}
	if extra.IsSuperuser == nil {
		extra.IsSuperuser = Bool(true)
	}
	if extra.IsActive == nil {
		extra.IsActive = Bool(true)
	}

	if !*extra.IsStaff {
		return nil, ErrSuperuserNotStaff
	}
	if !*extra.IsSuperuser {
		return nil, ErrSuperuserNotSuperuser
	}

	return m.CreateUser(ctx, email, username, password, extra)
}

// SetFlags applies the supplied flags to the user registered under email.
func (m *Manager) SetFlags(ctx context.Context, email string, flags ExtraFields) (*domain.User, error) {
	user, err := m.users.GetByEmail(ctx, NormalizeEmail(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	flags.apply(user)
	if err := m.users.UpdateFlags(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CheckPassword reports whether password matches the stored hash.
func (m *Manager) CheckPassword(user *domain.User, password string) bool {
	if user == nil || !user.HasUsablePassword() {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func (m *Manager) hashPassword(password string) (string, error) {
	if password == "" {
		return domain.UnusablePasswordPrefix + uuid.NewString(), nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// NormalizeEmail lowercases the domain part of an email address.
func NormalizeEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}
