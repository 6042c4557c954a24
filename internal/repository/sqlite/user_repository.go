package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"blogsite/internal/domain"
	"blogsite/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username VARCHAR(50) NOT NULL UNIQUE,
	email VARCHAR(50) NOT NULL UNIQUE COLLATE NOCASE,
	password_hash TEXT NOT NULL,
	is_staff BOOLEAN NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT 1,
	is_superuser BOOLEAN NOT NULL DEFAULT 0,
	created DATETIME NOT NULL,
	last_login DATETIME
);
CREATE INDEX IF NOT EXISTS idx_email ON users (email);
CREATE INDEX IF NOT EXISTS idx_username ON users (username);
`

const selectUserColumns = `
SELECT id, username, email, password_hash, is_staff, is_active, is_superuser, created, last_login
FROM users`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	if user.Created.IsZero() {
		user.Created = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, email, password_hash, is_staff, is_active, is_superuser, created)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.IsStaff,
		user.IsActive,
		user.IsSuperuser,
		user.Created,
	)
	if err != nil {
		if dup := uniqueViolation(err); dup != nil {
			return 0, fmt.Errorf("insert user: %w", dup)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUserColumns+`
WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUserColumns+`
WHERE email = ?`,
		email,
	)
	return scanUser(row)
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) UpdateFlags(ctx context.Context, user *domain.User) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET is_staff = ?, is_active = ?, is_superuser = ?
WHERE id = ?`,
		user.IsStaff,
		user.IsActive,
		user.IsSuperuser,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user flags: %w", err)
	}
	return expectOneRow(res)
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return expectOneRow(res)
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

// uniqueViolation maps a sqlite UNIQUE failure to the matching sentinel, or nil.
func uniqueViolation(err error) error {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "unique") {
		return nil
	}
	switch {
	case strings.Contains(msg, "users.email"):
		return repository.ErrDuplicateEmail
	case strings.Contains(msg, "users.username"):
		return repository.ErrDuplicateUsername
	default:
		return nil
	}
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user      domain.User
		lastLogin sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsStaff,
		&user.IsActive,
		&user.IsSuperuser,
		&user.Created,
		&lastLogin,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return &user, nil
}
