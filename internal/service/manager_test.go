package service_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"blogsite/internal/domain"
	"blogsite/internal/repository"
	"blogsite/internal/repository/sqlite"
	"blogsite/internal/service"
)

type testDeps struct {
	repo    repository.UserRepository
	manager *service.Manager
	users   service.UserService
	logs    *test.Hook
}

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func setupTest(t *testing.T) *testDeps {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	manager := service.NewManager(repo,
		service.WithHashCost(bcrypt.MinCost),
		service.WithClock(func() time.Time { return fixedNow }),
	)
	return &testDeps{
		repo:    repo,
		manager: manager,
		users:   service.NewUserService(repo, manager, logger),
		logs:    hook,
	}
}

const (
	testEmail    = "test@example.com"
	testUsername = "test_user"
	testPassword = "testpass123"
)

func TestCreateUserSuccessful(t *testing.T) {
	d := setupTest(t)

	user, err := d.manager.CreateUser(context.Background(), testEmail, testUsername, testPassword, service.ExtraFields{})
	require.NoError(t, err)

	assert.Positive(t, user.ID)
	assert.Equal(t, testEmail, user.Email)
	assert.Equal(t, testUsername, user.Username)
	assert.True(t, d.manager.CheckPassword(user, testPassword))
	assert.False(t, d.manager.CheckPassword(user, "wrong"))
	assert.True(t, user.IsActive)
	assert.False(t, user.IsStaff)
	assert.False(t, user.IsSuperuser)
	assert.True(t, user.Created.Equal(fixedNow))
	assert.NotEqual(t, testPassword, user.PasswordHash)
}

func TestCreateUserRequiredFields(t *testing.T) {
	testCases := []struct {
		name        string
		email       string
		username    string
		expectedErr error
	}{
		{name: "Missing email", email: "", username: testUsername, expectedErr: service.ErrEmailRequired},
		{name: "Blank email", email: "   ", username: testUsername, expectedErr: service.ErrEmailRequired},
		{name: "Missing username", email: testEmail, username: "", expectedErr: service.ErrUsernameRequired},
		{name: "Both missing reports email first", email: "", username: "", expectedErr: service.ErrEmailRequired},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := setupTest(t)

			user, err := d.manager.CreateUser(context.Background(), tc.email, tc.username, testPassword, service.ExtraFields{})
			assert.ErrorIs(t, err, tc.expectedErr)
			assert.Nil(t, user)

			n, err := d.repo.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestCreateUserNormalizesEmail(t *testing.T) {
	d := setupTest(t)

	user, err := d.manager.CreateUser(context.Background(), "  John.Doe@EXAMPLE.COM ", testUsername, testPassword, service.ExtraFields{})
	require.NoError(t, err)
	assert.Equal(t, "John.Doe@example.com", user.Email)
}

func TestCreateUserExtraFields(t *testing.T) {
	d := setupTest(t)

	user, err := d.manager.CreateUser(context.Background(), testEmail, testUsername, testPassword, service.ExtraFields{
		IsStaff:  service.Bool(true),
		IsActive: service.Bool(false),
	})
	require.NoError(t, err)
	assert.True(t, user.IsStaff)
	assert.False(t, user.IsActive)
	assert.False(t, user.IsSuperuser)
}

func TestCreateUserWithoutPassword(t *testing.T) {
	d := setupTest(t)

	user, err := d.manager.CreateUser(context.Background(), testEmail, testUsername, "", service.ExtraFields{})
	require.NoError(t, err)
	assert.False(t, user.HasUsablePassword())
	assert.True(t, strings.HasPrefix(user.PasswordHash, domain.UnusablePasswordPrefix))
	assert.False(t, d.manager.CheckPassword(user, ""))
	assert.False(t, d.manager.CheckPassword(user, user.PasswordHash))
}

func TestCreateUserDuplicates(t *testing.T) {
	d := setupTest(t)
	ctx := context.Background()

	_, err := d.manager.CreateUser(ctx, testEmail, testUsername, testPassword, service.ExtraFields{})
	require.NoError(t, err)

	_, err = d.manager.CreateUser(ctx, "test@EXAMPLE.com", "someone_else", testPassword, service.ExtraFields{})
	assert.ErrorIs(t, err, service.ErrEmailTaken)

	_, err = d.manager.CreateUser(ctx, "other@example.com", testUsername, testPassword, service.ExtraFields{})
	assert.ErrorIs(t, err, service.ErrUsernameTaken)
}

func TestCreateSuperuserSuccessful(t *testing.T) {
	d := setupTest(t)

	admin, err := d.manager.CreateSuperuser(context.Background(), "admin@example.com", "admin", "adminpass123", service.ExtraFields{})
	require.NoError(t, err)

	assert.Equal(t, "admin@example.com", admin.Email)
	assert.True(t, admin.IsActive)
	assert.True(t, admin.IsStaff)
	assert.True(t, admin.IsSuperuser)

	stored, err := d.repo.GetByID(context.Background(), admin.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.True(t, stored.IsStaff)
	assert.True(t, stored.IsSuperuser)
}

func TestCreateSuperuserRejectsExplicitFalse(t *testing.T) {
	testCases := []struct {
		name        string
		extra       service.ExtraFields
		expectedErr error
	}{
		{
			name:        "is_staff false",
			extra:       service.ExtraFields{IsStaff: service.Bool(false)},
			expectedErr: service.ErrSuperuserNotStaff,
		},
		{
			name:        "is_superuser false",
			extra:       service.ExtraFields{IsSuperuser: service.Bool(false)},
			expectedErr: service.ErrSuperuserNotSuperuser,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := setupTest(t)

			_, err := d.manager.CreateSuperuser(context.Background(), "admin@example.com", "admin", "adminpass123", tc.extra)
			assert.ErrorIs(t, err, tc.expectedErr)

			n, err := d.repo.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestCreateSuperuserInactiveAllowed(t *testing.T) {
	d := setupTest(t)

	admin, err := d.manager.CreateSuperuser(context.Background(), "admin@example.com", "admin", "adminpass123", service.ExtraFields{
		IsActive: service.Bool(false),
	})
	require.NoError(t, err)
	assert.False(t, admin.IsActive)
	assert.True(t, admin.IsStaff)
}

func TestSetFlags(t *testing.T) {
	d := setupTest(t)
	ctx := context.Background()

	_, err := d.manager.CreateUser(ctx, testEmail, testUsername, testPassword, service.ExtraFields{})
	require.NoError(t, err)

	updated, err := d.manager.SetFlags(ctx, "test@Example.com", service.ExtraFields{IsStaff: service.Bool(true)})
	require.NoError(t, err)
	assert.True(t, updated.IsStaff)
	assert.True(t, updated.IsActive, "unsupplied flags keep their value")

	stored, err := d.repo.GetByEmail(ctx, testEmail)
	require.NoError(t, err)
	assert.True(t, stored.IsStaff)
	assert.True(t, stored.IsActive)

	_, err = d.manager.SetFlags(ctx, "ghost@example.com", service.ExtraFields{IsStaff: service.Bool(true)})
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserStringRepresentation(t *testing.T) {
	d := setupTest(t)

	user, err := d.manager.CreateUser(context.Background(), testEmail, testUsername, testPassword, service.ExtraFields{})
	require.NoError(t, err)
	assert.Equal(t, testUsername, user.String())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "Foo@example.com", service.NormalizeEmail("Foo@EXAMPLE.com"))
	assert.Equal(t, "a@b@example.com", service.NormalizeEmail("a@b@Example.COM"))
	assert.Equal(t, "no-at-sign", service.NormalizeEmail("no-at-sign"))
}
