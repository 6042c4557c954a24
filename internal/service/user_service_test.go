package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogsite/internal/service"
)

const strongPassword = "Str0ng-Passw0rd!"

func validForm() service.RegistrationForm {
	return service.RegistrationForm{
		Username:  "newuser",
		Email:     "new@example.com",
		Password1: strongPassword,
		Password2: strongPassword,
	}
}

func formErrors(t *testing.T, err error) service.FieldErrors {
	t.Helper()
	var formErr *service.FormError
	require.True(t, errors.As(err, &formErr), "expected *FormError, got %v", err)
	return formErr.Fields
}

func TestRegisterSuccessful(t *testing.T) {
	d := setupTest(t)
	ctx := context.Background()

	user, err := d.users.Register(ctx, validForm())
	require.NoError(t, err)
	assert.Equal(t, "newuser", user.Username)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Empty(t, user.PasswordHash, "returned user must not carry the hash")

	n, err := d.repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	stored, err := d.repo.GetByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.True(t, d.manager.CheckPassword(stored, strongPassword))

	require.NotEmpty(t, d.logs.Entries)
	assert.Equal(t, "user registered", d.logs.LastEntry().Message)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	d := setupTest(t)
	ctx := context.Background()

	_, err := d.manager.CreateUser(ctx, "taken@example.com", "owner", testPassword, service.ExtraFields{})
	require.NoError(t, err)

	form := validForm()
	form.Email = "taken@example.com"
	user, err := d.users.Register(ctx, form)
	assert.Nil(t, user)

	fields := formErrors(t, err)
	assert.Equal(t, []string{"This email is busy"}, fields.Get("email"))

	n, err := d.repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRegisterValidation(t *testing.T) {
	testCases := []struct {
		name     string
		mutate   func(*service.RegistrationForm)
		field    string
		contains string
	}{
		{
			name:     "Password mismatch",
			mutate:   func(f *service.RegistrationForm) { f.Password2 = "Different-Passw0rd!" },
			field:    "password2",
			contains: "didn't match",
		},
		{
			name: "Short password",
			mutate: func(f *service.RegistrationForm) {
				f.Password1, f.Password2 = "Ab1!", "Ab1!"
			},
			field:    "password2",
			contains: "too short",
		},
		{
			name: "Numeric password",
			mutate: func(f *service.RegistrationForm) {
				f.Password1, f.Password2 = "90817263544", "90817263544"
			},
			field:    "password2",
			contains: "entirely numeric",
		},
		{
			name: "Common password",
			mutate: func(f *service.RegistrationForm) {
				f.Password1, f.Password2 = "password123", "password123"
			},
			field:    "password2",
			contains: "too common",
		},
		{
			name: "Password similar to username",
			mutate: func(f *service.RegistrationForm) {
				f.Password1, f.Password2 = "newuser2026", "newuser2026"
			},
			field:    "password2",
			contains: "too similar to the username",
		},
		{
			name:     "Missing username",
			mutate:   func(f *service.RegistrationForm) { f.Username = "  " },
			field:    "username",
			contains: "required",
		},
		{
			name:     "Missing email",
			mutate:   func(f *service.RegistrationForm) { f.Email = "" },
			field:    "email",
			contains: "required",
		},
		{
			name:     "Username too long",
			mutate:   func(f *service.RegistrationForm) { f.Username = "u123456789u123456789u123456789u123456789u123456789x" },
			field:    "username",
			contains: "at most 50",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := setupTest(t)
			ctx := context.Background()

			form := validForm()
			tc.mutate(&form)

			_, err := d.users.Register(ctx, form)
			fields := formErrors(t, err)
			require.True(t, fields.Has(tc.field), "expected error on %s, got %v", tc.field, fields)
			assert.Contains(t, fields.Get(tc.field)[0], tc.contains)

			n, err := d.repo.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestRegisterLengthCountsCharacters(t *testing.T) {
	d := setupTest(t)
	ctx := context.Background()

	form := validForm()
	form.Username = strings.Repeat("Ж", 30)
	user, err := d.users.Register(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, form.Username, user.Username)

	form = validForm()
	form.Email = "other@example.com"
	form.Username = strings.Repeat("Ж", service.MaxFieldLength+1)
	_, err = d.users.Register(ctx, form)
	fields := formErrors(t, err)
	assert.Equal(t, []string{"Ensure this value has at most 50 characters."}, fields.Get("username"))
}

func TestValidateCollectsSeededErrors(t *testing.T) {
	d := setupTest(t)
	ctx := context.Background()

	_, err := d.manager.CreateUser(ctx, "taken@example.com", "owner", testPassword, service.ExtraFields{})
	require.NoError(t, err)

	form := service.RegistrationForm{
		Email:     "taken@example.com",
		Password1: strongPassword,
		Password2: "Different-Passw0rd!",
	}
	seed := service.FieldErrors{"username": {service.MsgRequired}}

	fields, err := d.users.Validate(ctx, form, seed)
	require.NoError(t, err)
	assert.Equal(t, []string{service.MsgRequired}, fields.Get("username"), "duplicate messages collapse")
	assert.Equal(t, []string{"This email is busy"}, fields.Get("email"))
	assert.Equal(t, []string{"The two password fields didn't match."}, fields.Get("password2"))
	assert.Equal(t, []string{service.MsgRequired}, seed.Get("username"), "seed is not modified")

	seed = service.FieldErrors{"email": {"Enter a valid email address."}}
	fields, err = d.users.Validate(ctx, service.RegistrationForm{Username: "x", Email: "taken@example.com"}, seed)
	require.NoError(t, err)
	assert.Equal(t, []string{"Enter a valid email address."}, fields.Get("email"), "lookup skipped when email already invalid")

	n, err := d.repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRegisterDuplicateUsernameReportedOnField(t *testing.T) {
	d := setupTest(t)
	ctx := context.Background()

	_, err := d.users.Register(ctx, validForm())
	require.NoError(t, err)

	form := validForm()
	form.Email = "another@example.com"
	_, err = d.users.Register(ctx, form)
	fields := formErrors(t, err)
	assert.Equal(t, []string{"A user with that username already exists."}, fields.Get("username"))
}

func TestAuthenticate(t *testing.T) {
	d := setupTest(t)
	ctx := context.Background()

	registered, err := d.users.Register(ctx, validForm())
	require.NoError(t, err)

	_, err = d.manager.CreateUser(ctx, "inactive@example.com", "inactive", strongPassword, service.ExtraFields{IsActive: service.Bool(false)})
	require.NoError(t, err)
	_, err = d.manager.CreateUser(ctx, "nopass@example.com", "nopass", "", service.ExtraFields{})
	require.NoError(t, err)

	testCases := []struct {
		name        string
		email       string
		password    string
		expectedErr error
	}{
		{name: "Valid credentials", email: "new@example.com", password: strongPassword},
		{name: "Email domain case ignored", email: "new@EXAMPLE.com", password: strongPassword},
		{name: "Wrong password", email: "new@example.com", password: "nope", expectedErr: service.ErrInvalidCredentials},
		{name: "Unknown email", email: "ghost@example.com", password: strongPassword, expectedErr: service.ErrInvalidCredentials},
		{name: "Inactive user", email: "inactive@example.com", password: strongPassword, expectedErr: service.ErrInvalidCredentials},
		{name: "Unusable password", email: "nopass@example.com", password: "", expectedErr: service.ErrInvalidCredentials},
		{name: "Empty email", email: "", password: strongPassword, expectedErr: service.ErrInvalidCredentials},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			user, err := d.users.Authenticate(ctx, tc.email, tc.password)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, registered.ID, user.ID)
			assert.Empty(t, user.PasswordHash)
			require.NotNil(t, user.LastLogin)
		})
	}

	stored, err := d.repo.GetByID(ctx, registered.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)
}

func TestFormErrorMessage(t *testing.T) {
	err := &service.FormError{Fields: service.FieldErrors{
		"password2": {"b"},
		"email":     {"a"},
	}}
	assert.Equal(t, "invalid form: email: a; password2: b", err.Error())
}

func TestFieldErrorsAddAndMerge(t *testing.T) {
	errs := service.FieldErrors{}
	errs.Add("email", "a")
	errs.Add("email", "a")
	errs.Merge(service.FieldErrors{"email": {"a", "b"}, "username": {"c"}})

	assert.Equal(t, []string{"a", "b"}, errs.Get("email"))
	assert.Equal(t, []string{"c"}, errs.Get("username"))
}
