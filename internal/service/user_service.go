package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"blogsite/internal/domain"
	"blogsite/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// MaxFieldLength bounds username and email, matching the users table.
const MaxFieldLength = 50

// MsgRequired is attached to blank required fields.
const MsgRequired = "This field is required."

// MsgInvalidLogin is shown for every failed login so accounts cannot be probed.
const MsgInvalidLogin = "Please enter a correct email and password."

const (
	msgTooLong          = "Ensure this value has at most 50 characters."
	msgEmailBusy        = "This email is busy"
	msgUsernameBusy     = "A user with that username already exists."
	msgPasswordMismatch = "The two password fields didn't match."
)

// RegistrationForm holds submitted registration input.
type RegistrationForm struct {
	Username  string
	Email     string
	Password1 string
	Password2 string
}

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, form RegistrationForm) (*domain.User, error)
	Validate(ctx context.Context, form RegistrationForm, seed FieldErrors) (FieldErrors, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type userService struct {
	users   repository.UserRepository
	manager *Manager
	logger  logrus.FieldLogger
	now     func() time.Time
}

func NewUserService(users repository.UserRepository, manager *Manager, logger logrus.FieldLogger) UserService {
	if logger == nil {
		logger = logrus.New()
	}
	return &userService{
		users:   users,
		manager: manager,
		logger:  logger,
		now:     time.Now,
	}
}

// Register validates the form and creates the user. Validation failures are
// returned as *FormError.
func (s *userService) Register(ctx context.Context, form RegistrationForm) (*domain.User, error) {
	form = form.trimmed()

	errs, err := s.Validate(ctx, form, nil)
	if err != nil {
		return nil, err
	}
	if err := newFormError(errs); err != nil {
		return nil, err
	}

	user, err := s.manager.CreateUser(ctx, form.Email, form.Username, form.Password1, ExtraFields{})
	if err != nil {
		// lost a race with a concurrent registration
		switch {
		case errors.Is(err, ErrEmailTaken):
			return nil, newFormError(FieldErrors{"email": {msgEmailBusy}})
		case errors.Is(err, ErrUsernameTaken):
			return nil, newFormError(FieldErrors{"username": {msgUsernameBusy}})
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("user registered")
	return sanitizeUser(user), nil
}

func (f RegistrationForm) trimmed() RegistrationForm {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
	return f
}

// Validate runs every registration check in one pass and returns the
// collected field errors, starting from seed. It never creates a user.
func (s *userService) Validate(ctx context.Context, form RegistrationForm, seed FieldErrors) (FieldErrors, error) {
	form = form.trimmed()
	errs := FieldErrors{}
	errs.Merge(seed)

	for field, value := range map[string]string{
		"username":  form.Username,
		"email":     form.Email,
		"password1": form.Password1,
		"password2": form.Password2,
	} {
		if value == "" {
			errs.Add(field, MsgRequired)
		}
	}
	if utf8.RuneCountInString(form.Username) > MaxFieldLength {
		errs.Add("username", msgTooLong)
	}
	if utf8.RuneCountInString(form.Email) > MaxFieldLength {
		errs.Add("email", msgTooLong)
	}

	if form.Email != "" && !errs.Has("email") {
		exists, err := s.users.EmailExists(ctx, NormalizeEmail(form.Email))
		if err != nil {
			return nil, err
		}
		if exists {
			errs.Add("email", msgEmailBusy)
		}
	}

	if form.Password1 == "" || form.Password2 == "" {
		return errs, nil
	}
	if form.Password1 != form.Password2 {
		errs.Add("password2", msgPasswordMismatch)
	} else {
		for _, msg := range ValidatePassword(form.Password2, form.Username, form.Email) {
			errs.Add("password2", msg)
		}
	}

	return errs, nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive || !s.manager.CheckPassword(user, password) {
		s.logger.WithField("user_id", user.ID).Warn("rejected login")
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now

	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clean := *user
	clean.PasswordHash = ""
	return &clean
}
