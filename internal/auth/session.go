// Package auth issues and verifies the signed session tokens carried in the
// session cookie.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultCookieName is the session cookie name used when none is configured.
const DefaultCookieName = "blogsite_session"

// ErrInvalidSession is returned for missing, malformed, expired or forged tokens.
var ErrInvalidSession = errors.New("invalid session")

// Claims is the payload of a session token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserID returns the subject as a user id.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidSession
	}
	return id, nil
}

// Revocations remembers tokens that were logged out before they expired.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Sessions signs session tokens and manages the cookie that carries them.
type Sessions struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	revoked    Revocations
	now        func() time.Time
}

// Config configures Sessions. Without Revocations a logged-out token stays
// valid until it expires.
type Config struct {
	Secret       string
	TTL          time.Duration
	CookieName   string
	SecureCookie bool
	Revocations  Revocations
}

func NewSessions(cfg Config) (*Sessions, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 14 * 24 * time.Hour
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	return &Sessions{
		secret:     []byte(cfg.Secret),
		ttl:        cfg.TTL,
		cookieName: cfg.CookieName,
		secure:     cfg.SecureCookie,
		revoked:    cfg.Revocations,
		now:        time.Now,
	}, nil
}

// CookieName returns the name of the session cookie.
func (s *Sessions) CookieName() string {
	return s.cookieName
}

// Issue signs a token for the given user.
func (s *Sessions) Issue(userID int64, email string) (string, error) {
	now := s.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// Parse verifies a token and returns its claims.
func (s *Sessions) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Login issues a token and writes it to the session cookie.
func (s *Sessions) Login(w http.ResponseWriter, userID int64, email string) error {
	token, err := s.Issue(userID, email)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Logout revokes the token carried by r, if any, and expires the cookie.
func (s *Sessions) Logout(w http.ResponseWriter, r *http.Request) error {
	var err error
	if claims, readErr := s.Read(r); readErr == nil && s.revoked != nil && claims.ID != "" {
		expires := s.now().Add(s.ttl)
		if claims.ExpiresAt != nil {
			expires = claims.ExpiresAt.Time
		}
		if revokeErr := s.revoked.Revoke(r.Context(), claims.ID, expires); revokeErr != nil {
			err = fmt.Errorf("revoke session: %w", revokeErr)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return err
}

// Read returns the claims of the session cookie on r. Revoked tokens are
// reported as ErrInvalidSession.
func (s *Sessions) Read(r *http.Request) (*Claims, error) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil {
		return nil, ErrInvalidSession
	}
	value := strings.TrimSpace(cookie.Value)
	if value == "" {
		return nil, ErrInvalidSession
	}
	claims, err := s.Parse(value)
	if err != nil {
		return nil, err
	}
	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check session revocation: %w", err)
		}
		if revoked {
			return nil, ErrInvalidSession
		}
	}
	return claims, nil
}
