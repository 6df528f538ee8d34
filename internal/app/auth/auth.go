package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"ridehub/internal/app/ds"
)

// ErrInvalidToken covers every validation failure: bad signature,
// expired token, unknown subject.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated subject: the account id in wire form
// plus its role.
type Identity struct {
	ID   string
	Role string
}

// CanOperate reports whether the identity may hold an operator
// connection or call admin endpoints.
func (i Identity) CanOperate() bool {
	return i.Role == "admin" || i.Role == "viewer"
}

// Authenticator validates a bearer token into an Identity.
type Authenticator interface {
	Validate(ctx context.Context, token string) (Identity, error)
}

var _ Authenticator = (*TokenService)(nil)

// UserLookup is the slice of the store the token service needs.
type UserLookup interface {
	FindUserByPhone(ctx context.Context, phone string) (*ds.User, error)
}

// TokenService issues and validates HS256 bearer tokens. The subject
// claim is the account phone number; validation resolves it back to an
// account so revoked accounts fail even with a live token.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	users  UserLookup
}

func NewTokenService(secret string, ttl time.Duration, users UserLookup) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, users: users}
}

// Issue creates a token for the user.
func (s *TokenService) Issue(user *ds.User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.Phone,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate checks the token signature and expiry and resolves the
// subject to an account.
func (s *TokenService) Validate(ctx context.Context, raw string) (Identity, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	user, err := s.users.FindUserByPhone(ctx, claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("resolve token subject: %w", err)
	}
	if user == nil {
		return Identity{}, ErrInvalidToken
	}
	return Identity{ID: strconv.FormatInt(user.ID, 10), Role: user.Role}, nil
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
