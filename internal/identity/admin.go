// Package identity resolves admin sessions to application users.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"support-chat/internal/models"
	"support-chat/internal/repositories"
	"support-chat/internal/support"
)

var (
	ErrInvalidToken = fmt.Errorf("invalid token: %w", support.ErrUnauthorized)
	ErrUnknownAdmin = fmt.Errorf("no user for session email: %w", support.ErrUnauthorized)
)

// Claims is the admin session token payload.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AdminResolver validates admin session tokens and maps the session email
// to a users row.
type AdminResolver struct {
	secret []byte
	issuer string
	users  repositories.UserRepository
	cache  *cache.Cache
}

// NewAdminResolver constructs the resolver. Resolved users are cached for
// ttl; a zero ttl disables caching.
func NewAdminResolver(secret, issuer string, users repositories.UserRepository, ttl time.Duration) *AdminResolver {
	r := &AdminResolver{secret: []byte(secret), issuer: issuer, users: users}
	if ttl > 0 {
		r.cache = cache.New(ttl, 2*ttl)
	}
	return r
}

// ResolveToken verifies the JWT and returns the admin user it belongs to.
func (a *AdminResolver) ResolveToken(ctx context.Context, token string) (models.User, error) {
	email, err := a.emailFromToken(token)
	if err != nil {
		return models.User{}, err
	}
	return a.ResolveEmail(ctx, email)
}

// ResolveEmail maps an authenticated email to its user record.
func (a *AdminResolver) ResolveEmail(ctx context.Context, email string) (models.User, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		return models.User{}, ErrUnknownAdmin
	}
	if a.cache != nil {
		if cached, ok := a.cache.Get(key); ok {
			return cached.(models.User), nil
		}
	}

	user, err := a.users.GetUserByEmail(ctx, key)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return models.User{}, ErrUnknownAdmin
	}
	if err != nil {
		return models.User{}, fmt.Errorf("lookup admin: %w: %w", support.ErrBackingStore, err)
	}

	if a.cache != nil {
		a.cache.SetDefault(key, user)
	}
	return user, nil
}

// IssueToken signs a session token for email, valid for ttl.
func (a *AdminResolver) IssueToken(email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: strings.ToLower(strings.TrimSpace(email)),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    a.issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AdminResolver) emailFromToken(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Email == "" {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}
