// services/token.go
package services

import (
	"errors"
	"fmt"
	"time"

	"referral-points-system/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	audienceAccess  = "access"
	audienceRefresh = "refresh"
)

// Claims carries only the identity of the user. Subject is the user id.
type Claims struct {
	CreatedAt int64 `json:"created_at"`
	jwt.RegisteredClaims
}

// IssuedToken is a signed token plus the bits the caller needs to persist
// or set as a cookie.
type IssuedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// TokenCodec signs and verifies HS256 access and refresh tokens.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenCodec {
	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

func (c *TokenCodec) IssueAccess(userID string, createdAt time.Time) (IssuedToken, error) {
	return c.issue(userID, createdAt, audienceAccess, c.accessSecret, c.AccessTTL)
}

func (c *TokenCodec) IssueRefresh(userID string, createdAt time.Time) (IssuedToken, error) {
	return c.issue(userID, createdAt, audienceRefresh, c.refreshSecret, c.RefreshTTL)
}

func (c *TokenCodec) VerifyAccess(token string) (*Claims, error) {
	return c.verify(token, audienceAccess, c.accessSecret)
}

func (c *TokenCodec) VerifyRefresh(token string) (*Claims, error) {
	return c.verify(token, audienceRefresh, c.refreshSecret)
}

// issuePair mints a fresh access/refresh pair for user.
func (c *TokenCodec) issuePair(user *models.User) (access, refresh IssuedToken, err error) {
	access, err = c.IssueAccess(user.ID, user.CreatedAt)
	if err != nil {
		return
	}
	refresh, err = c.IssueRefresh(user.ID, user.CreatedAt)
	return
}

func (c *TokenCodec) issue(userID string, createdAt time.Time, audience string, secret []byte, ttl time.Duration) (IssuedToken, error) {
	now := c.now()
	claims := Claims{
		CreatedAt: createdAt.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("failed to sign %s token: %w", audience, err)
	}
	return IssuedToken{Token: signed, ID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (c *TokenCodec) verify(token, audience string, secret []byte) (*Claims, error) {
	if token == "" {
		return nil, UnauthorizedError("missing token", nil)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, UnauthorizedError("token expired", err)
	case err != nil:
		return nil, UnauthorizedError("invalid token", err)
	case claims.Subject == "" || claims.ID == "":
		return nil, UnauthorizedError("invalid token", nil)
	}
	return claims, nil
}
