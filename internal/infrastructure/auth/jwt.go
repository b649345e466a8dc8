// Package auth issues and verifies the HS256 bearer tokens that identify marketplace users.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/access"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultTokenTTL = time.Hour

// Claims carries the user identity. Role defaults to user when absent.
type Claims struct {
	UserID string      `json:"user_id"`
	Role   access.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewAuthenticator(secret, issuer string) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &Authenticator{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// Issue signs a token for userID valid for ttl.
func (a *Authenticator) Issue(userID string, role access.Role, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: user id is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := a.now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Authenticate verifies token and returns the actor it names. Every failure wraps access.ErrUnauthenticated.
func (a *Authenticator) Authenticate(token string) (access.Actor, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired()}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return access.Actor{}, fmt.Errorf("%w: %w", access.ErrUnauthenticated, err)
	}
	if !parsed.Valid || claims.UserID == "" {
		return access.Actor{}, fmt.Errorf("%w: token has no user", access.ErrUnauthenticated)
	}

	role := claims.Role
	if role == "" {
		role = access.RoleUser
	}
	if role != access.RoleUser && role != access.RoleAdmin {
		return access.Actor{}, fmt.Errorf("%w: unknown role %q", access.ErrUnauthenticated, role)
	}
	return access.Actor{UserID: claims.UserID, Role: role}, nil
}
