package auth

import (
	"testing"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/access"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndAuthenticate(t *testing.T) {
	a, err := NewAuthenticator("s3cret", "ecomarket")
	require.NoError(t, err)

	token, err := a.Issue("user-1", "", time.Minute)
	require.NoError(t, err)

	actor, err := a.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, access.Actor{UserID: "user-1", Role: access.RoleUser}, actor)

	admin, err := a.Issue("ops", access.RoleAdmin, 0)
	require.NoError(t, err)
	actor, err = a.Authenticate(admin)
	require.NoError(t, err)
	assert.True(t, actor.Admin())
}

func TestAuthenticateRejects(t *testing.T) {
	a, err := NewAuthenticator("s3cret", "ecomarket")
	require.NoError(t, err)
	other, err := NewAuthenticator("different", "ecomarket")
	require.NoError(t, err)
	foreign, err := NewAuthenticator("s3cret", "someone-else")
	require.NoError(t, err)

	forged, err := other.Issue("user-1", access.RoleAdmin, time.Minute)
	require.NoError(t, err)
	wrongIssuer, err := foreign.Issue("user-1", access.RoleUser, time.Minute)
	require.NoError(t, err)

	a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := a.Issue("user-1", access.RoleUser, time.Minute)
	require.NoError(t, err)
	a.now = time.Now

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "ecomarket",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "user-1",
		Role:   "root",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "ecomarket",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": forged,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"alg none":     none,
		"unknown role": badRole,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Authenticate(token)
			assert.ErrorIs(t, err, access.ErrUnauthenticated)
		})
	}
}

func TestNewAuthenticatorRequiresSecret(t *testing.T) {
	_, err := NewAuthenticator("", "ecomarket")
	assert.Error(t, err)
}
