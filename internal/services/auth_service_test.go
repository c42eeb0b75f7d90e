package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/bookingshield/internal/config"
)

const testKey = "a-long-enough-admin-key"

func newTestAuth(t *testing.T) *AuthService {
	hash, err := HashAdminKey(testKey)
	require.NoError(t, err)
	return NewAuthService(config.SecurityConfig{JWTSecret: "secret-for-tests", AdminKeyHash: hash, TokenTTL: time.Hour})
}

func TestHashAdminKey(t *testing.T) {
	_, err := HashAdminKey("short")
	assert.Error(t, err)

	hash, err := HashAdminKey(testKey)
	require.NoError(t, err)
	assert.NotEqual(t, testKey, hash)
}

func TestAuthService_IssueAndValidate(t *testing.T) {
	svc := newTestAuth(t)
	require.True(t, svc.Enabled())

	token, expires, err := svc.IssueToken(testKey)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "admin", claims.Subject)
}

func TestAuthService_WrongKey(t *testing.T) {
	_, _, err := newTestAuth(t).IssueToken("not-the-admin-key")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Disabled(t *testing.T) {
	svc := NewAuthService(config.SecurityConfig{TokenTTL: time.Hour})
	assert.False(t, svc.Enabled())
	_, _, err := svc.IssueToken(testKey)
	assert.ErrorIs(t, err, ErrAdminAuthDisabled)
	_, err = svc.ValidateToken("anything")
	assert.ErrorIs(t, err, ErrAdminAuthDisabled)
}

func TestAuthService_ExpiredToken(t *testing.T) {
	svc := newTestAuth(t)
	token, _, err := svc.IssueToken(testKey)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_RejectsOtherSecretsAndAlgorithms(t *testing.T) {
	svc := newTestAuth(t)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: "admin"}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: "admin"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
