package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Wikid82/bookingshield/internal/config"
)

const adminRole = "admin"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminAuthDisabled  = errors.New("admin authentication is not configured")
	ErrInvalidToken       = errors.New("invalid token")
)

// Claims are the JWT claims issued to administrators.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService exchanges the admin API key for short-lived JWTs.
type AuthService struct {
	keyHash []byte
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
}

// NewAuthService returns an AuthService from the security config.
func NewAuthService(cfg config.SecurityConfig) *AuthService {
	return &AuthService{
		keyHash: []byte(cfg.AdminKeyHash),
		secret:  []byte(cfg.JWTSecret),
		ttl:     cfg.TokenTTL,
		now:     time.Now,
	}
}

// HashAdminKey returns the bcrypt hash to put in SHIELD_ADMIN_KEY_HASH.
func HashAdminKey(key string) (string, error) {
	if len(key) < 16 {
		return "", fmt.Errorf("admin key must be at least 16 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Enabled reports whether an admin key and signing secret are configured.
func (s *AuthService) Enabled() bool {
	return len(s.keyHash) > 0 && len(s.secret) > 0
}

// IssueToken verifies apiKey and returns a signed admin token and its expiry.
func (s *AuthService) IssueToken(apiKey string) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, ErrAdminAuthDisabled
	}
	if err := bcrypt.CompareHashAndPassword(s.keyHash, []byte(apiKey)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminRole,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}

// ValidateToken parses and verifies a token issued by IssueToken.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	if !s.Enabled() {
		return nil, ErrAdminAuthDisabled
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
