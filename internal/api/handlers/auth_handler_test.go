package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/bookingshield/internal/config"
	"github.com/Wikid82/bookingshield/internal/services"
)

const testAdminKey = "correct-horse-battery-staple"

func newTestAuthService(t *testing.T) *services.AuthService {
	t.Helper()
	hash, err := services.HashAdminKey(testAdminKey)
	require.NoError(t, err)
	return services.NewAuthService(config.SecurityConfig{
		JWTSecret:    "handler-test-secret",
		AdminKeyHash: hash,
		TokenTTL:     30 * time.Minute,
	})
}

func postToken(h *AuthHandler, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/token", h.Token)
	req := httptest.NewRequest(http.MethodPost, "/token", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthHandler_Token(t *testing.T) {
	auth := newTestAuthService(t)
	w := postToken(NewAuthHandler(auth), `{"api_key":"`+testAdminKey+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["token"])
	assert.NotEmpty(t, resp["expires_at"])

	claims, err := auth.ValidateToken(resp["token"])
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)
}

func TestAuthHandler_WrongKey(t *testing.T) {
	w := postToken(NewAuthHandler(newTestAuthService(t)), `{"api_key":"wrong-key-wrong-key"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid credentials")
}

func TestAuthHandler_Disabled(t *testing.T) {
	auth := services.NewAuthService(config.SecurityConfig{TokenTTL: time.Minute})
	w := postToken(NewAuthHandler(auth), `{"api_key":"anything-at-all-here"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthHandler_BadBody(t *testing.T) {
	w := postToken(NewAuthHandler(newTestAuthService(t)), `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
