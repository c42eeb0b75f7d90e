package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/bookingshield/internal/api/middleware"
	"github.com/Wikid82/bookingshield/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type TokenRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// Token exchanges the admin API key for a bearer token.
func (h *AuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "api_key is required"})
		return
	}

	token, expires, err := h.authService.IssueToken(req.APIKey)
	if err != nil {
		if errors.Is(err, services.ErrAdminAuthDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Admin API is not configured"})
			return
		}
		if errors.Is(err, services.ErrInvalidCredentials) {
			middleware.GetRequestLogger(c).WithField("source", "auth").Warn("rejected admin key")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}
