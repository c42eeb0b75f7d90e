package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/bookingshield/internal/cerberus"
	"github.com/Wikid82/bookingshield/internal/ratelimit"
)

// RateLimitHandler exposes the limiter to sibling booking services that
// cannot embed the middleware.
type RateLimitHandler struct {
	guard *cerberus.Cerberus
}

func NewRateLimitHandler(guard *cerberus.Cerberus) *RateLimitHandler {
	return &RateLimitHandler{guard: guard}
}

type CheckRequest struct {
	Endpoint     string `json:"endpoint" binding:"required"`
	Identifier   string `json:"identifier"`
	SecondaryKey string `json:"secondary_key"`
}

// Check counts one request and answers with the decision. Allowed requests
// get 200 with the result; denied ones get the 429 contract.
func (h *RateLimitHandler) Check(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		identifier = ratelimit.ClientIdentifier(c.Request)
	}

	res, err := h.guard.CheckEndpoint(c.Request.Context(), req.Endpoint, identifier, req.SecondaryKey)
	if err != nil {
		switch {
		case errors.Is(err, cerberus.ErrUnknownEndpoint):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown endpoint"})
		case errors.Is(err, cerberus.ErrStoreUnavailable):
			cerberus.RejectUnavailable(c)
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	cerberus.WriteHeaders(c, res)
	if !res.Allowed {
		c.JSON(http.StatusTooManyRequests, res.Body())
		return
	}
	c.JSON(http.StatusOK, res)
}
