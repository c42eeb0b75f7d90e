package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/bookingshield/internal/api/middleware"
	"github.com/Wikid82/bookingshield/internal/models"
	"github.com/Wikid82/bookingshield/internal/ratelimit"
	"github.com/Wikid82/bookingshield/internal/services"
	"github.com/Wikid82/bookingshield/internal/util"
)

// ladderSteps is how many backoff steps GetEndpoints reports; the sixth is
// already at the cap.
const ladderSteps = 6

// CounterReader is the read side of a ratelimit.CounterStore.
type CounterReader interface {
	Get(ctx context.Context, key ratelimit.Key) (*ratelimit.Counter, error)
}

// recordLister is implemented by stores that can enumerate an identifier's
// buckets (the SQL store).
type recordLister interface {
	ListByIdentifier(ctx context.Context, identifier string) ([]models.RateLimitRecord, error)
}

// SecurityHandler serves the admin API for blocks, events and counters.
type SecurityHandler struct {
	blocks    *services.BlockService
	audit     *services.AuditService
	counters  CounterReader
	endpoints map[string]ratelimit.Config
}

func NewSecurityHandler(blocks *services.BlockService, audit *services.AuditService, counters CounterReader, endpoints map[string]ratelimit.Config) *SecurityHandler {
	return &SecurityHandler{blocks: blocks, audit: audit, counters: counters, endpoints: endpoints}
}

// ListBlocks returns IP-wide blocks. ?all=true includes expired ones.
func (h *SecurityHandler) ListBlocks(c *gin.Context) {
	all, _ := strconv.ParseBool(c.Query("all"))
	blocks, err := h.blocks.List(c.Request.Context(), !all)
	if err != nil {
		middleware.GetRequestLogger(c).WithError(err).Error("list blocks")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list blocks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": blocks})
}

type CreateBlockRequest struct {
	Identifier      string `json:"identifier" binding:"required"`
	Permanent       bool   `json:"permanent"`
	DurationSeconds int    `json:"duration_seconds"`
	Reason          string `json:"reason"`
}

// CreateBlock adds or extends an IP-wide block.
func (h *SecurityHandler) CreateBlock(c *gin.Context) {
	var req CreateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifier is required"})
		return
	}
	if !req.Permanent && req.DurationSeconds <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration_seconds must be positive for a temporary block"})
		return
	}

	br := services.BlockRequest{
		Identifier: req.Identifier,
		Permanent:  req.Permanent,
		Reason:     strings.TrimSpace(req.Reason),
		Actor:      middleware.Subject(c),
	}
	if !req.Permanent {
		until := time.Now().UTC().Add(time.Duration(req.DurationSeconds) * time.Second)
		br.Until = &until
	}

	block, err := h.blocks.Block(c.Request.Context(), br)
	if err != nil {
		if errors.Is(err, services.ErrInvalidIdentifier) || errors.Is(err, services.ErrInvalidBlockUntil) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		middleware.GetRequestLogger(c).WithError(err).Error("create block")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create block"})
		return
	}
	c.JSON(http.StatusCreated, block)
}

// DeleteBlock lifts a block, including permanent ones.
func (h *SecurityHandler) DeleteBlock(c *gin.Context) {
	identifier := c.Param("identifier")
	if err := h.blocks.Unblock(c.Request.Context(), identifier, middleware.Subject(c)); err != nil {
		if errors.Is(err, services.ErrBlockNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Block not found"})
			return
		}
		middleware.GetRequestLogger(c).WithField("identifier", util.SanitizeForLog(identifier)).WithError(err).Error("delete block")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete block"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Block removed"})
}

// ListEvents returns recent security events, newest first.
func (h *SecurityHandler) ListEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	events, err := h.audit.List(c.Request.Context(), services.EventFilter{
		Identifier: c.Query("identifier"),
		EventType:  models.SecurityEventType(c.Query("type")),
		Limit:      limit,
	})
	if err != nil {
		middleware.GetRequestLogger(c).WithError(err).Error("list security events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// GetRateLimits looks up counters for an identifier. With endpoint set it
// reads that single bucket; otherwise it lists every bucket when the store
// supports it.
func (h *SecurityHandler) GetRateLimits(c *gin.Context) {
	identifier := strings.TrimSpace(c.Query("identifier"))
	if identifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifier is required"})
		return
	}
	endpoint := strings.TrimSpace(c.Query("endpoint"))

	if endpoint == "" {
		lister, ok := h.counters.(recordLister)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required for this store"})
			return
		}
		records, err := lister.ListByIdentifier(c.Request.Context(), identifier)
		if err != nil {
			middleware.GetRequestLogger(c).WithError(err).Error("list rate limit records")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load counters"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
		return
	}

	counter, err := h.counters.Get(c.Request.Context(), ratelimit.NewKey(identifier, endpoint, c.Query("secondary_key")))
	if err != nil {
		middleware.GetRequestLogger(c).WithError(err).Error("get rate limit counter")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load counter"})
		return
	}
	if counter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No counter for this key"})
		return
	}
	c.JSON(http.StatusOK, counter)
}

type endpointView struct {
	ratelimit.Config
	BackoffSeconds []int `json:"backoff_seconds"`
}

// GetEndpoints lists the configured limits with each endpoint's block ladder.
func (h *SecurityHandler) GetEndpoints(c *gin.Context) {
	names := make([]string, 0, len(h.endpoints))
	for name := range h.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]endpointView, 0, len(names))
	for _, name := range names {
		ep := h.endpoints[name]
		ladder := make([]int, 0, ladderSteps)
		for n := 1; n <= ladderSteps; n++ {
			ladder = append(ladder, int(ratelimit.BackoffDuration(ep.BlockDuration(), n)/time.Second))
		}
		out = append(out, endpointView{Config: ep, BackoffSeconds: ladder})
	}
	c.JSON(http.StatusOK, gin.H{"endpoints": out})
}
