package handlers

import (
	"fmt"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Wikid82/bookingshield/internal/cerberus"
	"github.com/Wikid82/bookingshield/internal/config"
	"github.com/Wikid82/bookingshield/internal/database"
	"github.com/Wikid82/bookingshield/internal/models"
	"github.com/Wikid82/bookingshield/internal/ratelimit"
	"github.com/Wikid82/bookingshield/internal/services"
)

// OpenTestDB returns an isolated in-memory database with the schema applied.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

type testStack struct {
	db       *gorm.DB
	audit    *services.AuditService
	blocks   *services.BlockService
	counters *ratelimit.GormCounterStore
	guard    *cerberus.Cerberus
}

func newTestStack(t *testing.T) testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := OpenTestDB(t)
	audit := services.NewAuditService(db, nil, models.SeverityHigh)
	blocks := services.NewBlockService(db, audit)
	counters := ratelimit.NewGormCounterStore(db)
	limiter := ratelimit.NewLimiter(counters, blocks, audit)
	return testStack{
		db:       db,
		audit:    audit,
		blocks:   blocks,
		counters: counters,
		guard:    cerberus.New(limiter, config.DefaultEndpoints(), config.FailOpen),
	}
}
