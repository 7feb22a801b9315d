package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jewelryerp/backend/internal/infrastructure/config"
)

// newSQLiteDB opens a migrated in-memory database that lives for the test
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func day(n int) time.Time {
	return time.Date(2024, time.March, n, 10, 0, 0, 0, time.UTC)
}

var (
	testCtx    = context.Background()
	testTenant = uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
)
