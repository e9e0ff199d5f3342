package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"courier/internal/config"
	"courier/internal/database"
	"courier/internal/middleware"
	"courier/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:         "test",
		Port:        "8375",
		JWTSecret:   "cli-test-secret-that-is-long-enough",
		JWTIssuer:   "courier-api",
		JWTAudience: "courier-client",
		DBDriver:    "sqlite",
	}
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func run(t *testing.T, cfg *config.Config, db *gorm.DB, args ...string) (string, error) {
	t.Helper()
	opts := &RootOptions{
		LoadConfig: func() (*config.Config, error) { return cfg, nil },
		Connect:    func(*config.Config) (*gorm.DB, error) { return db, nil },
	}
	buf := &bytes.Buffer{}
	cmd := newRootCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestToken(t *testing.T) {
	cfg := testConfig()

	out, err := run(t, cfg, nil, "token", "--user", "7")
	require.NoError(t, err)

	userID, err := middleware.ParseToken(cfg, strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, uint(7), userID)
}

func TestToken_JSON(t *testing.T) {
	out, err := run(t, testConfig(), nil, "--format", "json", "token", "--user", "3", "--ttl", "1h")
	require.NoError(t, err)

	var resp struct {
		UserID    uint   `json:"user_id"`
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, uint(3), resp.UserID)
	assert.Equal(t, 3600, resp.ExpiresIn)
	assert.NotEmpty(t, resp.Token)
}

func TestToken_RequiresUser(t *testing.T) {
	_, err := run(t, testConfig(), nil, "token")
	assert.ErrorContains(t, err, "--user is required")
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, testConfig(), nil, "--format", "yaml", "token", "--user", "1")
	assert.ErrorContains(t, err, "invalid format")
}

func TestSeed(t *testing.T) {
	db := testDB(t)

	out, err := run(t, testConfig(), db, "seed", "--friends", "3", "--rand-seed", "11")
	require.NoError(t, err)
	assert.Contains(t, out, "created: 4 users, 3 connections, 3 messengers, 0 shipments")

	var n int64
	require.NoError(t, db.Model(&models.Messenger{}).Count(&n).Error)
	assert.Equal(t, int64(3), n)
}

func TestSeed_RefusesProduction(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"

	_, err := run(t, cfg, testDB(t), "seed")
	assert.ErrorContains(t, err, "production")
}

func TestSync(t *testing.T) {
	db := testDB(t)
	cfg := testConfig()

	_, err := run(t, cfg, db, "seed", "--friends", "2", "--in-flight", "1")
	require.NoError(t, err)

	var shipment models.Shipment
	require.NoError(t, db.First(&shipment).Error)
	past := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, db.Model(&models.Shipment{}).Where("id = ?", shipment.ID).Update("dispatched_at", past).Error)

	out, err := run(t, cfg, db, "--format", "json", "sync", "--user", "1")
	require.NoError(t, err)

	var resp struct {
		ArrivedIDs []uint `json:"arrived_ids"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []uint{shipment.ID}, resp.ArrivedIDs)

	require.NoError(t, db.First(&shipment, shipment.ID).Error)
	assert.Equal(t, models.ShipmentStatusArrived, shipment.Status)
}
