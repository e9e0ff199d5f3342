package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"courier/internal/cache"
	"courier/internal/database"
	"courier/internal/models"
	"courier/internal/repository"
	"courier/internal/skins"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var epoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: epoch} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// withRedis installs a miniredis-backed client for the duration of the test.
func withRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = cache.Close() })
	return mr
}

func floatPtr(v float64) *float64 { return &v }

// env is a connected pair, alice in London and bob in Paris, whose messenger
// starts with bob.
type env struct {
	db        *gorm.DB
	store     repository.Store
	clock     *testClock
	transit   *TransitService
	sync      *SyncService
	view      *MessengerViewService
	alice     models.User
	bob       models.User
	conn      models.Connection
	messenger models.Messenger
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := newTestDB(t)
	e := &env{db: db, store: repository.NewStore(db), clock: newTestClock()}
	e.transit = NewTransitService(e.store).WithClock(e.clock.Now)
	e.sync = NewSyncService(e.store, e.transit)
	e.view = NewMessengerViewService(e.store, e.sync, skins.Default(), time.Minute)

	e.alice = models.User{Email: "alice@courier.test", FirstName: "Alice", Latitude: floatPtr(51.5074), Longitude: floatPtr(-0.1278)}
	e.bob = models.User{Email: "bob@courier.test", FirstName: "Bob", Latitude: floatPtr(48.8566), Longitude: floatPtr(2.3522)}
	require.NoError(t, db.Create(&e.alice).Error)
	require.NoError(t, db.Create(&e.bob).Error)

	e.conn = models.Connection{InitiatorID: e.alice.ID, RecipientID: e.bob.ID, Status: models.ConnectionStatusAccepted}
	require.NoError(t, db.Omit("Initiator", "Recipient", "Messenger").Create(&e.conn).Error)

	holder := e.bob.ID
	e.messenger = models.Messenger{ConnectionID: e.conn.ID, Name: "Messenger", SkinID: "mochi", Status: models.MessengerStatusAvailable, CurrentHolderID: &holder}
	require.NoError(t, db.Create(&e.messenger).Error)
	return e
}

func (e *env) reloadMessenger(t *testing.T) *models.Messenger {
	t.Helper()
	m, err := e.store.Messengers().GetByID(context.Background(), e.messenger.ID)
	require.NoError(t, err)
	return m
}

func (e *env) reloadShipment(t *testing.T, id uint) *models.Shipment {
	t.Helper()
	s, err := e.store.Shipments().GetByID(context.Background(), id)
	require.NoError(t, err)
	return s
}

func textItems(content ...string) []GiftItemInput {
	items := make([]GiftItemInput, 0, len(content))
	for _, c := range content {
		items = append(items, GiftItemInput{Type: models.GiftItemTypeText, Content: c})
	}
	return items
}

// dispatchFromBob sends one text item from bob to alice.
func (e *env) dispatchFromBob(t *testing.T) *models.Shipment {
	t.Helper()
	shipment, err := e.transit.Dispatch(context.Background(), e.bob.ID, e.alice.ID, textItems("hello"))
	require.NoError(t, err)
	return shipment
}
