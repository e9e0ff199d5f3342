package repository

import (
	"regexp"
	"testing"

	"courier/internal/database"
	"courier/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory sqlite database with the full schema.
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

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func quote(sql string) string {
	return regexp.QuoteMeta(sql)
}

type fixture struct {
	alice, bob models.User
	conn       models.Connection
	messenger  models.Messenger
}

func floatPtr(v float64) *float64 { return &v }

// seedPair creates two located users, an accepted connection and its
// messenger held by bob.
func seedPair(t *testing.T, db *gorm.DB) fixture {
	t.Helper()

	f := fixture{
		alice: models.User{Email: uuid.NewString() + "@alice.test", FirstName: "Alice", Latitude: floatPtr(51.5074), Longitude: floatPtr(-0.1278)},
		bob:   models.User{Email: uuid.NewString() + "@bob.test", FirstName: "Bob", Latitude: floatPtr(48.8566), Longitude: floatPtr(2.3522)},
	}
	require.NoError(t, db.Create(&f.alice).Error)
	require.NoError(t, db.Create(&f.bob).Error)

	f.conn = models.Connection{InitiatorID: f.alice.ID, RecipientID: f.bob.ID, Status: models.ConnectionStatusAccepted}
	require.NoError(t, db.Omit("Initiator", "Recipient", "Messenger").Create(&f.conn).Error)

	holder := f.bob.ID
	f.messenger = models.Messenger{ConnectionID: f.conn.ID, Name: "Messenger", SkinID: "mochi", Status: models.MessengerStatusAvailable, CurrentHolderID: &holder}
	require.NoError(t, db.Create(&f.messenger).Error)
	return f
}
