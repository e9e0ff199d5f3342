package seed

import (
	"fmt"
	"strings"

	"courier/internal/models"
	"courier/internal/skins"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and by tests that need fixtures.
type Factory struct {
	db      *gorm.DB
	faker   *gofakeit.Faker
	catalog *skins.Catalog
}

// NewFactory creates a Factory bound to db. A zero seed draws a random one;
// any other value makes the generated data reproducible.
func NewFactory(db *gorm.DB, seed int64) *Factory {
	return &Factory{db: db, faker: gofakeit.New(seed), catalog: skins.Default()}
}

// Faker exposes the generator so callers draw from the same sequence.
func (f *Factory) Faker() *gofakeit.Faker { return f.faker }

// BuildUser returns an unsaved user with a random name, a unique email and a
// location somewhere in Europe.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first := f.faker.FirstName()
	lat, lng := f.location()
	user := &models.User{
		FirstName: first,
		LastName:  f.faker.LastName(),
		Email:     fmt.Sprintf("%s.%s@example.com", strings.ToLower(first), uuid.NewString()[:8]),
		Latitude:  &lat,
		Longitude: &lng,
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser persists a generated user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if err := f.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user %s: %w", user.Email, err)
	}
	return user, nil
}

// EnsureUser returns the user with email, creating it from the generated
// defaults plus overrides when absent. Existing rows are left untouched.
func (f *Factory) EnsureUser(email string, overrides ...func(*models.User)) (*models.User, bool, error) {
	var existing models.User
	err := f.db.Where("email = ?", email).Limit(1).Find(&existing).Error
	if err != nil {
		return nil, false, fmt.Errorf("find user %s: %w", email, err)
	}
	if existing.ID != 0 {
		return &existing, false, nil
	}

	overrides = append(overrides, func(u *models.User) { u.Email = email })
	user, err := f.CreateUser(overrides...)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// EnsureConnection returns the connection between a and b in either
// direction, creating an accepted one initiated by a when none exists.
func (f *Factory) EnsureConnection(a, b *models.User) (*models.Connection, bool, error) {
	var existing models.Connection
	err := f.db.
		Where("(initiator_id = ? AND recipient_id = ?) OR (initiator_id = ? AND recipient_id = ?)", a.ID, b.ID, b.ID, a.ID).
		Limit(1).
		Find(&existing).Error
	if err != nil {
		return nil, false, fmt.Errorf("find connection: %w", err)
	}
	if existing.ID != 0 {
		return &existing, false, nil
	}

	conn := &models.Connection{
		InitiatorID: a.ID,
		RecipientID: b.ID,
		Status:      models.ConnectionStatusAccepted,
	}
	if err := f.db.Create(conn).Error; err != nil {
		return nil, false, fmt.Errorf("create connection: %w", err)
	}
	return conn, true, nil
}

// EnsureMessenger returns the connection's messenger, creating an AVAILABLE
// one with a random skin when the connection has none. A new messenger has
// no holder, so either party may send it first.
func (f *Factory) EnsureMessenger(conn *models.Connection, name string) (*models.Messenger, bool, error) {
	var existing models.Messenger
	if err := f.db.Where("connection_id = ?", conn.ID).Limit(1).Find(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("find messenger: %w", err)
	}
	if existing.ID != 0 {
		return &existing, false, nil
	}

	m := &models.Messenger{
		ConnectionID: conn.ID,
		Name:         name,
		SkinID:       f.skinID(),
		Status:       models.MessengerStatusAvailable,
	}
	if err := f.db.Create(m).Error; err != nil {
		return nil, false, fmt.Errorf("create messenger: %w", err)
	}
	return m, true, nil
}

// GiftNote is a short text item for a seeded shipment.
func (f *Factory) GiftNote() string {
	return f.faker.Sentence(f.faker.Number(4, 10))
}

func (f *Factory) skinID() string {
	all := f.catalog.All()
	ids := make([]string, len(all))
	for i, s := range all {
		ids[i] = s.ID
	}
	return f.faker.RandomString(ids)
}

func (f *Factory) location() (float64, float64) {
	lat, _ := f.faker.LatitudeInRange(36, 60)
	lng, _ := f.faker.LongitudeInRange(-9, 25)
	return lat, lng
}
