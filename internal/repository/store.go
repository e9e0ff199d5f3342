package repository

import (
	"context"

	"courier/internal/models"
	"courier/internal/observability"

	"gorm.io/gorm"
)

// Store groups the repositories over one connection or one transaction.
type Store interface {
	Users() UserRepository
	Connections() ConnectionRepository
	Messengers() MessengerRepository
	Shipments() ShipmentRepository
	// Transaction runs fn against a Store bound to a single transaction.
	// Returning an error from fn rolls every write back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db          *gorm.DB
	users       UserRepository
	connections ConnectionRepository
	messengers  MessengerRepository
	shipments   ShipmentRepository
}

// NewStore builds a Store over db.
func NewStore(db *gorm.DB) Store {
	return &gormStore{
		db:          db,
		users:       NewUserRepository(db),
		connections: NewConnectionRepository(db),
		messengers:  NewMessengerRepository(db),
		shipments:   NewShipmentRepository(db),
	}
}

func (s *gormStore) Users() UserRepository             { return s.users }
func (s *gormStore) Connections() ConnectionRepository { return s.connections }
func (s *gormStore) Messengers() MessengerRepository   { return s.messengers }
func (s *gormStore) Shipments() ShipmentRepository     { return s.shipments }

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	defer observability.TrackQuery("transaction", "store")()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
	if err != nil {
		return models.NewStoreError(err)
	}
	return nil
}
