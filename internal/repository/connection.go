package repository

import (
	"context"
	"errors"

	"courier/internal/models"

	"gorm.io/gorm"
)

// ConnectionRepository defines the interface for connection data operations
type ConnectionRepository interface {
	Create(ctx context.Context, conn *models.Connection) error
	GetByID(ctx context.Context, id uint) (*models.Connection, error)
	GetBetweenUsers(ctx context.Context, userID1, userID2 uint) (*models.Connection, error)
	ListWithMessengers(ctx context.Context, userID uint) ([]models.Connection, error)
	ListPendingForRecipient(ctx context.Context, userID uint) ([]models.Connection, error)
	Accept(ctx context.Context, id uint) (bool, error)
	DeletePending(ctx context.Context, id uint) (bool, error)
}

// connectionRepository implements ConnectionRepository
type connectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new connection repository
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) Create(ctx context.Context, conn *models.Connection) error {
	if err := r.db.WithContext(ctx).Omit("Initiator", "Recipient", "Messenger").Create(conn).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.NewInvalidStateError("a connection between these users already exists")
		}
		return models.NewStoreError(err)
	}
	return nil
}

func (r *connectionRepository) GetByID(ctx context.Context, id uint) (*models.Connection, error) {
	var conn models.Connection
	if err := r.db.WithContext(ctx).
		Preload("Initiator").
		Preload("Recipient").
		Preload("Messenger").
		First(&conn, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Connection", id)
		}
		return nil, models.NewStoreError(err)
	}
	return &conn, nil
}

// GetBetweenUsers finds the connection in either direction, or returns (nil, nil).
func (r *connectionRepository) GetBetweenUsers(ctx context.Context, userID1, userID2 uint) (*models.Connection, error) {
	var conn models.Connection
	if err := r.db.WithContext(ctx).
		Where("(initiator_id = ? AND recipient_id = ?) OR (initiator_id = ? AND recipient_id = ?)",
			userID1, userID2, userID2, userID1).
		Preload("Messenger").
		First(&conn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewStoreError(err)
	}
	return &conn, nil
}

// ListWithMessengers returns the user's accepted connections with both parties and the messenger loaded.
func (r *connectionRepository) ListWithMessengers(ctx context.Context, userID uint) ([]models.Connection, error) {
	var conns []models.Connection
	if err := r.db.WithContext(ctx).
		Where("(initiator_id = ? OR recipient_id = ?) AND status = ?", userID, userID, models.ConnectionStatusAccepted).
		Preload("Initiator").
		Preload("Recipient").
		Preload("Messenger").
		Order("id ASC").
		Find(&conns).Error; err != nil {
		return nil, models.NewStoreError(err)
	}
	return conns, nil
}

func (r *connectionRepository) ListPendingForRecipient(ctx context.Context, userID uint) ([]models.Connection, error) {
	var conns []models.Connection
	if err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND status = ?", userID, models.ConnectionStatusPending).
		Preload("Initiator").
		Order("created_at DESC").
		Find(&conns).Error; err != nil {
		return nil, models.NewStoreError(err)
	}
	return conns, nil
}

// Accept moves a PENDING connection to ACCEPTED and reports whether it did.
func (r *connectionRepository) Accept(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Connection{}).
		Where("id = ? AND status = ?", id, models.ConnectionStatusPending).
		Update("status", models.ConnectionStatusAccepted)
	if result.Error != nil {
		return false, models.NewStoreError(result.Error)
	}
	return result.RowsAffected == 1, nil
}

// DeletePending removes a request that has not been accepted yet. Accepted
// connections own a messenger and its history and are never deleted here.
func (r *connectionRepository) DeletePending(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, models.ConnectionStatusPending).
		Delete(&models.Connection{})
	if result.Error != nil {
		return false, models.NewStoreError(result.Error)
	}
	return result.RowsAffected == 1, nil
}
