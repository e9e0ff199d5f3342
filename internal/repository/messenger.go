package repository

import (
	"context"
	"errors"

	"courier/internal/models"

	"gorm.io/gorm"
)

// MessengerRepository reads messengers and applies the conditional status
// writes used by the transit state machine. Every Mark* method is a
// compare-and-set: it reports false when the row was not in the expected
// state, which callers treat as losing a race.
type MessengerRepository interface {
	Create(ctx context.Context, messenger *models.Messenger) error
	GetByID(ctx context.Context, id uint) (*models.Messenger, error)
	GetByConnectionID(ctx context.Context, connectionID uint) (*models.Messenger, error)
	MarkDispatched(ctx context.Context, id, senderID, shipmentID uint) (bool, error)
	MarkArrived(ctx context.Context, id, shipmentID, recipientID uint) (bool, error)
	MarkReturning(ctx context.Context, id, shipmentID uint) (bool, error)
	MarkReturned(ctx context.Context, id, shipmentID, senderID uint) (bool, error)
	ReleaseShipment(ctx context.Context, id, shipmentID uint) (bool, error)
	SetRevealed(ctx context.Context, id uint, toInitiator bool) error
}

// messengerRepository implements MessengerRepository
type messengerRepository struct {
	db *gorm.DB
}

// NewMessengerRepository creates a new messenger repository
func NewMessengerRepository(db *gorm.DB) MessengerRepository {
	return &messengerRepository{db: db}
}

func (r *messengerRepository) Create(ctx context.Context, messenger *models.Messenger) error {
	if err := r.db.WithContext(ctx).Create(messenger).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.NewInvalidStateError("connection %d already has a messenger", messenger.ConnectionID)
		}
		return models.NewStoreError(err)
	}
	return nil
}

func (r *messengerRepository) GetByID(ctx context.Context, id uint) (*models.Messenger, error) {
	var messenger models.Messenger
	if err := r.db.WithContext(ctx).First(&messenger, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Messenger", id)
		}
		return nil, models.NewStoreError(err)
	}
	return &messenger, nil
}

func (r *messengerRepository) GetByConnectionID(ctx context.Context, connectionID uint) (*models.Messenger, error) {
	var messenger models.Messenger
	if err := r.db.WithContext(ctx).Where("connection_id = ?", connectionID).First(&messenger).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Messenger for connection", connectionID)
		}
		return nil, models.NewStoreError(err)
	}
	return &messenger, nil
}

// MarkDispatched: AVAILABLE, or WAITING held by the sender -> IN_TRANSIT.
func (r *messengerRepository) MarkDispatched(ctx context.Context, id, senderID, shipmentID uint) (bool, error) {
	return r.swap(ctx,
		map[string]any{
			"status":              models.MessengerStatusInTransit,
			"current_holder_id":   senderID,
			"current_shipment_id": shipmentID,
		},
		"id = ? AND status IN ? AND (current_holder_id IS NULL OR current_holder_id = ?)",
		id, []models.MessengerStatus{models.MessengerStatusAvailable, models.MessengerStatusWaiting}, senderID)
}

// MarkArrived: IN_TRANSIT -> WAITING, holder becomes the recipient.
func (r *messengerRepository) MarkArrived(ctx context.Context, id, shipmentID, recipientID uint) (bool, error) {
	return r.swap(ctx,
		map[string]any{
			"status":            models.MessengerStatusWaiting,
			"current_holder_id": recipientID,
		},
		"id = ? AND status = ? AND current_shipment_id = ?", id, models.MessengerStatusInTransit, shipmentID)
}

// MarkReturning: IN_TRANSIT -> RETURNING.
func (r *messengerRepository) MarkReturning(ctx context.Context, id, shipmentID uint) (bool, error) {
	return r.swap(ctx,
		map[string]any{
			"status": models.MessengerStatusReturning,
		},
		"id = ? AND status = ? AND current_shipment_id = ?", id, models.MessengerStatusInTransit, shipmentID)
}

// MarkReturned: RETURNING -> AVAILABLE, back with the original sender.
func (r *messengerRepository) MarkReturned(ctx context.Context, id, shipmentID, senderID uint) (bool, error) {
	return r.swap(ctx,
		map[string]any{
			"status":              models.MessengerStatusAvailable,
			"current_holder_id":   senderID,
			"current_shipment_id": nil,
		},
		"id = ? AND status = ? AND current_shipment_id = ?", id, models.MessengerStatusReturning, shipmentID)
}

// ReleaseShipment clears the pointer to an opened shipment; status stays WAITING.
func (r *messengerRepository) ReleaseShipment(ctx context.Context, id, shipmentID uint) (bool, error) {
	return r.swap(ctx,
		map[string]any{
			"current_shipment_id": nil,
		},
		"id = ? AND status = ? AND current_shipment_id = ?", id, models.MessengerStatusWaiting, shipmentID)
}

func (r *messengerRepository) SetRevealed(ctx context.Context, id uint, toInitiator bool) error {
	column := "revealed_to_recipient"
	if toInitiator {
		column = "revealed_to_initiator"
	}
	result := r.db.WithContext(ctx).Model(&models.Messenger{}).Where("id = ?", id).Update(column, true)
	if result.Error != nil {
		return models.NewStoreError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Messenger", id)
	}
	return nil
}

func (r *messengerRepository) swap(ctx context.Context, updates map[string]any, query string, args ...any) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Messenger{}).Where(query, args...).Updates(updates)
	if result.Error != nil {
		return false, models.NewStoreError(result.Error)
	}
	return result.RowsAffected == 1, nil
}
