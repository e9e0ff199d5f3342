package repository

import (
	"context"
	"errors"
	"time"

	"courier/internal/models"

	"gorm.io/gorm"
)

// ShipmentRepository defines the interface for shipment data operations
type ShipmentRepository interface {
	Create(ctx context.Context, shipment *models.Shipment) error
	GetByID(ctx context.Context, id uint) (*models.Shipment, error)
	GetByIDs(ctx context.Context, ids []uint) (map[uint]*models.Shipment, error)
	ListInTransitForUser(ctx context.Context, userID uint) ([]models.Shipment, error)
	ListReturningForSender(ctx context.Context, userID uint) ([]models.Shipment, error)
	ListByMessenger(ctx context.Context, messengerID uint, limit, offset int) ([]models.Shipment, error)
	MarkArrived(ctx context.Context, id uint, at time.Time) (bool, error)
	MarkOpened(ctx context.Context, id uint, at time.Time) (bool, error)
	MarkRecalled(ctx context.Context, id uint, at time.Time) (bool, error)
}

// shipmentRepository implements ShipmentRepository
type shipmentRepository struct {
	db *gorm.DB
}

// NewShipmentRepository creates a new shipment repository
func NewShipmentRepository(db *gorm.DB) ShipmentRepository {
	return &shipmentRepository{db: db}
}

func itemsByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Create inserts the shipment together with its gift items.
func (r *shipmentRepository) Create(ctx context.Context, shipment *models.Shipment) error {
	for i := range shipment.Items {
		shipment.Items[i].Position = i
	}
	if err := r.db.WithContext(ctx).Omit("Sender", "Recipient").Create(shipment).Error; err != nil {
		return models.NewStoreError(err)
	}
	return nil
}

func (r *shipmentRepository) GetByID(ctx context.Context, id uint) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := r.db.WithContext(ctx).
		Preload("Items", itemsByPosition).
		First(&shipment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Shipment", id)
		}
		return nil, models.NewStoreError(err)
	}
	return &shipment, nil
}

// GetByIDs loads shipments without items, keyed by id. Missing ids are absent from the map.
func (r *shipmentRepository) GetByIDs(ctx context.Context, ids []uint) (map[uint]*models.Shipment, error) {
	out := make(map[uint]*models.Shipment, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var shipments []models.Shipment
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&shipments).Error; err != nil {
		return nil, models.NewStoreError(err)
	}
	for i := range shipments {
		out[shipments[i].ID] = &shipments[i]
	}
	return out, nil
}

// ListInTransitForUser returns IN_TRANSIT shipments the user sent or is receiving.
func (r *shipmentRepository) ListInTransitForUser(ctx context.Context, userID uint) ([]models.Shipment, error) {
	var shipments []models.Shipment
	if err := r.db.WithContext(ctx).
		Where("status = ? AND (sender_id = ? OR recipient_id = ?)", models.ShipmentStatusInTransit, userID, userID).
		Order("dispatched_at ASC").
		Find(&shipments).Error; err != nil {
		return nil, models.NewStoreError(err)
	}
	return shipments, nil
}

// ListReturningForSender returns RECALLED shipments sent by the user whose
// messenger is still flying home.
func (r *shipmentRepository) ListReturningForSender(ctx context.Context, userID uint) ([]models.Shipment, error) {
	var shipments []models.Shipment
	if err := r.db.WithContext(ctx).
		Joins("JOIN messengers ON messengers.id = shipments.messenger_id").
		Where("shipments.status = ? AND shipments.sender_id = ? AND messengers.status = ? AND messengers.current_shipment_id = shipments.id",
			models.ShipmentStatusRecalled, userID, models.MessengerStatusReturning).
		Order("shipments.recalled_at ASC").
		Find(&shipments).Error; err != nil {
		return nil, models.NewStoreError(err)
	}
	return shipments, nil
}

// ListByMessenger returns a messenger's trips, newest first, with items.
func (r *shipmentRepository) ListByMessenger(ctx context.Context, messengerID uint, limit, offset int) ([]models.Shipment, error) {
	var shipments []models.Shipment
	if err := r.db.WithContext(ctx).
		Where("messenger_id = ?", messengerID).
		Preload("Items", itemsByPosition).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&shipments).Error; err != nil {
		return nil, models.NewStoreError(err)
	}
	return shipments, nil
}

// MarkArrived: IN_TRANSIT -> ARRIVED.
func (r *shipmentRepository) MarkArrived(ctx context.Context, id uint, at time.Time) (bool, error) {
	return r.swap(ctx, id, models.ShipmentStatusInTransit, map[string]any{
		"status":     models.ShipmentStatusArrived,
		"arrived_at": at,
	})
}

// MarkOpened: ARRIVED -> OPENED.
func (r *shipmentRepository) MarkOpened(ctx context.Context, id uint, at time.Time) (bool, error) {
	return r.swap(ctx, id, models.ShipmentStatusArrived, map[string]any{
		"status":    models.ShipmentStatusOpened,
		"opened_at": at,
	})
}

// MarkRecalled: IN_TRANSIT -> RECALLED.
func (r *shipmentRepository) MarkRecalled(ctx context.Context, id uint, at time.Time) (bool, error) {
	return r.swap(ctx, id, models.ShipmentStatusInTransit, map[string]any{
		"status":      models.ShipmentStatusRecalled,
		"recalled_at": at,
	})
}

func (r *shipmentRepository) swap(ctx context.Context, id uint, from models.ShipmentStatus, updates map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, models.NewStoreError(result.Error)
	}
	return result.RowsAffected == 1, nil
}
