package models

import "time"

// MessengerStatus is where the courier is in its lifecycle.
type MessengerStatus string

const (
	MessengerStatusAvailable MessengerStatus = "AVAILABLE"
	MessengerStatusLoading   MessengerStatus = "LOADING"
	MessengerStatusInTransit MessengerStatus = "IN_TRANSIT"
	MessengerStatusWaiting   MessengerStatus = "WAITING"
	MessengerStatusReturning MessengerStatus = "RETURNING"
)

// Messenger is the courier owned by a Connection.
//
// CurrentShipmentID is a non-owning reference: it is set while the courier is
// IN_TRANSIT or RETURNING, or WAITING on a shipment that has not been opened.
// The shipment row outlives the pointer.
type Messenger struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	ConnectionID        uint            `gorm:"not null;uniqueIndex" json:"connection_id"`
	Name                string          `gorm:"size:100;not null" json:"name"`
	SkinID              string          `gorm:"size:50;not null;default:'default_messenger'" json:"skin_id"`
	Status              MessengerStatus `gorm:"type:varchar(20);not null;default:'AVAILABLE';index" json:"status"`
	CurrentHolderID     *uint           `gorm:"index" json:"current_holder_id"`
	CurrentShipmentID   *uint           `gorm:"index" json:"current_shipment_id"`
	RevealedToInitiator bool            `gorm:"not null;default:false" json:"revealed_to_initiator"`
	RevealedToRecipient bool            `gorm:"not null;default:false" json:"revealed_to_recipient"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Messenger) TableName() string {
	return "messengers"
}

// CanSend reports whether userID may dispatch this messenger right now.
func (m *Messenger) CanSend(userID uint) bool {
	if m.Status != MessengerStatusAvailable && m.Status != MessengerStatusWaiting {
		return false
	}
	return m.CurrentHolderID == nil || *m.CurrentHolderID == userID
}

// HeldBy reports whether userID is the recorded holder.
func (m *Messenger) HeldBy(userID uint) bool {
	return m.CurrentHolderID != nil && *m.CurrentHolderID == userID
}
