package models

import "time"

// ShipmentStatus represents a trip's progress. Status only moves forward
// IN_TRANSIT -> ARRIVED -> OPENED, or diverts once IN_TRANSIT -> RECALLED.
type ShipmentStatus string

const (
	ShipmentStatusDrafting  ShipmentStatus = "DRAFTING"
	ShipmentStatusInTransit ShipmentStatus = "IN_TRANSIT"
	ShipmentStatusArrived   ShipmentStatus = "ARRIVED"
	ShipmentStatusOpened    ShipmentStatus = "OPENED"
	ShipmentStatusRecalled  ShipmentStatus = "RECALLED"
)

// Shipment is one gift-carrying trip. Coordinates and distance are frozen at
// dispatch and never recomputed.
type Shipment struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	MessengerID    uint           `gorm:"not null;index" json:"messenger_id"`
	SenderID       uint           `gorm:"not null;index:idx_shipments_sender_status" json:"sender_id"`
	RecipientID    uint           `gorm:"not null;index:idx_shipments_recipient_status" json:"recipient_id"`
	Status         ShipmentStatus `gorm:"type:varchar(20);not null;index:idx_shipments_sender_status;index:idx_shipments_recipient_status" json:"status"`
	DispatchedAt   *time.Time     `json:"dispatched_at"`
	RecalledAt     *time.Time     `json:"recalled_at,omitempty"`
	ArrivedAt      *time.Time     `json:"arrived_at,omitempty"`
	OpenedAt       *time.Time     `json:"opened_at,omitempty"`
	OriginLat      *float64       `json:"origin_lat,omitempty"`
	OriginLng      *float64       `json:"origin_lng,omitempty"`
	DestinationLat *float64       `json:"destination_lat,omitempty"`
	DestinationLng *float64       `json:"destination_lng,omitempty"`
	DistanceInKm   *float64       `json:"distance_in_km,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	// Relationships
	Items     []GiftItem `gorm:"foreignKey:ShipmentID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Sender    *User      `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Recipient *User      `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
}

// TableName specifies the table name for GORM
func (Shipment) TableName() string {
	return "shipments"
}

// IsParty reports whether userID is the sender or the recipient.
func (s *Shipment) IsParty(userID uint) bool {
	return s.SenderID == userID || s.RecipientID == userID
}

// GiftItemType discriminates the content of a GiftItem.
type GiftItemType string

const (
	GiftItemTypeText    GiftItemType = "TEXT"
	GiftItemTypeAudio   GiftItemType = "AUDIO"
	GiftItemTypePhoto   GiftItemType = "PHOTO"
	GiftItemTypeDrawing GiftItemType = "DRAWING"
	GiftItemTypeLink    GiftItemType = "LINK"
)

// Valid reports whether t is a known item type.
func (t GiftItemType) Valid() bool {
	switch t {
	case GiftItemTypeText, GiftItemTypeAudio, GiftItemTypePhoto, GiftItemTypeDrawing, GiftItemTypeLink:
		return true
	}
	return false
}

// IsURL reports whether content of this type must be an uploaded file or web URL.
func (t GiftItemType) IsURL() bool {
	return t != GiftItemTypeText
}

// GiftItem is one immutable content unit of a shipment. Content is literal
// text for TEXT and a URL for every other type.
type GiftItem struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	ShipmentID uint         `gorm:"not null;index" json:"shipment_id"`
	Position   int          `gorm:"not null" json:"position"`
	Type       GiftItemType `gorm:"type:varchar(20);not null" json:"type"`
	Content    string       `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time    `json:"created_at"`
}

// TableName specifies the table name for GORM
func (GiftItem) TableName() string {
	return "gift_items"
}
