package models

import "time"

// ConnectionStatus represents the status of a connection between two users.
type ConnectionStatus string

const (
	// ConnectionStatusPending indicates a request the recipient has not answered.
	ConnectionStatusPending ConnectionStatus = "PENDING"
	// ConnectionStatusAccepted indicates an established pair that owns a messenger.
	ConnectionStatusAccepted ConnectionStatus = "ACCEPTED"
)

// Connection links exactly two users and owns at most one Messenger.
type Connection struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	InitiatorID uint             `gorm:"not null;uniqueIndex:idx_connection_users" json:"initiator_id"`
	RecipientID uint             `gorm:"not null;uniqueIndex:idx_connection_users;index" json:"recipient_id"`
	Status      ConnectionStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`

	// Relationships
	Initiator User       `gorm:"foreignKey:InitiatorID" json:"initiator,omitempty"`
	Recipient User       `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
	Messenger *Messenger `gorm:"foreignKey:ConnectionID;constraint:OnDelete:CASCADE" json:"messenger,omitempty"`
}

// TableName specifies the table name for GORM
func (Connection) TableName() string {
	return "connections"
}

// Involves reports whether userID is one of the two parties.
func (c *Connection) Involves(userID uint) bool {
	return c.InitiatorID == userID || c.RecipientID == userID
}

// PartnerID returns the other party of the connection.
func (c *Connection) PartnerID(userID uint) uint {
	if c.InitiatorID == userID {
		return c.RecipientID
	}
	return c.InitiatorID
}

// Partner returns the preloaded other party.
func (c *Connection) Partner(userID uint) User {
	if c.InitiatorID == userID {
		return c.Recipient
	}
	return c.Initiator
}
