package database

import "courier/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Connection{},
		&models.Messenger{},
		&models.Shipment{},
		&models.GiftItem{},
	}
}
