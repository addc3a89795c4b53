package database

import (
	"payment-idempotency-service/internal/domain"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.IdempotencyRecord{},
		&domain.Payment{},
	)
}
