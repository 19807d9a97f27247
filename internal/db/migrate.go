package db

import (
	"fmt"

	"github.com/giftgate/giftbot/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema. It is safe to run on every start.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.User{},
		&models.RewardToken{},
		&models.RewardReceipt{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
