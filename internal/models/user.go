package models

import "time"

// User is a bot user keyed by the external Telegram identity.
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false"` // Telegram user id.
	Username  string    `gorm:"type:text"`                      // Optional display name.
	FirstSeen time.Time `gorm:"not null"`                       // First interaction time.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`        // Last display name refresh.
}
