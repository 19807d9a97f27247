package models

import "time"

// TokenStatus is the lifecycle state of a reward token.
type TokenStatus string

// Token lifecycle states. A token only ever moves from available to consumed.
const (
	// TokenAvailable marks a token that can still be allocated.
	TokenAvailable TokenStatus = "available"
	// TokenConsumed marks a token handed to exactly one user.
	TokenConsumed TokenStatus = "consumed"
)

// RewardToken represents a single-use promo code from the shared pool.
type RewardToken struct {
	Code   string      `gorm:"type:text;primaryKey"`                              // Unique code string.
	Status TokenStatus `gorm:"type:varchar(16);not null;default:available;index"` // Lifecycle state.

	OwnerID    *int64     `gorm:"index"`                        // User who received the token.
	ConsumedAt *time.Time `gorm:"index"`                        // Allocation time, set with the status transition.
	ClaimRef   *string    `gorm:"type:varchar(64);uniqueIndex"` // Allocation attempt that consumed the token.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Insertion timestamp.
}
