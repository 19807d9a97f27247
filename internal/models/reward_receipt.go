package models

import "time"

// RewardKind identifies which delivery tier produced a reward.
type RewardKind string

// Reward kinds recorded on receipts.
const (
	// RewardKindPremium is a premium item delivered through the premium channel.
	RewardKindPremium RewardKind = "premium"
	// RewardKindToken is a promo code drawn from the token pool.
	RewardKindToken RewardKind = "token"
)

// RewardReceipt is the immutable record that a user has been rewarded.
type RewardReceipt struct {
	ID     string     `gorm:"type:varchar(36);primaryKey"` // Receipt identifier (uuid).
	UserID int64      `gorm:"not null;index"`              // Rewarded user.
	Kind   RewardKind `gorm:"type:varchar(16);not null"`   // Delivery tier.

	TokenCode *string `gorm:"type:text"` // Promo code for token rewards.
	GiftID    *string `gorm:"type:text"` // Premium item id for premium rewards.

	// ExclusiveUserID mirrors UserID while the grant-once policy is active so the
	// unique index rejects a second receipt for the same user.
	ExclusiveUserID *int64 `gorm:"uniqueIndex"`

	IssuedAt time.Time `gorm:"not null"` // Time the reward was delivered.
}
