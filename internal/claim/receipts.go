package claim

import (
	"context"
	"fmt"

	"github.com/giftgate/giftbot/internal/models"
	"gorm.io/gorm"
)

// ReceiptStore persists reward receipts.
type ReceiptStore interface {
	Exists(ctx context.Context, userID int64) (bool, error)
	Create(ctx context.Context, receipt *models.RewardReceipt) error
}

// GormReceiptStore is the gorm-backed ReceiptStore.
type GormReceiptStore struct {
	db *gorm.DB
}

// NewGormReceiptStore constructs a GormReceiptStore.
func NewGormReceiptStore(db *gorm.DB) *GormReceiptStore {
	return &GormReceiptStore{db: db}
}

// Exists reports whether userID already holds a receipt.
func (s *GormReceiptStore) Exists(ctx context.Context, userID int64) (bool, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).
		Model(&models.RewardReceipt{}).
		Where("user_id = ?", userID).
		Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("receipts: lookup user %d: %w", userID, errCount)
	}
	return count > 0, nil
}

// Create inserts receipt.
func (s *GormReceiptStore) Create(ctx context.Context, receipt *models.RewardReceipt) error {
	if errCreate := s.db.WithContext(ctx).Create(receipt).Error; errCreate != nil {
		return fmt.Errorf("receipts: create for user %d: %w", receipt.UserID, errCreate)
	}
	return nil
}

// ListByUser returns the receipts of userID, newest first.
func (s *GormReceiptStore) ListByUser(ctx context.Context, userID int64) ([]models.RewardReceipt, error) {
	receipts := make([]models.RewardReceipt, 0)
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("issued_at DESC").
		Find(&receipts).Error; errFind != nil {
		return nil, fmt.Errorf("receipts: list user %d: %w", userID, errFind)
	}
	return receipts, nil
}
