// Package users keeps the registry of bot users seen by the service.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/giftgate/giftbot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store upserts and reads users.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore constructs a Store backed by db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Touch records an interaction from userID. The first call creates the row; later calls
// only refresh the display name, first_seen never changes.
func (s *Store) Touch(ctx context.Context, userID int64, username string) error {
	if s == nil || s.db == nil {
		return errors.New("users: nil db")
	}
	now := s.now()
	row := models.User{
		ID:        userID,
		Username:  strings.TrimSpace(username),
		FirstSeen: now,
		UpdatedAt: now,
	}
	if errUpsert := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "updated_at"}),
		}).
		Create(&row).Error; errUpsert != nil {
		return fmt.Errorf("users: touch %d: %w", userID, errUpsert)
	}
	return nil
}

// Get loads a user by id. It returns gorm.ErrRecordNotFound for unknown users.
func (s *Store) Get(ctx context.Context, userID int64) (models.User, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; errFind != nil {
		return models.User{}, errFind
	}
	return user, nil
}

// Count returns the number of known users.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; errCount != nil {
		return 0, fmt.Errorf("users: count: %w", errCount)
	}
	return count, nil
}
