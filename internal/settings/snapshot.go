// Package settings serves operator settings stored in the settings table from an
// in-memory snapshot.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/giftgate/giftbot/internal/models"
	"gorm.io/gorm"
)

// snapshot is an immutable copy of every settings row.
type snapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

var current atomic.Pointer[snapshot]

func init() {
	current.Store(&snapshot{values: map[string]json.RawMessage{}})
}

// Refresh reloads all settings from db into the snapshot.
// Call it at startup and after every write; readers only see the snapshot.
func Refresh(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("settings: nil db")
	}
	var rows []models.Setting
	if errFind := db.WithContext(ctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		return errFind
	}

	values := make(map[string]json.RawMessage, len(rows))
	latest := time.Time{}
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = json.RawMessage(row.Value)
		if at := row.UpdatedAt.UTC(); at.After(latest) {
			latest = at
		}
	}
	store(latest, values)
	return nil
}

// store replaces the snapshot with a deep copy of values.
func store(updatedAt time.Time, values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		next[key] = cloneRaw(v)
	}
	current.Store(&snapshot{updatedAt: updatedAt.UTC(), values: next})
}

// UpdatedAt returns the newest updated_at seen by the last Refresh.
func UpdatedAt() time.Time {
	return current.Load().updatedAt
}

// Value returns a copy of the raw value stored under key.
func Value(key string) (json.RawMessage, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	val, ok := current.Load().values[key]
	if !ok {
		return nil, false
	}
	return cloneRaw(val), true
}

func cloneRaw(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	copied := make([]byte, len(v))
	copy(copied, v)
	return copied
}
