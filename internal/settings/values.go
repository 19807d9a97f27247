package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/giftgate/giftbot/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdminIDs returns the ADMINS setting from the snapshot. The value is a JSON array of ids
// or a comma separated string. ok is false when the setting is absent or empty.
func AdminIDs() ([]int64, bool) {
	raw, ok := Value(AdminsKey)
	if !ok || len(raw) == 0 {
		return nil, false
	}
	ids, errParse := ParseAdminIDs(raw)
	if errParse != nil || len(ids) == 0 {
		return nil, false
	}
	return ids, true
}

// ParseAdminIDs decodes a stored ADMINS value.
func ParseAdminIDs(raw json.RawMessage) ([]int64, error) {
	var list []int64
	if errList := json.Unmarshal(raw, &list); errList == nil {
		return normalizeIDs(list), nil
	}
	var text string
	if errText := json.Unmarshal(raw, &text); errText != nil {
		return nil, fmt.Errorf("settings: %s: expected id list or string", AdminsKey)
	}
	return ParseIDList(text), nil
}

// ParseIDList parses comma separated ids, skipping entries that are not integers.
func ParseIDList(text string) []int64 {
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, errParse := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if errParse != nil {
			continue
		}
		ids = append(ids, id)
	}
	return normalizeIDs(ids)
}

func normalizeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetAdminIDs replaces the ADMINS setting and refreshes the snapshot.
func SetAdminIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]int64, error) {
	normalized := normalizeIDs(ids)
	if errPut := Put(ctx, db, AdminsKey, normalized); errPut != nil {
		return nil, errPut
	}
	return normalized, nil
}

// LowWatermark returns the configured pool warning threshold or fallback.
func LowWatermark(fallback int64) int64 {
	raw, ok := Value(LowWatermarkKey)
	if !ok || len(raw) == 0 {
		return fallback
	}
	var value int64
	if errDecode := json.Unmarshal(raw, &value); errDecode != nil || value < 0 {
		return fallback
	}
	return value
}

// Put upserts key with the JSON encoding of value and refreshes the snapshot.
func Put(ctx context.Context, db *gorm.DB, key string, value any) error {
	if db == nil {
		return errors.New("settings: nil db")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("settings: empty key")
	}
	encoded, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("settings: encode %s: %w", key, errMarshal)
	}
	row := models.Setting{Key: key, Value: datatypes.JSON(encoded), UpdatedAt: time.Now().UTC()}
	if errUpsert := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).Error; errUpsert != nil {
		return fmt.Errorf("settings: put %s: %w", key, errUpsert)
	}
	return Refresh(ctx, db)
}
