// Package pool allocates single-use reward tokens from a shared, finite pool.
//
// Allocation is a single conditional UPDATE that flips exactly one available row to
// consumed for the calling user. No read-then-write window exists, so any number of
// concurrent callers each receive a distinct token or ErrExhausted.
package pool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dbutil "github.com/giftgate/giftbot/internal/db"
	"github.com/giftgate/giftbot/internal/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// maxAllocateAttempts bounds CAS retries when racers win the selected candidate.
	maxAllocateAttempts = 16
	insertBatchSize     = 500
)

var (
	// ErrExhausted is returned when no available token remains.
	ErrExhausted = errors.New("token pool: exhausted")
	// ErrInvariantViolation indicates a token was observed in a state the atomic
	// transition should make impossible.
	ErrInvariantViolation = errors.New("token pool: allocation invariant violated")
)

// Stats summarises the pool for operators.
type Stats struct {
	Available int64 `json:"available"`
	Consumed  int64 `json:"consumed"`
}

// Pool owns every RewardToken state transition.
type Pool struct {
	db  *gorm.DB
	now func() time.Time
}

// New constructs a Pool backed by db.
func New(db *gorm.DB) *Pool {
	return &Pool{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Allocate marks one available token as consumed by userID and returns it.
func (p *Pool) Allocate(ctx context.Context, userID int64) (models.RewardToken, error) {
	if p == nil || p.db == nil {
		return models.RewardToken{}, fmt.Errorf("token pool: nil db")
	}

	for attempt := 1; attempt <= maxAllocateAttempts; attempt++ {
		claimRef := uuid.NewString()
		won, errCAS := p.tryConsume(ctx, userID, claimRef)
		if errCAS != nil {
			return models.RewardToken{}, errCAS
		}
		if won {
			return p.loadClaimed(ctx, userID, claimRef)
		}

		// Another caller took the candidate; lose only if nothing is left.
		available, errCount := p.AvailableCount(ctx)
		if errCount != nil {
			return models.RewardToken{}, errCount
		}
		if available == 0 {
			return models.RewardToken{}, ErrExhausted
		}
		log.WithFields(log.Fields{
			"user_id":   userID,
			"attempt":   attempt,
			"available": available,
		}).Debug("token pool: candidate taken by a concurrent allocation, retrying")
	}
	return models.RewardToken{}, fmt.Errorf("token pool: allocation contention after %d attempts", maxAllocateAttempts)
}

// tryConsume runs the conditional transition and reports whether this call won a row.
func (p *Pool) tryConsume(ctx context.Context, userID int64, claimRef string) (bool, error) {
	db := p.db.WithContext(ctx)

	candidate := db.Model(&models.RewardToken{}).
		Select("code").
		Where("status = ?", models.TokenAvailable).
		Order("created_at ASC, code ASC").
		Limit(1)
	if dbutil.SupportsSkipLocked(p.db) {
		candidate = candidate.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}

	res := db.Model(&models.RewardToken{}).
		Where("code = (?) AND status = ?", candidate, models.TokenAvailable).
		Updates(map[string]any{
			"status":      models.TokenConsumed,
			"owner_id":    userID,
			"consumed_at": p.now(),
			"claim_ref":   claimRef,
		})
	if res.Error != nil {
		return false, fmt.Errorf("token pool: consume: %w", res.Error)
	}
	switch res.RowsAffected {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		log.WithFields(log.Fields{"user_id": userID, "rows": res.RowsAffected}).
			Error("token pool: conditional transition consumed more than one row")
		return false, fmt.Errorf("%w: %d rows consumed by one allocation", ErrInvariantViolation, res.RowsAffected)
	}
}

// loadClaimed reads back the row won by claimRef and checks it is owned by userID.
func (p *Pool) loadClaimed(ctx context.Context, userID int64, claimRef string) (models.RewardToken, error) {
	var token models.RewardToken
	if errFind := p.db.WithContext(ctx).Where("claim_ref = ?", claimRef).First(&token).Error; errFind != nil {
		return models.RewardToken{}, fmt.Errorf("token pool: load allocated token: %w", errFind)
	}
	if token.Status != models.TokenConsumed || token.OwnerID == nil || *token.OwnerID != userID || token.ConsumedAt == nil {
		log.WithFields(log.Fields{
			"code":      token.Code,
			"user_id":   userID,
			"status":    token.Status,
			"claim_ref": claimRef,
		}).Error("token pool: allocation invariant violated")
		return models.RewardToken{}, fmt.Errorf("%w: code=%s", ErrInvariantViolation, token.Code)
	}
	return token, nil
}

// AddTokens inserts codes that are not yet known and returns how many rows were created.
// Known codes are left untouched whatever their state.
func (p *Pool) AddTokens(ctx context.Context, codes []string) (int, error) {
	if p == nil || p.db == nil {
		return 0, fmt.Errorf("token pool: nil db")
	}
	normalized := NormalizeCodes(codes)
	if len(normalized) == 0 {
		return 0, nil
	}

	now := p.now()
	rows := make([]models.RewardToken, 0, len(normalized))
	for _, code := range normalized {
		rows = append(rows, models.RewardToken{
			Code:      code,
			Status:    models.TokenAvailable,
			CreatedAt: now,
		})
	}

	res := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		CreateInBatches(&rows, insertBatchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("token pool: add tokens: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// AvailableCount returns the number of tokens that can still be allocated.
func (p *Pool) AvailableCount(ctx context.Context) (int64, error) {
	var count int64
	if errCount := p.db.WithContext(ctx).
		Model(&models.RewardToken{}).
		Where("status = ?", models.TokenAvailable).
		Count(&count).Error; errCount != nil {
		return 0, fmt.Errorf("token pool: count available: %w", errCount)
	}
	return count, nil
}

// ListAvailable returns available codes in allocation order. A limit <= 0 returns all.
func (p *Pool) ListAvailable(ctx context.Context, limit int) ([]string, error) {
	q := p.db.WithContext(ctx).
		Model(&models.RewardToken{}).
		Where("status = ?", models.TokenAvailable).
		Order("created_at ASC, code ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	codes := make([]string, 0)
	if errPluck := q.Pluck("code", &codes).Error; errPluck != nil {
		return nil, fmt.Errorf("token pool: list available: %w", errPluck)
	}
	return codes, nil
}

// Stats returns available and consumed token counts.
func (p *Pool) Stats(ctx context.Context) (Stats, error) {
	type statusCount struct {
		Status models.TokenStatus
		Total  int64
	}
	var rows []statusCount
	if errScan := p.db.WithContext(ctx).
		Model(&models.RewardToken{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; errScan != nil {
		return Stats{}, fmt.Errorf("token pool: stats: %w", errScan)
	}
	var stats Stats
	for _, row := range rows {
		switch row.Status {
		case models.TokenAvailable:
			stats.Available = row.Total
		case models.TokenConsumed:
			stats.Consumed = row.Total
		}
	}
	return stats, nil
}

// NormalizeCodes trims codes, drops blanks and keeps the first occurrence of each code.
func NormalizeCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, raw := range codes {
		code := strings.TrimSpace(raw)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

// ParseCodes splits free-form admin input on whitespace and commas.
func ParseCodes(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\r' || r == '\t' || r == ';'
	})
	return NormalizeCodes(fields)
}
