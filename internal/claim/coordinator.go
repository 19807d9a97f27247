// Package claim serialises reward claims per user and enforces the grant-once policy.
package claim

import (
	"context"
	"fmt"
	"time"

	"github.com/giftgate/giftbot/internal/membership"
	"github.com/giftgate/giftbot/internal/models"
	"github.com/giftgate/giftbot/internal/reward"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Status is the outcome of a claim.
type Status int

// Claim outcomes.
const (
	Granted Status = iota + 1
	AlreadyClaimed
	NotSubscribed
	Exhausted
	DeliveryFailed
	Busy
)

// String returns the status name used in logs.
func (s Status) String() string {
	switch s {
	case Granted:
		return "granted"
	case AlreadyClaimed:
		return "already_claimed"
	case NotSubscribed:
		return "not_subscribed"
	case Exhausted:
		return "exhausted"
	case DeliveryFailed:
		return "delivery_failed"
	case Busy:
		return "busy"
	default:
		return "invalid"
	}
}

// Result is the outcome of one claim attempt.
type Result struct {
	Status     Status
	Kind       models.RewardKind // Set when Granted.
	Token      string            // Promo code when a token was allocated.
	Membership membership.Status // Verdict of the gate, when it ran.
}

// Gate verifies channel membership.
type Gate interface {
	Verify(ctx context.Context, userID int64) membership.Status
}

// Dispatcher delivers one reward.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID int64) reward.Result
}

// Options tune a Coordinator.
type Options struct {
	// GrantOnce limits every user to a single receipt.
	GrantOnce bool
}

// Coordinator is the single entry point for reward claims.
type Coordinator struct {
	gate       Gate
	dispatcher Dispatcher
	receipts   ReceiptStore
	locker     Locker
	grantOnce  bool
	now        func() time.Time
}

// NewCoordinator constructs a Coordinator. A nil locker falls back to a MemoryLocker.
func NewCoordinator(gate Gate, dispatcher Dispatcher, receipts ReceiptStore, locker Locker, opts Options) *Coordinator {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	return &Coordinator{
		gate:       gate,
		dispatcher: dispatcher,
		receipts:   receipts,
		locker:     locker,
		grantOnce:  opts.GrantOnce,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func lockKey(userID int64) string { return fmt.Sprintf("claim:%d", userID) }

// Claim runs one claim for userID. A concurrent claim for the same user returns Busy.
func (c *Coordinator) Claim(ctx context.Context, userID int64) Result {
	entry := log.WithField("user_id", userID)
	arrivedAt := c.now()

	unlock, acquired, errLock := c.locker.TryLock(ctx, lockKey(userID))
	if errLock != nil {
		entry.WithError(errLock).Warn("claim: lock unavailable, reporting busy")
		return Result{Status: Busy}
	}
	if !acquired {
		entry.Info("claim: another claim in flight")
		return Result{Status: Busy}
	}
	defer unlock()

	res := c.claimLocked(ctx, userID)
	entry.WithFields(log.Fields{
		"status":     res.Status.String(),
		"membership": res.Membership.String(),
		"kind":       res.Kind,
		"elapsed":    c.now().Sub(arrivedAt).String(),
	}).Info("claim: finished")
	return res
}

func (c *Coordinator) claimLocked(ctx context.Context, userID int64) Result {
	verdict := c.gate.Verify(ctx, userID)
	if !verdict.Allowed() {
		return Result{Status: NotSubscribed, Membership: verdict}
	}

	if c.grantOnce {
		exists, errExists := c.receipts.Exists(ctx, userID)
		if errExists != nil {
			log.WithError(errExists).WithField("user_id", userID).Error("claim: receipt lookup failed")
			return Result{Status: DeliveryFailed, Membership: verdict}
		}
		if exists {
			return Result{Status: AlreadyClaimed, Membership: verdict}
		}
	}

	dispatched := c.dispatcher.Dispatch(ctx, userID)
	switch dispatched.Status {
	case reward.PremiumDelivered, reward.TokenDelivered:
		c.recordReceipt(ctx, userID, dispatched)
		return Result{
			Status:     Granted,
			Kind:       dispatched.Kind(),
			Token:      dispatched.Token,
			Membership: verdict,
		}
	case reward.Exhausted:
		return Result{Status: Exhausted, Membership: verdict}
	default:
		return Result{Status: DeliveryFailed, Token: dispatched.Token, Membership: verdict}
	}
}

// recordReceipt persists the grant. The write outlives caller cancellation because the
// reward has already left the system.
func (c *Coordinator) recordReceipt(ctx context.Context, userID int64, dispatched reward.Result) {
	receipt := &models.RewardReceipt{
		ID:       uuid.NewString(),
		UserID:   userID,
		Kind:     dispatched.Kind(),
		IssuedAt: c.now(),
	}
	if dispatched.Token != "" {
		token := dispatched.Token
		receipt.TokenCode = &token
	}
	if dispatched.GiftID != "" {
		giftID := dispatched.GiftID
		receipt.GiftID = &giftID
	}
	if c.grantOnce {
		exclusive := userID
		receipt.ExclusiveUserID = &exclusive
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if errCreate := c.receipts.Create(writeCtx, receipt); errCreate != nil {
		log.WithError(errCreate).WithFields(log.Fields{
			"user_id": userID,
			"kind":    receipt.Kind,
			"token":   dispatched.Token,
		}).Error("claim: reward delivered but receipt write failed")
	}
}
