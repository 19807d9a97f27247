// Package reward delivers a reward through the premium channel, falling back to a
// promo code from the token pool.
package reward

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/giftgate/giftbot/internal/models"
	"github.com/giftgate/giftbot/internal/pool"
	log "github.com/sirupsen/logrus"
)

// DefaultSendTimeout bounds a single delivery call.
const DefaultSendTimeout = 10 * time.Second

// Status is the final outcome of one dispatch.
type Status int

// Dispatch outcomes.
const (
	PremiumDelivered Status = iota + 1
	TokenDelivered
	Exhausted
	DeliveryFailed
)

// String returns the outcome name used in logs.
func (s Status) String() string {
	switch s {
	case PremiumDelivered:
		return "premium_delivered"
	case TokenDelivered:
		return "token_delivered"
	case Exhausted:
		return "exhausted"
	case DeliveryFailed:
		return "delivery_failed"
	default:
		return "invalid"
	}
}

// Delivered reports whether the user received a reward.
func (s Status) Delivered() bool { return s == PremiumDelivered || s == TokenDelivered }

// PremiumOutcome tags the result of the premium tier.
type PremiumOutcome int

// Premium tier tags.
const (
	PremiumSent PremiumOutcome = iota + 1
	PremiumNotConfigured
	PremiumFailed
)

// Result describes what a dispatch delivered.
type Result struct {
	Status Status
	Token  string // Promo code for TokenDelivered and token DeliveryFailed outcomes.
	GiftID string // Premium item id for PremiumDelivered.
}

// Kind maps a delivered result to the receipt kind.
func (r Result) Kind() models.RewardKind {
	if r.Status == PremiumDelivered {
		return models.RewardKindPremium
	}
	return models.RewardKindToken
}

// Sender delivers rewards to users.
type Sender interface {
	SendPremium(ctx context.Context, userID int64, itemID, note string) error
	SendDirectMessage(ctx context.Context, userID int64, text string) error
}

// Allocator hands out tokens from the pool.
type Allocator interface {
	Allocate(ctx context.Context, userID int64) (models.RewardToken, error)
}

// Premium configures the premium tier. An empty ItemID disables it.
type Premium struct {
	ItemID string
	Note   string
}

// Options tune a Dispatcher.
type Options struct {
	Premium     Premium
	SendTimeout time.Duration
	// TokenMessage renders the message carrying a promo code.
	TokenMessage func(code string) string
}

// Dispatcher applies the tiered delivery policy.
type Dispatcher struct {
	sender       Sender
	allocator    Allocator
	premium      Premium
	sendTimeout  time.Duration
	tokenMessage func(code string) string
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(sender Sender, allocator Allocator, opts Options) *Dispatcher {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.TokenMessage == nil {
		opts.TokenMessage = DefaultTokenMessage
	}
	opts.Premium.ItemID = strings.TrimSpace(opts.Premium.ItemID)
	return &Dispatcher{
		sender:       sender,
		allocator:    allocator,
		premium:      opts.Premium,
		sendTimeout:  opts.SendTimeout,
		tokenMessage: opts.TokenMessage,
	}
}

// DefaultTokenMessage is the HTML message used to deliver a promo code.
func DefaultTokenMessage(code string) string {
	return fmt.Sprintf("🎉 Your promo code: <code>%s</code>\nUse it in the bot or on the website.", html.EscapeString(code))
}

// PremiumConfigured reports whether the premium tier is active.
func (d *Dispatcher) PremiumConfigured() bool {
	return d != nil && d.premium.ItemID != "" && d.sender != nil
}

// Dispatch delivers one reward to userID. Exactly one tier decides the outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, userID int64) Result {
	entry := log.WithField("user_id", userID)

	switch d.sendPremium(ctx, userID) {
	case PremiumSent:
		entry.WithField("gift_id", d.premium.ItemID).Info("reward: premium item delivered")
		return Result{Status: PremiumDelivered, GiftID: d.premium.ItemID}
	case PremiumFailed:
		entry.Info("reward: premium delivery failed, falling back to promo code")
	case PremiumNotConfigured:
	}

	return d.dispatchToken(ctx, userID)
}

func (d *Dispatcher) sendPremium(ctx context.Context, userID int64) PremiumOutcome {
	if !d.PremiumConfigured() {
		return PremiumNotConfigured
	}
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if errSend := d.sender.SendPremium(sendCtx, userID, d.premium.ItemID, d.premium.Note); errSend != nil {
		log.WithError(errSend).WithField("user_id", userID).Warn("reward: send premium failed")
		return PremiumFailed
	}
	return PremiumSent
}

func (d *Dispatcher) dispatchToken(ctx context.Context, userID int64) Result {
	entry := log.WithField("user_id", userID)
	if d.allocator == nil {
		entry.Error("reward: no token pool configured")
		return Result{Status: DeliveryFailed}
	}

	token, errAllocate := d.allocator.Allocate(ctx, userID)
	if errAllocate != nil {
		if errors.Is(errAllocate, pool.ErrExhausted) {
			entry.Info("reward: token pool exhausted")
			return Result{Status: Exhausted}
		}
		if errors.Is(errAllocate, pool.ErrInvariantViolation) {
			entry.WithError(errAllocate).Error("reward: token allocation invariant violated")
		} else {
			entry.WithError(errAllocate).Error("reward: token allocation failed")
		}
		return Result{Status: DeliveryFailed}
	}

	entry = entry.WithField("code", token.Code)
	if d.sender == nil {
		entry.Error("reward: no sender configured, token stays consumed")
		return Result{Status: DeliveryFailed, Token: token.Code}
	}
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if errSend := d.sender.SendDirectMessage(sendCtx, userID, d.tokenMessage(token.Code)); errSend != nil {
		entry.WithError(errSend).Error("reward: promo code allocated but message delivery failed")
		return Result{Status: DeliveryFailed, Token: token.Code}
	}
	entry.Info("reward: promo code delivered")
	return Result{Status: TokenDelivered, Token: token.Code}
}
