package reward

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	dbutil "github.com/giftgate/giftbot/internal/db"
	"github.com/giftgate/giftbot/internal/models"
	"github.com/giftgate/giftbot/internal/pool"
)

type stubSender struct {
	mu          sync.Mutex
	premiumErr  error
	messageErr  error
	premiumSent []string
	messages    []string
}

func (s *stubSender) SendPremium(_ context.Context, _ int64, itemID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.premiumErr != nil {
		return s.premiumErr
	}
	s.premiumSent = append(s.premiumSent, itemID)
	return nil
}

func (s *stubSender) SendDirectMessage(_ context.Context, _ int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.messageErr != nil {
		return s.messageErr
	}
	s.messages = append(s.messages, text)
	return nil
}

func setupPool(t *testing.T, codes ...string) *pool.Pool {
	t.Helper()
	conn, errOpen := dbutil.Open(filepath.Join(t.TempDir(), "reward.sqlite3"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbutil.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	p := pool.New(conn)
	if _, errAdd := p.AddTokens(context.Background(), codes); errAdd != nil {
		t.Fatalf("add tokens: %v", errAdd)
	}
	return p
}

func TestDispatchPremiumLeavesPoolUntouched(t *testing.T) {
	ctx := context.Background()
	p := setupPool(t, "A1")
	sender := &stubSender{}
	d := NewDispatcher(sender, p, Options{Premium: Premium{ItemID: "gift-1", Note: "thanks"}})

	res := d.Dispatch(ctx, 1)
	if res.Status != PremiumDelivered || res.GiftID != "gift-1" {
		t.Fatalf("expected premium delivered, got %+v", res)
	}
	if res.Kind() != models.RewardKindPremium {
		t.Fatalf("expected premium kind, got %s", res.Kind())
	}
	if count, _ := p.AvailableCount(ctx); count != 1 {
		t.Fatalf("expected pool untouched, available=%d", count)
	}
	if len(sender.messages) != 0 {
		t.Fatalf("expected no promo message, got %v", sender.messages)
	}
}

func TestDispatchFallsBackToTokenWhenPremiumFails(t *testing.T) {
	ctx := context.Background()
	p := setupPool(t, "A1")
	sender := &stubSender{premiumErr: errors.New("Bad Request: STARGIFT_INVALID")}
	d := NewDispatcher(sender, p, Options{Premium: Premium{ItemID: "gift-1"}})

	res := d.Dispatch(ctx, 1)
	if res.Status != TokenDelivered || res.Token != "A1" {
		t.Fatalf("expected token delivered, got %+v", res)
	}
	if res.Kind() != models.RewardKindToken {
		t.Fatalf("expected token kind, got %s", res.Kind())
	}
	if len(sender.messages) != 1 || !strings.Contains(sender.messages[0], "<code>A1</code>") {
		t.Fatalf("expected promo message with code, got %v", sender.messages)
	}
}

func TestDispatchWithoutPremiumUsesPool(t *testing.T) {
	ctx := context.Background()
	p := setupPool(t, "A1")
	sender := &stubSender{}
	d := NewDispatcher(sender, p, Options{})

	if d.PremiumConfigured() {
		t.Fatalf("premium must not be configured")
	}
	if res := d.Dispatch(ctx, 1); res.Status != TokenDelivered {
		t.Fatalf("expected token delivered, got %+v", res)
	}
	if len(sender.premiumSent) != 0 {
		t.Fatalf("premium must not be attempted")
	}
	if res := d.Dispatch(ctx, 2); res.Status != Exhausted {
		t.Fatalf("expected exhausted, got %+v", res)
	}
}

func TestDispatchDeliveryFailureKeepsTokenConsumed(t *testing.T) {
	ctx := context.Background()
	p := setupPool(t, "A1", "A2")
	sender := &stubSender{messageErr: errors.New("Forbidden: bot was blocked by the user")}
	d := NewDispatcher(sender, p, Options{})

	res := d.Dispatch(ctx, 5)
	if res.Status != DeliveryFailed || res.Token == "" {
		t.Fatalf("expected delivery failed with token, got %+v", res)
	}
	if count, _ := p.AvailableCount(ctx); count != 1 {
		t.Fatalf("expected the failed token to stay consumed, available=%d", count)
	}
}

type failingAllocator struct{ err error }

func (f failingAllocator) Allocate(context.Context, int64) (models.RewardToken, error) {
	return models.RewardToken{}, f.err
}

func TestDispatchStorageErrorIsDeliveryFailed(t *testing.T) {
	d := NewDispatcher(&stubSender{}, failingAllocator{err: errors.New("database is locked")}, Options{})
	if res := d.Dispatch(context.Background(), 1); res.Status != DeliveryFailed {
		t.Fatalf("expected delivery failed, got %+v", res)
	}

	d = NewDispatcher(&stubSender{}, failingAllocator{err: pool.ErrInvariantViolation}, Options{})
	if res := d.Dispatch(context.Background(), 1); res.Status != DeliveryFailed {
		t.Fatalf("expected delivery failed on invariant violation, got %+v", res)
	}
}

func TestDefaultTokenMessageEscapesCode(t *testing.T) {
	msg := DefaultTokenMessage("<A&B>")
	if !strings.Contains(msg, "<code>&lt;A&amp;B&gt;</code>") {
		t.Fatalf("expected escaped code, got %q", msg)
	}
}
