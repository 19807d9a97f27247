package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/giftgate/giftbot/internal/telegram"
)

type scriptedSource struct {
	mu      sync.Mutex
	offsets []int64
	steps   []func() ([]telegram.Update, error)
}

func (s *scriptedSource) GetUpdates(ctx context.Context, offset int64, _ time.Duration, _ []string) ([]telegram.Update, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	if len(s.steps) == 0 {
		s.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	s.mu.Unlock()
	return step()
}

func messageUpdate(id, userID int64) telegram.Update {
	return telegram.Update{UpdateID: id, Message: &telegram.Message{
		MessageID: id,
		From:      &telegram.User{ID: userID},
		Chat:      telegram.Chat{ID: userID, Type: "private"},
		Text:      "/start",
	}}
}

func TestPollerAdvancesOffsetAfterBatch(t *testing.T) {
	source := &scriptedSource{steps: []func() ([]telegram.Update, error){
		func() ([]telegram.Update, error) { return nil, errors.New("connection reset") },
		func() ([]telegram.Update, error) {
			return []telegram.Update{messageUpdate(10, 1), {UpdateID: 11}, messageUpdate(12, 2)}, nil
		},
		func() ([]telegram.Update, error) { return []telegram.Update{}, nil },
	}}
	sink := &sliceSink{}
	poller := NewPoller(source, sink)
	poller.pause = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for {
		source.mu.Lock()
		calls := len(source.offsets)
		source.mu.Unlock()
		if calls >= 4 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("poller did not make progress")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	source.mu.Lock()
	offsets := append([]int64(nil), source.offsets...)
	source.mu.Unlock()
	want := []int64{0, 0, 13, 13}
	for i, offset := range want {
		if offsets[i] != offset {
			t.Fatalf("call %d: expected offset %d, got %v", i, offset, offsets)
		}
	}
	if events := sink.snapshot(); len(events) != 2 || events[0].UpdateID != 10 || events[1].UpdateID != 12 {
		t.Fatalf("unexpected events: %+v", events)
	}
}
