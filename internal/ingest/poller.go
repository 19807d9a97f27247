package ingest

import (
	"context"
	"time"

	"github.com/giftgate/giftbot/internal/telegram"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultPollTimeout = 30 * time.Second
	DefaultErrorPause  = 3 * time.Second
)

// UpdateSource is the getUpdates side of the Bot API.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration, allowed []string) ([]telegram.Update, error)
}

// Poller pulls updates with long polling and feeds them to a sink.
type Poller struct {
	source  UpdateSource
	sink    Enqueuer
	timeout time.Duration
	pause   time.Duration
	offset  int64
}

// NewPoller constructs a Poller with the default timeout and error pause.
func NewPoller(source UpdateSource, sink Enqueuer) *Poller {
	return &Poller{source: source, sink: sink, timeout: DefaultPollTimeout, pause: DefaultErrorPause}
}

// Offset returns the next update id the poller will request.
func (p *Poller) Offset() int64 { return p.offset }

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	log.Info("ingest: long polling started")
	for {
		if ctx.Err() != nil {
			return nil
		}
		if errPoll := p.pollOnce(ctx); errPoll != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(errPoll).Warn("ingest: getUpdates failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.pause):
			}
		}
	}
}

// pollOnce fetches one batch. The offset advances only after the whole batch is enqueued.
func (p *Poller) pollOnce(ctx context.Context) error {
	updates, errUpdates := p.source.GetUpdates(ctx, p.offset, p.timeout, AllowedUpdates)
	if errUpdates != nil {
		return errUpdates
	}
	next := p.offset
	for _, update := range updates {
		if ev, ok := FromUpdate(update); ok {
			p.sink.Enqueue(ev)
		}
		if update.UpdateID >= next {
			next = update.UpdateID + 1
		}
	}
	p.offset = next
	return nil
}
