package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/giftgate/giftbot/internal/pool"
)

type fixedStats struct {
	stats pool.Stats
	err   error
}

func (f *fixedStats) Stats(context.Context) (pool.Stats, error) { return f.stats, f.err }

type recordingAlerter struct{ texts []string }

func (r *recordingAlerter) Alert(_ context.Context, text string) error {
	r.texts = append(r.texts, text)
	return nil
}

func TestReportAlertsOnceBelowWatermark(t *testing.T) {
	source := &fixedStats{stats: pool.Stats{Available: 2, Consumed: 40}}
	alerter := &recordingAlerter{}
	m := New(source, alerter, "@every 1h", 5)
	ctx := context.Background()

	m.Report(ctx)
	m.Report(ctx)
	if len(alerter.texts) != 1 {
		t.Fatalf("expected a single alert, got %d", len(alerter.texts))
	}

	source.stats.Available = 50
	m.Report(ctx)
	source.stats.Available = 1
	m.Report(ctx)
	if len(alerter.texts) != 2 {
		t.Fatalf("expected a new alert after refill, got %d", len(alerter.texts))
	}
}

func TestReportIgnoresStatsErrors(t *testing.T) {
	alerter := &recordingAlerter{}
	m := New(&fixedStats{err: errors.New("db closed")}, alerter, "@every 1h", 5)
	m.Report(context.Background())
	if len(alerter.texts) != 0 {
		t.Fatalf("expected no alert on error")
	}
}

func TestRunRejectsBadSchedule(t *testing.T) {
	m := New(&fixedStats{}, nil, "every now and then", 5)
	if err := m.Run(context.Background()); err == nil {
		t.Fatalf("expected schedule error")
	}
}

func TestRunDisabledWithoutSchedule(t *testing.T) {
	m := New(&fixedStats{}, nil, "", 5)
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("expected nil for disabled monitor, got %v", err)
	}
}
