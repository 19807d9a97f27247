// Package monitor reports token pool levels on a cron schedule.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/giftgate/giftbot/internal/pool"
	"github.com/giftgate/giftbot/internal/settings"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// StatsSource reports pool counts.
type StatsSource interface {
	Stats(ctx context.Context) (pool.Stats, error)
}

// Alerter forwards a low-stock warning to operators.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// Monitor logs pool statistics and warns when available tokens run low.
type Monitor struct {
	source       StatsSource
	alerter      Alerter
	schedule     string
	lowWatermark int64

	mu sync.Mutex
	// alerted suppresses repeated alerts until the pool is refilled.
	alerted bool
}

// New constructs a Monitor. A nil alerter only logs.
func New(source StatsSource, alerter Alerter, schedule string, lowWatermark int64) *Monitor {
	return &Monitor{
		source:       source,
		alerter:      alerter,
		schedule:     strings.TrimSpace(schedule),
		lowWatermark: lowWatermark,
	}
}

// Run schedules Report until ctx is cancelled. An empty schedule disables the monitor.
func (m *Monitor) Run(ctx context.Context) error {
	if m.schedule == "" {
		return nil
	}
	scheduler := cron.New()
	if _, errAdd := scheduler.AddFunc(m.schedule, func() { m.Report(ctx) }); errAdd != nil {
		return fmt.Errorf("monitor: schedule %q: %w", m.schedule, errAdd)
	}
	scheduler.Start()
	log.WithField("schedule", m.schedule).Info("monitor: pool report scheduled")
	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}

// Report logs the current pool counts once and alerts when stock is at or below the
// low watermark.
func (m *Monitor) Report(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats, errStats := m.source.Stats(ctx)
	if errStats != nil {
		log.WithError(errStats).Warn("monitor: read pool stats")
		return
	}
	watermark := settings.LowWatermark(m.lowWatermark)
	entry := log.WithFields(log.Fields{
		"available":     stats.Available,
		"consumed":      stats.Consumed,
		"low_watermark": watermark,
	})
	if stats.Available > watermark {
		m.alerted = false
		entry.Info("monitor: token pool")
		return
	}
	entry.Warn("monitor: token pool is running low")
	if m.alerter == nil || m.alerted {
		return
	}
	text := fmt.Sprintf("Promo codes are running low: %d left (%d issued).", stats.Available, stats.Consumed)
	if errAlert := m.alerter.Alert(ctx, text); errAlert != nil {
		log.WithError(errAlert).Warn("monitor: send low stock alert")
		return
	}
	m.alerted = true
}
