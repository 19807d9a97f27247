package settings

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultWatchInterval is how often Watch reloads settings written by other instances.
const DefaultWatchInterval = 30 * time.Second

// Watch reloads the snapshot every interval until ctx is cancelled. Writes made through
// another process sharing the database become visible within one interval.
func Watch(ctx context.Context, db *gorm.DB, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		before := UpdatedAt()
		if errRefresh := Refresh(ctx, db); errRefresh != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(errRefresh).Warn("settings: periodic refresh failed")
			continue
		}
		if after := UpdatedAt(); !after.Equal(before) {
			log.WithField("updated_at", after).Info("settings: snapshot reloaded")
		}
	}
}
