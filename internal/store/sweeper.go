package store

import (
	"context"
	"time"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

// Sweeper periodically prunes old tick-log rows. Daily aggregates are never
// touched by this mechanism.
type Sweeper struct {
	store     Store
	interval  time.Duration
	retention time.Duration
}

func NewSweeper(s Store, interval time.Duration, retentionDays int) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if retentionDays <= 0 {
		retentionDays = 7
	}
	return &Sweeper{
		store:     s,
		interval:  interval,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// Run blocks until ctx is done, sweeping once per interval.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-w.retention)
			removed, err := w.store.PruneTicks(ctx, cutoff)
			if err != nil {
				logs.Errorf("retention sweep, err: %+v", err)
				continue
			}
			if removed > 0 {
				logs.Infof("retention sweep removed %d tick rows", removed)
			}
		}
	}
}
