package backend

import (
	"context"
	"time"
)

const sweepBatch = 100

// SweepExpired deletes up to one batch of submissions whose auto-delete time
// has passed. Each deletion removes the stored images and is published as a
// delete event. It returns how many were removed.
func (l *Local) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	ids, err := l.Store.ExpiredIDs(ctx, now, sweepBatch)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		if err := l.Store.DeleteSubmission(ctx, id); err != nil {
			// Keep going; a concurrent admin delete can beat us to a row
			l.log.Warnw("retention sweep delete failed", "id", id, "err", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// StartRetentionSweeper launches a goroutine that periodically deletes expired
// submissions until ctx is cancelled. It is best-effort and logs failures.
func (l *Local) StartRetentionSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			// Wait first to avoid racing migrations at startup
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			n, err := l.SweepExpired(ctx, l.Store.now())
			if err != nil {
				l.log.Errorw("retention sweep query failed", "err", err)
				continue
			}
			if n > 0 {
				l.log.Infow("retention sweep removed expired submissions", "count", n)
			}
		}
	}()
}
