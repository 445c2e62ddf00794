// Package report implements the statistics reporter: a periodic,
// structured-log progress update over the session's counters and the
// unreachable set's size. It runs as a plain goroutine; the runtime moves
// a goroutine blocked in a ticker select off its OS thread, so a saturated
// worker pool cannot starve it.
package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/ocx/raider/internal/session"
	"github.com/ocx/raider/internal/unreachable"
)

// Run logs done/errors/unreachable-set-size at interval until ctx is
// cancelled. Intended to be launched as its own goroutine by the
// dispatcher, guarded by a WaitGroup the dispatcher waits on before
// returning. onTick, if non-nil, is invoked with the same snapshot on every
// tick (used to push a progress event to the live dashboard).
func Run(ctx context.Context, sess *session.Session, dead *unreachable.Set, interval time.Duration, onTick func(done, errors uint64, unreachableCount int)) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			done, errs, unreachableCount := sess.Done(), sess.Errors(), dead.Len()
			slog.Info("progress", "done", done, "errors", errs, "unreachable_targets", unreachableCount)
			if onTick != nil {
				onTick(done, errs, unreachableCount)
			}
		case <-ctx.Done():
			return
		}
	}
}
