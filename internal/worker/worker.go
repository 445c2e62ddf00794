// Package worker implements the consumer side of the engine: each worker
// drains the session's credential channel, applies jitter, bounded
// retries, and unreachable-target suppression, and invokes the shared
// probe.
package worker

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/ocx/raider/internal/probe"
	"github.com/ocx/raider/internal/session"
	"github.com/ocx/raider/internal/unreachable"
)

// Run drains sess's credential channel until it closes or the stop latch is
// observed, driving p.Attempt through the retry/jitter/unreachable
// machinery for each credential. It is meant to be launched as one
// goroutine per configured concurrency slot.
func Run(ctx context.Context, p probe.Probe, sess *session.Session, dead *unreachable.Set) {
	opts := sess.Options

	// The stop latch never interrupts an in-flight attempt: it is consulted
	// only at the checkpoints below, and the context handed to the probe
	// carries no cancellation from the caller -- the per-attempt timeout the
	// probe enforces is the only thing that bounds it.
	attemptCtx := context.WithoutCancel(ctx)

	for c := range sess.RecvCredentials() {
		if sess.IsStop() {
			// A worker that dequeues a credential but observes stop already
			// set exits the goroutine entirely without counting this
			// credential as done -- it was never attempted.
			return
		}

		var errCount int
		for attempt := 1; attempt <= opts.Retries; attempt++ {
			if sess.IsStop() {
				break
			}

			if opts.JitterMax > 0 {
				sleepJitter(opts.JitterMin.Duration(), opts.JitterMax.Duration())
			}

			if dead.Contains(c.Target) {
				// Short-circuit: a peer worker already exhausted retries
				// against this target. Counts as done, not as an error.
				break
			}

			lootList, err := p.Attempt(attemptCtx, c, opts.Timeout.Duration())
			if err != nil {
				errCount++
				if attempt < opts.Retries {
					slog.Debug("attempt failed, will retry", "target", c.Target, "attempt", attempt, "error", err)
					time.Sleep(opts.RetryTime.Duration())
					continue
				}
				dead.Add(c.Target)
				slog.Error("attempt exhausted retries, marking target unreachable", "target", c.Target, "error", err)
				break
			}

			// ok(none) and ok(some empty slice) are both treated as a
			// verified, non-error rejection: no loot, no retry, no
			// unreachable marking.
			for _, l := range lootList {
				if addErr := sess.AddLoot(attemptCtx, l); addErr != nil {
					slog.Error("loot recording failed", "plugin", l.Plugin, "target", l.Target, "error", addErr)
				}
			}
			break
		}

		sess.IncDone()
		if errCount == opts.Retries {
			sess.IncErrors()
		}
	}
}

func sleepJitter(min, max time.Duration) {
	if max <= min {
		time.Sleep(min)
		return
	}
	delta := max - min
	time.Sleep(min + time.Duration(rand.Int63n(int64(delta)+1)))
}
