// Package dispatch implements the producer side of the engine: it builds
// the credential sequence, spawns the worker pool and the stats reporter,
// feeds credentials onto the shared channel, and waits for every worker
// and the reporter to finish before returning.
package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ocx/raider/internal/probe"
	"github.com/ocx/raider/internal/report"
	"github.com/ocx/raider/internal/session"
	"github.com/ocx/raider/internal/unreachable"
	"github.com/ocx/raider/internal/worker"
)

// Run drives one full pass over p's credential combinations against
// sess.Options.Targets. It spawns sess.Options.Concurrency workers sharing
// a borrowed p and a fresh unreachable set, optionally a stats reporter,
// enumerates credentials onto the channel (checking the stop latch before
// each send), closes the channel once enumeration ends, and waits for every
// worker and the reporter before returning. onProgress, if non-nil, is
// forwarded to the stats reporter on every tick (wired to the live
// dashboard's progress push when one is running).
func Run(ctx context.Context, p probe.Probe, sess *session.Session, onProgress func(done, errors uint64, unreachableCount int)) error {
	single := p.PayloadStrategy() == probe.Single
	override := p.OverridePayload()

	combos, err := sess.Combinations(override, single)
	if err != nil {
		return err
	}

	dead := unreachable.New()

	var workers sync.WaitGroup
	for i := 0; i < sess.Options.Concurrency; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			worker.Run(ctx, p, sess, dead)
		}()
	}

	var reporter sync.WaitGroup
	var reportCancel context.CancelFunc
	if !sess.Options.Quiet {
		var reportCtx context.Context
		reportCtx, reportCancel = context.WithCancel(ctx)
		reporter.Add(1)
		go func() {
			defer reporter.Done()
			report.Run(reportCtx, sess, dead, sess.Options.StatsInterval.Duration(), onProgress)
		}()
	}

	for c := range combos {
		if sess.IsStop() {
			slog.Info("dispatch: stop observed, halting enumeration")
			break
		}
		sess.SendCredentials(c)
	}

	sess.CloseCredentials()
	workers.Wait()

	if reportCancel != nil {
		reportCancel()
	}
	reporter.Wait()

	return nil
}
