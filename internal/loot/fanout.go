package loot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ocx/raider/internal/probe"
)

// Fanout combines N sinks. Add fans out to every sink regardless of
// earlier failures, so a single misconfigured sink degrades instead of
// silently losing a find recorded successfully elsewhere. The first error
// encountered is returned to the caller after every sink has been
// attempted.
type Fanout struct {
	sinks []Sink
}

// NewFanout wraps sinks behind a single Sink.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Add(ctx context.Context, l probe.Loot) error {
	var first error
	for _, sink := range f.sinks {
		if err := sink.Add(ctx, l); err != nil {
			slog.Error("loot: sink failed to record find", "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (f *Fanout) Close() error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
