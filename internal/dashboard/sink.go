package dashboard

import (
	"context"

	"github.com/ocx/raider/internal/probe"
)

// Sink adapts a *Dashboard into a loot.Sink so it can be fanned in
// alongside the configured persistence sink(s): every recorded find also
// gets pushed to connected dashboard clients.
type Sink struct {
	d *Dashboard
}

// NewSink wraps d as a loot.Sink.
func NewSink(d *Dashboard) *Sink { return &Sink{d: d} }

func (s *Sink) Add(_ context.Context, l probe.Loot) error {
	s.d.NotifyLoot(l)
	return nil
}

func (s *Sink) Close() error { return nil }
