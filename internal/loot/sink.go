// Package loot records successful authentications behind a pluggable Sink,
// so the engine never commits to an on-disk format.
package loot

import (
	"context"

	"github.com/ocx/raider/internal/probe"
)

// Sink records loot non-lossily. Add must be safe to call concurrently;
// workers call it from many goroutines as attempts complete.
type Sink interface {
	Add(ctx context.Context, l probe.Loot) error
	Close() error
}
