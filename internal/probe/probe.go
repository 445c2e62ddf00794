// Package probe defines the Attempt Contract: the narrow, polymorphic
// interface every protocol-specific credential probe satisfies. The
// dispatch/worker engine only ever holds a Probe interface value and never
// type-switches on the concrete implementation.
package probe

import (
	"context"
	"time"

	"github.com/ocx/raider/internal/config"
	"github.com/ocx/raider/internal/creds"
)

// PayloadStrategy determines whether the engine enumerates the 1-D
// iteration (Single) or the 2-D cross product (UsernamePassword) of the
// configured payload sources.
type PayloadStrategy int

const (
	// UsernamePassword is the default: the engine crosses Usernames x Passwords.
	UsernamePassword PayloadStrategy = iota
	// Single means the probe only ever sees one payload value per credential
	// (e.g. a scanner-style probe enumerating a port range).
	Single
)

// Expression is a probe-supplied override for one of the two payload
// sources, opaque to the engine beyond being an ordered sequence of values.
type Expression []string

// KV is one key/value pair recorded in a Loot. A slice of KV preserves
// insertion order without reaching for a third-party ordered-map type.
type KV struct {
	Key   string
	Value string
}

// Loot is an immutable record of a verified-successful authentication.
type Loot struct {
	Plugin string
	Target string
	Data   []KV
}

// Probe is the Attempt Contract. Every protocol plugin implements it and
// registers an instance with internal/registry under a stable name.
//
// Attempt must honor timeout as a hard upper bound on any network wait, and
// must distinguish a verified credential rejection (nil, nil) from a
// transport/protocol failure (non-nil error) -- this distinction drives
// retry vs. record and probes must not conflate them. Attempt must be safe
// to call concurrently from many workers; a probe's state is read-only
// after Setup returns.
type Probe interface {
	// Description is a short, human-readable summary shown by `--list-plugins`.
	Description() string
	// PayloadStrategy selects 1-D vs 2-D credential enumeration.
	PayloadStrategy() PayloadStrategy
	// OverridePayload optionally replaces a payload source with a
	// probe-generated sequence (e.g. a port range). nil means no override.
	OverridePayload() *Expression
	// Setup is called once before the run; it may read any probe-specific
	// option group off opts.
	Setup(opts *config.Options) error
	// Attempt drives one credential against one target. See type doc above
	// for the success/rejection/error contract.
	Attempt(ctx context.Context, c creds.Credentials, timeout time.Duration) ([]Loot, error)
}

// Base gives probes Go's usual composition-based defaults: embed probe.Base
// and only override what differs, in place of a trait's default method
// bodies.
type Base struct{}

func (Base) PayloadStrategy() PayloadStrategy { return UsernamePassword }
func (Base) OverridePayload() *Expression     { return nil }
