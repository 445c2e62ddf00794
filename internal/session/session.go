// Package session implements the shared runtime fabric that the dispatcher,
// every worker, and the stats reporter hold a reference to for the run's
// entire lifetime: options, stop latch, credential channel, loot sink, and
// monotonic counters.
package session

import (
	"context"
	"sync/atomic"

	"github.com/ocx/raider/internal/config"
	"github.com/ocx/raider/internal/creds"
	"github.com/ocx/raider/internal/loot"
	"github.com/ocx/raider/internal/probe"
)

// Session is the shared runtime fabric. Options is immutable after
// construction; the stop flag and counters are atomic; the credential
// channel is the only mutable coordination primitive between the
// dispatcher and the worker pool.
type Session struct {
	Options *config.Options

	stop   atomic.Bool
	done   atomic.Uint64
	errors atomic.Uint64

	creds chan creds.Credentials
	sink  loot.Sink
}

// New builds a Session with a channel buffered to at least Options.Concurrency,
// so a worker pool of that size can never deadlock the dispatcher on send.
func New(opts *config.Options, sink loot.Sink) *Session {
	bufSize := opts.Concurrency
	if bufSize < 1 {
		bufSize = 1
	}
	return &Session{
		Options: opts,
		creds:   make(chan creds.Credentials, bufSize),
		sink:    sink,
	}
}

// Combinations builds the lazy credential sequence: for
// probe.UsernamePassword it emits the cross product of Usernames x
// Passwords (or Usernames x override, when override replaces the password
// source); for probe.Single it emits one credential per value in override
// if present, else per value in Usernames. Both strategies cross every
// value with every configured target. The sequence is produced by a
// goroutine feeding an unbuffered channel, the Go stand-in for a lazy
// iterator.
func (s *Session) Combinations(override *probe.Expression, single bool) (<-chan creds.Credentials, error) {
	if len(s.Options.Targets) == 0 {
		return nil, errNoTargets
	}

	out := make(chan creds.Credentials)

	go func() {
		defer close(out)

		if single {
			values := s.Options.Usernames
			if override != nil {
				values = []string(*override)
			}
			for _, target := range s.Options.Targets {
				for _, v := range values {
					out <- creds.Credentials{Target: target, Username: v}
				}
			}
			return
		}

		passwords := s.Options.Passwords
		if override != nil {
			passwords = []string(*override)
		}
		for _, target := range s.Options.Targets {
			for _, u := range s.Options.Usernames {
				for _, p := range passwords {
					out <- creds.Credentials{Target: target, Username: u, Password: p}
				}
			}
		}
	}()

	return out, nil
}

var errNoTargets = sessionError("session: no targets configured")

type sessionError string

func (e sessionError) Error() string { return string(e) }

// SendCredentials enqueues c on the shared channel, suspending when it is
// full (bounded, capacity >= concurrency).
func (s *Session) SendCredentials(c creds.Credentials) {
	s.creds <- c
}

// CloseCredentials closes the credential channel so every worker's range
// loop terminates once it has drained what is left.
func (s *Session) CloseCredentials() {
	close(s.creds)
}

// RecvCredentials returns the worker-facing receive side of the channel.
func (s *Session) RecvCredentials() <-chan creds.Credentials {
	return s.creds
}

// SetSink attaches sink after construction, so a sink that itself depends on
// the session (e.g. one fanning into the live dashboard, which needs the
// session to exist first) can be wired in once both sides are built.
func (s *Session) SetSink(sink loot.Sink) { s.sink = sink }

// AddLoot forwards l to the configured sink. Forwarding is expected to be
// non-lossy; a sink error is a "should never happen" condition logged by
// the caller, never swallowed here.
func (s *Session) AddLoot(ctx context.Context, l probe.Loot) error {
	if s.sink == nil {
		return nil
	}
	return s.sink.Add(ctx, l)
}

// IsStop reports whether the stop latch has been set.
func (s *Session) IsStop() bool { return s.stop.Load() }

// Stop sets the stop latch. Monotonic: once set it is never cleared.
func (s *Session) Stop() { s.stop.Store(true) }

// IncDone bumps the completed-credential counter.
func (s *Session) IncDone() { s.done.Add(1) }

// IncErrors bumps the exhausted-retry counter.
func (s *Session) IncErrors() { s.errors.Add(1) }

// Done returns the current completed-credential count.
func (s *Session) Done() uint64 { return s.done.Load() }

// Errors returns the current exhausted-retry count.
func (s *Session) Errors() uint64 { return s.errors.Load() }
