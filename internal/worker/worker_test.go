package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/raider/internal/config"
	"github.com/ocx/raider/internal/creds"
	"github.com/ocx/raider/internal/probe"
	"github.com/ocx/raider/internal/session"
	"github.com/ocx/raider/internal/unreachable"
)

// fakeProbe is a deterministic Attempt Contract implementation used across
// this package's tests: attemptFn decides the outcome
// and attempts records every call under a mutex for assertions.
type fakeProbe struct {
	probe.Base
	mu        sync.Mutex
	attempts  []creds.Credentials
	attemptFn func(n int, c creds.Credentials) ([]probe.Loot, error)
}

func (f *fakeProbe) Description() string         { return "fake" }
func (f *fakeProbe) Setup(*config.Options) error { return nil }
func (f *fakeProbe) Attempt(_ context.Context, c creds.Credentials, _ time.Duration) ([]probe.Loot, error) {
	f.mu.Lock()
	f.attempts = append(f.attempts, c)
	n := len(f.attempts)
	f.mu.Unlock()
	return f.attemptFn(n, c)
}

func (f *fakeProbe) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

func baseOpts() *config.Options {
	return &config.Options{
		Concurrency: 1,
		Timeout:     config.Millis(50),
		Retries:     3,
		RetryTime:   config.Millis(1),
		JitterMin:   0,
		JitterMax:   0,
		Targets:     []string{"127.0.0.1:1"},
		Usernames:   []string{"u1"},
		Passwords:   []string{"p1"},
	}
}

func runWorkerOnce(t *testing.T, opts *config.Options, p *fakeProbe, feed []creds.Credentials) *session.Session {
	t.Helper()
	sess := session.New(opts, nil)
	dead := unreachable.New()

	for _, c := range feed {
		sess.SendCredentials(c)
	}
	sess.CloseCredentials()

	Run(context.Background(), p, sess, dead)
	return sess
}

func TestWorker_MixedFailureThenSuccess(t *testing.T) {
	opts := baseOpts()
	c := creds.Credentials{Target: "t1", Username: "u1", Password: "p1"}

	p := &fakeProbe{attemptFn: func(n int, _ creds.Credentials) ([]probe.Loot, error) {
		if n < 3 {
			return nil, fmt.Errorf("transient failure %d", n)
		}
		return []probe.Loot{{Plugin: "fake", Target: "t1"}}, nil
	}}

	sess := runWorkerOnce(t, opts, p, []creds.Credentials{c})

	assert.Equal(t, uint64(1), sess.Done())
	assert.Equal(t, uint64(0), sess.Errors(), "errors must stay 0 when the final retry succeeds")
	assert.Equal(t, 3, p.attemptCount())
}

func TestWorker_RetriesExhausted_MarksUnreachable(t *testing.T) {
	opts := baseOpts()
	opts.Retries = 1
	c := creds.Credentials{Target: "dead-target", Username: "u1", Password: "p1"}

	p := &fakeProbe{attemptFn: func(n int, _ creds.Credentials) ([]probe.Loot, error) {
		return nil, fmt.Errorf("always fails")
	}}

	sess := session.New(opts, nil)
	dead := unreachable.New()
	sess.SendCredentials(c)
	sess.CloseCredentials()

	Run(context.Background(), p, sess, dead)

	assert.Equal(t, uint64(1), sess.Done())
	assert.Equal(t, uint64(1), sess.Errors())
	assert.True(t, dead.Contains("dead-target"))
}

func TestWorker_UnreachableShortCircuit(t *testing.T) {
	opts := baseOpts()
	opts.Concurrency = 4
	opts.Retries = 2

	p := &fakeProbe{attemptFn: func(n int, _ creds.Credentials) ([]probe.Loot, error) {
		return nil, fmt.Errorf("always fails")
	}}

	sess := session.New(opts, nil)
	dead := unreachable.New()

	var wg sync.WaitGroup
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Run(context.Background(), p, sess, dead)
		}()
	}

	// The channel is bounded at Concurrency, so the feed has to run against
	// live workers, exactly as the dispatcher does.
	const total = 100
	for i := 0; i < total; i++ {
		sess.SendCredentials(creds.Credentials{Target: "shared", Username: "u1", Password: fmt.Sprintf("p%d", i)})
	}
	sess.CloseCredentials()
	wg.Wait()

	assert.Equal(t, uint64(total), sess.Done())
	assert.LessOrEqual(t, p.attemptCount(), opts.Concurrency*opts.Retries)
	assert.True(t, dead.Contains("shared"))
}

func TestWorker_OkNoneIsNotAnError(t *testing.T) {
	opts := baseOpts()
	c := creds.Credentials{Target: "t1", Username: "u1", Password: "wrong"}

	p := &fakeProbe{attemptFn: func(n int, _ creds.Credentials) ([]probe.Loot, error) {
		return nil, nil // verified rejection
	}}

	sess := runWorkerOnceWithDead(t, opts, p, []creds.Credentials{c})
	assert.Equal(t, uint64(1), sess.sess.Done())
	assert.Equal(t, uint64(0), sess.sess.Errors())
	assert.False(t, sess.dead.Contains("t1"))
	assert.Equal(t, 1, p.attemptCount(), "ok(none) must not be retried")
}

type sessAndDead struct {
	sess *session.Session
	dead *unreachable.Set
}

func runWorkerOnceWithDead(t *testing.T, opts *config.Options, p *fakeProbe, feed []creds.Credentials) sessAndDead {
	t.Helper()
	sess := session.New(opts, nil)
	dead := unreachable.New()
	for _, c := range feed {
		sess.SendCredentials(c)
	}
	sess.CloseCredentials()
	Run(context.Background(), p, sess, dead)
	return sessAndDead{sess: sess, dead: dead}
}

// cancelAwareProbe yields loot only if its context stays alive for the
// whole attempt, surfacing ctx.Err() otherwise.
type cancelAwareProbe struct {
	probe.Base
	started chan struct{}
}

func (*cancelAwareProbe) Description() string         { return "cancel-aware" }
func (*cancelAwareProbe) Setup(*config.Options) error { return nil }

func (p *cancelAwareProbe) Attempt(ctx context.Context, c creds.Credentials, _ time.Duration) ([]probe.Loot, error) {
	close(p.started)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(30 * time.Millisecond):
		return []probe.Loot{{Plugin: "cancel-aware", Target: c.Target}}, nil
	}
}

type captureSink struct {
	mu   sync.Mutex
	loot []probe.Loot
}

func (s *captureSink) Add(_ context.Context, l probe.Loot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loot = append(s.loot, l)
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loot)
}

func TestWorker_InFlightAttemptOutlivesCancel(t *testing.T) {
	opts := baseOpts()
	p := &cancelAwareProbe{started: make(chan struct{})}
	sink := &captureSink{}

	sess := session.New(opts, sink)
	dead := unreachable.New()
	sess.SendCredentials(creds.Credentials{Target: "t1", Username: "u1", Password: "p1"})
	sess.CloseCredentials()

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		Run(ctx, p, sess, dead)
	}()

	<-p.started
	cancel()
	<-finished

	assert.Equal(t, uint64(1), sess.Done())
	assert.Equal(t, uint64(0), sess.Errors())
	assert.Equal(t, 1, sink.count(), "cancelling the run context must not abort an attempt already in flight")
}

func TestWorker_StopSkipsDequeuedCredential(t *testing.T) {
	opts := baseOpts()
	opts.Concurrency = 1

	p := &fakeProbe{attemptFn: func(n int, _ creds.Credentials) ([]probe.Loot, error) {
		return []probe.Loot{{Plugin: "fake"}}, nil
	}}

	sess := session.New(opts, nil)
	dead := unreachable.New()
	sess.Stop()
	sess.SendCredentials(creds.Credentials{Target: "t1", Username: "u1", Password: "p1"})
	sess.CloseCredentials()

	Run(context.Background(), p, sess, dead)

	require.Equal(t, uint64(0), sess.Done(), "a credential dequeued after stop must not be counted as done")
}
