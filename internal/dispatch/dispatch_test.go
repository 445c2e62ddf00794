package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/raider/internal/config"
	"github.com/ocx/raider/internal/creds"
	"github.com/ocx/raider/internal/probe"
	"github.com/ocx/raider/internal/session"
)

type countingProbe struct {
	probe.Base
	mu    sync.Mutex
	seen  int
	delay time.Duration
}

func (p *countingProbe) Description() string         { return "counting" }
func (p *countingProbe) Setup(*config.Options) error { return nil }
func (p *countingProbe) Attempt(_ context.Context, c creds.Credentials, _ time.Duration) ([]probe.Loot, error) {
	p.mu.Lock()
	p.seen++
	p.mu.Unlock()

	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if c.Username == "valid" && c.Password == "correct" {
		return []probe.Loot{{Plugin: "counting", Target: c.Target}}, nil
	}
	return nil, nil // always a verified rejection, never an error
}

func TestDispatch_EndToEndCrossProduct(t *testing.T) {
	opts := &config.Options{
		Concurrency: 4,
		Timeout:     config.Millis(50),
		Retries:     2,
		RetryTime:   config.Millis(1),
		Quiet:       true,
		Targets:     []string{"t1", "t2"},
		Usernames:   []string{"valid", "invalid"},
		Passwords:   []string{"correct", "wrong"},
	}

	sess := session.New(opts, nil)
	p := &countingProbe{}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := Run(ctx, p, sess, nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(2*2*2), sess.Done())
	assert.Equal(t, uint64(0), sess.Errors(), "verified rejections must never count as errors")
	assert.Equal(t, 2*2*2, p.seen)
}

func TestDispatch_ConcurrencyOneCompletesEveryCredential(t *testing.T) {
	opts := &config.Options{
		Concurrency: 1,
		Timeout:     config.Millis(50),
		Retries:     1,
		RetryTime:   config.Millis(1),
		Quiet:       true,
		Targets:     []string{"t1"},
		Usernames:   []string{"u1", "u2", "u3"},
		Passwords:   []string{"p1"},
	}

	sess := session.New(opts, nil)
	p := &countingProbe{}

	err := Run(context.Background(), p, sess, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), sess.Done())
}

func TestDispatch_StopHaltsEnumeration(t *testing.T) {
	opts := &config.Options{
		Concurrency: 1,
		Timeout:     config.Millis(50),
		Retries:     1,
		RetryTime:   config.Millis(1),
		Quiet:       true,
		Targets:     []string{"t1"},
		Usernames:   []string{"u1"},
		Passwords:   make([]string, 1000),
	}
	for i := range opts.Passwords {
		opts.Passwords[i] = "p"
	}

	sess := session.New(opts, nil)
	p := &countingProbe{}
	sess.Stop()

	err := Run(context.Background(), p, sess, nil)
	require.NoError(t, err)

	assert.Less(t, sess.Done(), uint64(1000), "stopping before dispatch starts must short-circuit enumeration")
}

func TestDispatch_ProgressCallbackInvoked(t *testing.T) {
	opts := &config.Options{
		Concurrency:   1,
		Timeout:       config.Millis(50),
		Retries:       1,
		RetryTime:     config.Millis(1),
		Quiet:         false,
		StatsInterval: config.Millis(5),
		Targets:       []string{"t1"},
		Usernames:     []string{"u1", "u2", "u3", "u4", "u5"},
		Passwords:     []string{"p1"},
	}

	sess := session.New(opts, nil)
	p := &countingProbe{delay: 10 * time.Millisecond}

	var mu sync.Mutex
	var calls int
	onProgress := func(done, errs uint64, unreachableCount int) {
		mu.Lock()
		calls++
		mu.Unlock()
	}

	err := Run(context.Background(), p, sess, onProgress)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, calls, 1, "reporter must tick at least once while attempts are in flight")
}
