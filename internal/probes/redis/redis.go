// Package redis probes Redis authentication (password or ACL
// username+password) via the go-redis client.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ocx/raider/internal/config"
	"github.com/ocx/raider/internal/creds"
	"github.com/ocx/raider/internal/probe"
	"github.com/ocx/raider/internal/registry"
	"github.com/ocx/raider/internal/target"
)

const pluginName = "redis"

func init() {
	registry.Default().Register(pluginName, &Probe{})
}

// Probe implements the Attempt Contract for Redis AUTH. Username is
// optional (pre-ACL Redis only takes a password); when set, Redis 6+
// ACL-style AUTH user pass is used.
type Probe struct {
	probe.Base

	ssl bool
	db  int
}

func (*Probe) Description() string { return "Redis AUTH (password or ACL username+password)" }

func (p *Probe) Setup(opts *config.Options) error {
	p.ssl = opts.Redis.SSL
	p.db = opts.Redis.DB
	return nil
}

// Attempt constructs a client for c.Target with the attempted credential
// and issues PING. A successful PING is verified success; a Redis "ERR"
// auth-failure reply is a verified rejection; anything else (timeout,
// connection refused, protocol error) is a transport error.
func (p *Probe) Attempt(ctx context.Context, c creds.Credentials, timeout time.Duration) ([]probe.Loot, error) {
	host, port, err := target.Normalize(c.Target, target.DefaultPorts[pluginName])
	if err != nil {
		return nil, err
	}
	addr := target.Address(host, port)

	opts := &goredis.Options{
		Addr:         addr,
		Password:     c.Password,
		Username:     c.Username,
		DB:           p.db,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	if p.ssl {
		// Targets under test never present a CA we could pin.
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client := goredis.NewClient(opts)
	defer client.Close()

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err = client.Ping(attemptCtx).Err()
	if err == nil {
		return []probe.Loot{{
			Plugin: pluginName,
			Target: c.Target,
			Data: []probe.KV{
				{Key: "username", Value: c.Username},
				{Key: "password", Value: c.Password},
			},
		}}, nil
	}

	if isAuthRejection(err) {
		return nil, nil
	}
	return nil, fmt.Errorf("redis: %s: %w", addr, err)
}

func isAuthRejection(err error) bool {
	if errors.Is(err, goredis.Nil) {
		return false
	}
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "WRONGPASS") ||
		strings.Contains(msg, "NOAUTH") ||
		strings.Contains(msg, "INVALID PASSWORD") ||
		strings.Contains(msg, "AUTH")
}
