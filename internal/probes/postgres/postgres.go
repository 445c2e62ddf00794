// Package postgres implements the Attempt Contract against PostgreSQL
// password auth via database/sql + lib/pq, the same driver
// cmd/server/main.go blank-imports.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ocx/raider/internal/config"
	"github.com/ocx/raider/internal/creds"
	"github.com/ocx/raider/internal/probe"
	"github.com/ocx/raider/internal/registry"
	"github.com/ocx/raider/internal/target"
)

const pluginName = "postgres"

func init() {
	registry.Default().Register(pluginName, &Probe{})
}

// Probe implements the Attempt Contract for Postgres password auth.
type Probe struct {
	probe.Base

	sslMode  string
	database string
}

func (*Probe) Description() string { return "PostgreSQL password authentication" }

func (p *Probe) Setup(opts *config.Options) error {
	p.sslMode = opts.Postgres.SSLMode
	if p.sslMode == "" {
		p.sslMode = "disable"
	}
	p.database = opts.Postgres.Database
	if p.database == "" {
		p.database = "postgres"
	}
	return nil
}

// Attempt opens a connection with the attempted credential and Pings it. A
// successful Ping is verified success; SQLSTATE 28P01 (invalid password)
// or 28000 (invalid authorization) is a verified rejection; anything else
// (dial timeout, connection refused, protocol error) is a transport error.
func (p *Probe) Attempt(ctx context.Context, c creds.Credentials, timeout time.Duration) ([]probe.Loot, error) {
	host, port, err := target.Normalize(c.Target, target.DefaultPorts[pluginName])
	if err != nil {
		return nil, err
	}

	// URL-style DSN: candidate passwords routinely contain spaces, quotes,
	// and backslashes that key=value conninfo syntax cannot carry unescaped.
	q := url.Values{}
	q.Set("sslmode", p.sslMode)
	q.Set("connect_timeout", strconv.Itoa(int(timeout.Seconds())+1))
	dsn := (&url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     target.Address(host, port),
		Path:     "/" + p.database,
		RawQuery: q.Encode(),
	}).String()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	defer db.Close()

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err = db.PingContext(attemptCtx)
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
	return nil, fmt.Errorf("postgres: %s:%d: %w", host, port, err)
}

func isAuthRejection(err error) bool {
	var pqErr *pq.Error
	if ok := asErrPq(err, &pqErr); ok {
		return pqErr.Code == "28P01" || pqErr.Code == "28000"
	}
	return strings.Contains(err.Error(), "password authentication failed")
}

// asErrPq unwraps a *pq.Error without pulling in errors.As's generic
// matching here -- lib/pq does not implement Unwrap, so a direct type
// assertion is the idiomatic check.
func asErrPq(err error, target **pq.Error) bool {
	if e, ok := err.(*pq.Error); ok {
		*target = e
		return true
	}
	return false
}
