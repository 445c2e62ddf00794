// Package ftp probes FTP password authentication over the RFC 959 control
// connection, speaking the (tiny) USER/PASS exchange directly over
// net.Conn via net/textproto.
package ftp

import (
	"context"
	"fmt"
	"net"
	"net/textproto"
	"time"

	"github.com/ocx/raider/internal/config"
	"github.com/ocx/raider/internal/creds"
	"github.com/ocx/raider/internal/probe"
	"github.com/ocx/raider/internal/registry"
	"github.com/ocx/raider/internal/target"
)

const pluginName = "ftp"

func init() {
	registry.Default().Register(pluginName, &Probe{})
}

// Probe implements the Attempt Contract for plain FTP password auth.
type Probe struct {
	probe.Base
}

func (*Probe) Description() string { return "FTP password authentication (USER/PASS)" }

func (*Probe) Setup(_ *config.Options) error { return nil }

// Attempt dials the target, reads the greeting, then sends USER/PASS. A
// 230 reply is verified success; a 430/530 reply is a verified rejection;
// anything else (dial/read timeout, protocol violation) is a transport
// error fed back into the retry machinery.
func (*Probe) Attempt(ctx context.Context, c creds.Credentials, timeout time.Duration) ([]probe.Loot, error) {
	host, port, err := target.Normalize(c.Target, target.DefaultPorts[pluginName])
	if err != nil {
		return nil, err
	}
	addr := target.Address(host, port)

	// One deadline bounds the dial and the whole USER/PASS exchange.
	deadline := time.Now().Add(timeout)

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ftp: dial %s: %w", addr, err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(deadline)

	tp := textproto.NewConn(conn)

	if _, _, err := tp.ReadResponse(220); err != nil {
		return nil, fmt.Errorf("ftp: greeting: %w", err)
	}

	if err := sendCmd(tp, "USER %s", c.Username); err != nil {
		return nil, fmt.Errorf("ftp: USER: %w", err)
	}

	code, err := sendCmdCode(tp, "PASS %s", c.Password)
	if err != nil {
		return nil, fmt.Errorf("ftp: PASS: %w", err)
	}

	switch {
	case code == 230:
		return []probe.Loot{{
			Plugin: pluginName,
			Target: c.Target,
			Data: []probe.KV{
				{Key: "username", Value: c.Username},
				{Key: "password", Value: c.Password},
			},
		}}, nil
	case code == 530 || code == 430:
		return nil, nil
	default:
		return nil, fmt.Errorf("ftp: unexpected response code %d", code)
	}
}

// sendCmd issues a command and discards its response code, tolerating any
// reply (some servers reply 331 to USER, others jump straight to asking
// for a password).
func sendCmd(tp *textproto.Conn, format string, args ...interface{}) error {
	_, err := sendCmdCode(tp, format, args...)
	return err
}

// sendCmdCode issues a pipelined command and returns the raw response
// code, regardless of whether it falls in a 2xx success range -- the
// caller interprets 230 vs. 430/530 vs. anything else itself.
func sendCmdCode(tp *textproto.Conn, format string, args ...interface{}) (int, error) {
	id := tp.Next()
	tp.StartRequest(id)
	err := tp.PrintfLine(format, args...)
	tp.EndRequest(id)
	if err != nil {
		return 0, err
	}

	tp.StartResponse(id)
	defer tp.EndResponse(id)

	code, _, err := tp.ReadResponse(0)
	return code, err
}
