// Package ssh probes SSH password authentication via golang.org/x/crypto/ssh.
package ssh

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/ocx/raider/internal/config"
	"github.com/ocx/raider/internal/creds"
	"github.com/ocx/raider/internal/probe"
	"github.com/ocx/raider/internal/registry"
	"github.com/ocx/raider/internal/target"
)

const pluginName = "ssh"

func init() {
	registry.Default().Register(pluginName, &Probe{})
}

// Probe implements the Attempt Contract for SSH password authentication.
type Probe struct {
	probe.Base
}

func (*Probe) Description() string { return "SSH password authentication" }

func (*Probe) Setup(_ *config.Options) error { return nil }

// Attempt dials and performs the SSH handshake with password auth. A
// successful handshake is verified success; an authentication failure (the
// client's "unable to authenticate" handshake error, or a
// *ssh.ServerAuthError) is a verified rejection; anything else (dial
// timeout, handshake/protocol failure) is a transport error.
func (*Probe) Attempt(ctx context.Context, c creds.Credentials, timeout time.Duration) ([]probe.Loot, error) {
	host, port, err := target.Normalize(c.Target, target.DefaultPorts[pluginName])
	if err != nil {
		return nil, err
	}
	addr := target.Address(host, port)

	// Credential testing against arbitrary targets has no pinned host key
	// to check ahead of time, so host key verification is accept-any.
	cfg := &ssh.ClientConfig{
		User:            c.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(c.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	// One deadline bounds the dial and the handshake.
	deadline := time.Now().Add(timeout)

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ssh: dial %s: %w", addr, err)
	}
	_ = conn.SetDeadline(deadline)

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		if _, ok := err.(*ssh.ServerAuthError); ok || strings.Contains(err.Error(), "ssh: unable to authenticate") {
			return nil, nil
		}
		return nil, fmt.Errorf("ssh: handshake %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	return []probe.Loot{{
		Plugin: pluginName,
		Target: c.Target,
		Data: []probe.KV{
			{Key: "username", Value: c.Username},
			{Key: "password", Value: c.Password},
		},
	}}, nil
}
