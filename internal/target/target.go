// Package target normalizes the protocol-agnostic host[:port] strings the
// engine feeds to probes into a dialable host/port pair, filling in each
// protocol's well-known port when the operator leaves it off.
package target

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPorts maps a plugin name to the port assumed when a target string
// carries none.
var DefaultPorts = map[string]int{
	"ftp":      21,
	"ssh":      22,
	"redis":    6379,
	"postgres": 5432,
}

// Normalize splits raw into host and port. A raw value without a port gets
// defaultPort; bare IPv6 literals are accepted with or without brackets,
// but must be bracketed when a port is attached, per net.SplitHostPort.
func Normalize(raw string, defaultPort int) (string, int, error) {
	if raw == "" {
		return "", 0, fmt.Errorf("target: empty target")
	}

	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		// No port attached; the whole string is the host.
		host = strings.Trim(raw, "[]")
		if host == "" {
			return "", 0, fmt.Errorf("target: %q has no host", raw)
		}
		if defaultPort < 1 {
			return "", 0, fmt.Errorf("target: %q has no port and no default port applies", raw)
		}
		return host, defaultPort, nil
	}

	if host == "" {
		return "", 0, fmt.Errorf("target: %q has no host", raw)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("target: invalid port %q in %q", portStr, raw)
	}
	return host, port, nil
}

// Address joins a normalized host/port back into a dialable address,
// bracketing IPv6 literals.
func Address(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
