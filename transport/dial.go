package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
)

// Dial connects to a 9P service named in Plan 9 resource-specification
// form: "proto!address[!port]". Supported protocols are "tcp" and
// "unix"; "ws"/"wss" addresses are plain URLs and go through DialWS
// instead, since a WebSocket endpoint isn't expressed in proto!addr form.
func Dial(ctx context.Context, address string) (Conn, error) {
	proto, addr, err := splitAddress(address)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	switch proto {
	case "tcp":
		nc, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("transport: dial tcp!%s: %w", addr, err)
		}
		return NewStreamConn(nc), nil
	case "unix":
		nc, err := d.DialContext(ctx, "unix", addr)
		if err != nil {
			return nil, fmt.Errorf("transport: dial unix!%s: %w", addr, err)
		}
		return NewStreamConn(nc), nil
	default:
		return nil, fmt.Errorf("transport: dial: unknown protocol %q", proto)
	}
}

// Announce begins listening on an address in the same proto!address
// form Dial accepts, returning a net.Listener of accepted
// connections. Callers wrap each Accept result with NewStreamConn.
func Announce(address string) (net.Listener, error) {
	proto, addr, err := splitAddress(address)
	if err != nil {
		return nil, err
	}

	switch proto {
	case "tcp":
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("transport: announce tcp!%s: %w", addr, err)
		}
		return ln, nil
	case "unix":
		ln, err := net.Listen("unix", addr)
		if err != nil {
			return nil, fmt.Errorf("transport: announce unix!%s: %w", addr, err)
		}
		if err := os.Chmod(addr, 0700); err != nil {
			ln.Close()
			return nil, fmt.Errorf("transport: announce unix!%s: %w", addr, err)
		}
		return ln, nil
	default:
		return nil, fmt.Errorf("transport: announce: unknown protocol %q", proto)
	}
}

// splitAddress parses "proto!address[!port]" into a protocol name and
// the net.Dial-ready address string. For "tcp" a trailing "!port"
// segment is joined to the host with ":" since Go's net package wants
// "host:port", not libixp's "host!port".
func splitAddress(address string) (proto, addr string, err error) {
	i := strings.IndexByte(address, '!')
	if i < 0 {
		return "", "", fmt.Errorf("transport: address %q has no protocol", address)
	}
	proto = address[:i]
	rest := address[i+1:]

	if proto == "tcp" {
		j := strings.IndexByte(rest, '!')
		if j < 0 {
			return "", "", fmt.Errorf("transport: tcp address %q has no port", address)
		}
		host := rest[:j]
		if host == "*" {
			// Bind every interface; net wants an empty host for that.
			host = ""
		}
		rest = host + ":" + rest[j+1:]
	}
	return proto, rest, nil
}
