// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
)

// Listen binds a TCP listener on address. When the port is already in
// use it tries the next port, up to attempts ports in total. Port 0 and
// attempts <= 1 disable the walk. Errors other than EADDRINUSE are
// returned immediately.
func Listen(address string, attempts int) (net.Listener, error) {
	host, portText, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("parsing listen address %q: %w", address, err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port in listen address %q", address)
	}
	if port == 0 || attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for offset := 0; offset < attempts && port+offset <= 65535; offset++ {
		candidate := net.JoinHostPort(host, strconv.Itoa(port+offset))
		listener, err := net.Listen("tcp", candidate)
		if err == nil {
			return listener, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no free port in %d attempts from %s: %w", attempts, address, lastErr)
}
