// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"syscall"
	"testing"

	"github.com/coder/websocket"
)

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"wrapped_eof", fmt.Errorf("reading: %w", io.EOF), true},
		{"closed", net.ErrClosed, true},
		{"canceled", context.Canceled, true},
		{"epipe", &net.OpError{Op: "write", Err: os.NewSyscallError("write", syscall.EPIPE)}, true},
		{"reset", syscall.ECONNRESET, true},
		{"ws_normal", websocket.CloseError{Code: websocket.StatusNormalClosure}, true},
		{"ws_going_away", fmt.Errorf("read: %w", websocket.CloseError{Code: websocket.StatusGoingAway}), true},
		{"ws_policy", websocket.CloseError{Code: websocket.StatusPolicyViolation}, false},
		{"refused", syscall.ECONNREFUSED, false},
		{"other", errors.New("disk on fire"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsExpectedCloseError(test.err); got != test.want {
				t.Errorf("IsExpectedCloseError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}

func TestListenFallsBackPastBusyPort(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()
	busyPort := busy.Addr().(*net.TCPAddr).Port

	listener, err := Listen(net.JoinHostPort("127.0.0.1", strconv.Itoa(busyPort)), 50)
	if err != nil {
		t.Skipf("no free port above %d: %v", busyPort, err)
	}
	defer listener.Close()

	got := listener.Addr().(*net.TCPAddr).Port
	if got <= busyPort || got >= busyPort+50 {
		t.Errorf("bound port %d, want in (%d, %d)", got, busyPort, busyPort+50)
	}
}

func TestListenSingleAttemptFailsWhenBusy(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	if listener, err := Listen(busy.Addr().String(), 1); err == nil {
		listener.Close()
		t.Fatal("Listen() bound a busy port")
	} else if !errors.Is(err, syscall.EADDRINUSE) {
		t.Errorf("Listen() = %v, want EADDRINUSE", err)
	}
}

func TestListenRejectsBadAddress(t *testing.T) {
	for _, address := range []string{"no-port", "127.0.0.1:http", "127.0.0.1:70000"} {
		if listener, err := Listen(address, 1); err == nil {
			listener.Close()
			t.Errorf("Listen(%q) succeeded", address)
		}
	}
}
