// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/filetail/wb/lib/codec"
	"github.com/filetail/wb/lib/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startSocketServer runs server until the test ends and returns its
// socket path.
func startSocketServer(t *testing.T, register func(*SocketServer)) string {
	t.Helper()
	socketPath := filepath.Join(testutil.SocketDir(t), "admin.sock")
	server := NewSocketServer(socketPath, testLogger())
	register(server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 5*time.Second, "socket server stop"); err != nil {
			t.Errorf("Serve() = %v", err)
		}
	})

	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "socket server ready")
	return socketPath
}

type echoFields struct {
	Text  string `cbor:"text"`
	Shout bool   `cbor:"shout"`
}

func echoAction() Action {
	return Action{
		Fields: []string{"text", "shout"},
		Run: func(ctx context.Context, request *Request) (any, error) {
			var fields echoFields
			if err := request.Decode(&fields); err != nil {
				return nil, err
			}
			if fields.Text == "" {
				return nil, BadRequestf("text is empty")
			}
			if fields.Shout {
				fields.Text = strings.ToUpper(fields.Text)
			}
			return map[string]string{"text": fields.Text}, nil
		},
	}
}

func TestCallRoundtrip(t *testing.T) {
	socketPath := startSocketServer(t, func(server *SocketServer) {
		server.Handle("echo", echoAction())
		server.Handle("fail", Action{Run: func(context.Context, *Request) (any, error) {
			return nil, errors.New("refused")
		}})
		server.Handle("nothing", Action{Run: func(context.Context, *Request) (any, error) {
			return nil, nil
		}})
		server.Handle("crash", Action{Run: func(context.Context, *Request) (any, error) {
			panic("boom")
		}})
	})
	client := NewServiceClient(socketPath)
	ctx := context.Background()

	t.Run("data", func(t *testing.T) {
		var result map[string]string
		if err := client.Call(ctx, "echo", map[string]any{"text": "hello", "shout": true}, &result); err != nil {
			t.Fatalf("Call(echo) = %v", err)
		}
		if result["text"] != "HELLO" {
			t.Errorf("result = %v", result)
		}
	})

	t.Run("no_data", func(t *testing.T) {
		var result map[string]string
		if err := client.Call(ctx, "nothing", nil, &result); err != nil {
			t.Fatalf("Call(nothing) = %v", err)
		}
		if result != nil {
			t.Errorf("result = %v, want untouched nil map", result)
		}
	})

	tests := []struct {
		name    string
		action  string
		fields  map[string]any
		code    ErrorCode
		message string
	}{
		{"action error", "fail", nil, CodeFailed, "refused"},
		{"unknown action", "launch", nil, CodeUnknownAction, `unknown action "launch"`},
		{"unknown field", "echo", map[string]any{"text": "hi", "volume": 11}, CodeMalformed, "echo: unknown fields [volume]"},
		{"field on fieldless action", "nothing", map[string]any{"x": 1}, CodeMalformed, "nothing: unknown fields [x]"},
		{"wrong field type", "echo", map[string]any{"text": 5}, CodeMalformed, "echo: invalid fields"},
		{"action rejects value", "echo", map[string]any{"text": ""}, CodeMalformed, "echo: text is empty"},
		{"panic", "crash", nil, CodeInternal, "internal error"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := client.Call(ctx, test.action, test.fields, nil)
			var serviceErr *ServiceError
			if !errors.As(err, &serviceErr) {
				t.Fatalf("Call(%s) = %v, want *ServiceError", test.action, err)
			}
			if serviceErr.Action != test.action || serviceErr.Code != test.code {
				t.Errorf("ServiceError = %+v, want action %q code %q", serviceErr, test.action, test.code)
			}
			if !strings.Contains(serviceErr.Message, test.message) {
				t.Errorf("message = %q, want it to contain %q", serviceErr.Message, test.message)
			}
		})
	}
}

func TestNeedsField(t *testing.T) {
	ran := make(chan struct{}, 1)
	socketPath := startSocketServer(t, func(server *SocketServer) {
		server.Handle("set", Action{
			Fields:     []string{"a", "b"},
			NeedsField: true,
			Mutates:    true,
			Run: func(context.Context, *Request) (any, error) {
				ran <- struct{}{}
				return nil, nil
			},
		})
	})
	client := NewServiceClient(socketPath)

	err := client.Call(context.Background(), "set", nil, nil)
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code != CodeMalformed {
		t.Fatalf("Call(set) with no fields = %v, want malformed", err)
	}
	if !strings.Contains(serviceErr.Message, "requires at least one of [a b]") {
		t.Errorf("message = %q", serviceErr.Message)
	}
	select {
	case <-ran:
		t.Fatal("action ran for a request the server refused")
	default:
	}

	if err := client.Call(context.Background(), "set", map[string]any{"b": true}, nil); err != nil {
		t.Fatalf("Call(set, b) = %v", err)
	}
	testutil.RequireReceive(t, ran, time.Second, "action run")
}

// rawExchange writes request bytes as-is and decodes the reply.
func rawExchange(t *testing.T, socketPath string, request []byte) Reply {
	t.Helper()
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write(request); err != nil {
		t.Fatal(err)
	}
	conn.(*net.UnixConn).CloseWrite()

	var reply Reply
	if err := codec.NewDecoder(conn).Decode(&reply); err != nil {
		t.Fatal(err)
	}
	return reply
}

func TestMalformedRequests(t *testing.T) {
	socketPath := startSocketServer(t, func(server *SocketServer) {
		server.Handle("echo", echoAction())
	})

	encode := func(v any) []byte {
		data, err := codec.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}
	tests := []struct {
		name    string
		request []byte
		message string
	}{
		{"missing action", encode(map[string]any{"text": "hi"}), "missing required field: action"},
		{"action not a string", encode(map[string]any{"action": 7}), "action must be a non-empty string"},
		{"empty action", encode(map[string]any{"action": ""}), "action must be a non-empty string"},
		{"not a map", encode([]string{"echo"}), "invalid request"},
		{"truncated", []byte{0xa1, 0x66}, "invalid request"},
		// {"action": "echo", "action": "echo"}
		{"duplicate key", []byte{
			0xa2,
			0x66, 'a', 'c', 't', 'i', 'o', 'n', 0x64, 'e', 'c', 'h', 'o',
			0x66, 'a', 'c', 't', 'i', 'o', 'n', 0x64, 'e', 'c', 'h', 'o',
		}, "invalid request"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			reply := rawExchange(t, socketPath, test.request)
			if reply.OK || reply.Code != CodeMalformed {
				t.Fatalf("reply = %+v, want malformed", reply)
			}
			if !strings.Contains(reply.Error, test.message) {
				t.Errorf("error = %q, want it to contain %q", reply.Error, test.message)
			}
		})
	}
}

func TestPeerAuthorization(t *testing.T) {
	peers := make(chan Peer, 1)
	socketPath := startSocketServer(t, func(server *SocketServer) {
		server.authorize = func(peer Peer) bool {
			peers <- peer
			return false
		}
		server.Handle("echo", echoAction())
	})

	err := NewServiceClient(socketPath).Call(context.Background(), "echo", map[string]any{"text": "hi"}, nil)
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code != CodeForbidden {
		t.Fatalf("Call = %v, want forbidden", err)
	}
	seen := testutil.RequireReceive(t, peers, time.Second, "peer credentials")
	if int(seen.UID) != os.Geteuid() || int(seen.PID) != os.Getpid() {
		t.Errorf("peer = %+v, want uid %d pid %d", seen, os.Geteuid(), os.Getpid())
	}
}

func TestSameUserOrRoot(t *testing.T) {
	allow := sameUserOrRoot(1000)
	tests := []struct {
		uid  uint32
		want bool
	}{
		{1000, true},
		{0, true},
		{1001, false},
	}
	for _, test := range tests {
		if got := allow(Peer{UID: test.uid}); got != test.want {
			t.Errorf("sameUserOrRoot(1000)(uid %d) = %v, want %v", test.uid, got, test.want)
		}
	}
}

func TestSocketPermissions(t *testing.T) {
	socketPath := startSocketServer(t, func(*SocketServer) {})

	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		t.Errorf("socket mode = %o, want 600", mode)
	}
}

func TestServeRemovesStaleSocket(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "admin.sock")
	if err := os.WriteFile(socketPath, []byte("stale"), 0o600); err != nil {
		t.Fatal(err)
	}

	server := NewSocketServer(socketPath, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "ready")

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "stop"); err != nil {
		t.Fatalf("Serve() = %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket file left behind: %v", err)
	}
}

func TestHandlePanics(t *testing.T) {
	noop := Action{Run: func(context.Context, *Request) (any, error) { return nil, nil }}
	tests := []struct {
		name   string
		handle func(*SocketServer)
	}{
		{"duplicate", func(server *SocketServer) {
			server.Handle("status", noop)
			server.Handle("status", noop)
		}},
		{"nil run", func(server *SocketServer) {
			server.Handle("status", Action{})
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("Handle did not panic")
				}
			}()
			test.handle(NewSocketServer("/unused", testLogger()))
		})
	}
}

func TestCallWithoutServer(t *testing.T) {
	client := NewServiceClient(filepath.Join(t.TempDir(), "absent.sock"))
	if err := client.Call(context.Background(), "status", nil, nil); err == nil {
		t.Error("Call succeeded with no server")
	}
}
