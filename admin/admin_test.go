// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/filetail/wb/features"
	"github.com/filetail/wb/lib/service"
	"github.com/filetail/wb/lib/testutil"
	"github.com/filetail/wb/registry"
)

type stubSession string

func (s stubSession) ID() string   { return string(s) }
func (s stubSession) Close() error { return nil }

func startAdmin(t *testing.T, initial features.Flags) (*service.ServiceClient, *features.Set, *registry.Registry[features.Flags]) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	connections := registry.New[features.Flags]()
	set := features.NewSet(initial, connections, logger)

	socketPath := filepath.Join(testutil.SocketDir(t), "wb.sock")
	server := service.NewSocketServer(socketPath, logger)
	Register(server, set, connections, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, 5*time.Second, "admin socket stop")
	})
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "admin socket ready")
	return service.NewServiceClient(socketPath), set, connections
}

func call(t *testing.T, client *service.ServiceClient, action string, fields map[string]any, result any) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Call(ctx, action, fields, result)
}

func TestFeaturesGet(t *testing.T) {
	initial := features.Flags{Download: true, Rename: true}
	client, _, _ := startAdmin(t, initial)

	var flags features.Flags
	if err := call(t, client, ActionFeaturesGet, nil, &flags); err != nil {
		t.Fatal(err)
	}
	if flags != initial {
		t.Errorf("features.get = %+v, want %+v", flags, initial)
	}
}

func TestFeaturesSetIsPartial(t *testing.T) {
	client, set, connections := startAdmin(t, features.Flags{Download: true})
	mailbox, err := set.Subscribe("watcher")
	if err != nil {
		t.Fatal(err)
	}
	defer set.Unsubscribe("watcher")
	testutil.RequireReceive(t, mailbox.C(), time.Second, "seed snapshot")

	var flags features.Flags
	if err := call(t, client, ActionFeaturesSet, map[string]any{"file_upload": true}, &flags); err != nil {
		t.Fatal(err)
	}
	want := features.Flags{Upload: true, Download: true}
	if flags != want {
		t.Errorf("features.set result = %+v, want %+v", flags, want)
	}
	if got := set.Snapshot(); got != want {
		t.Errorf("Snapshot() = %+v, want %+v", got, want)
	}
	if got := testutil.RequireReceive(t, mailbox.C(), time.Second, "broadcast"); got != want {
		t.Errorf("broadcast = %+v, want %+v", got, want)
	}

	if err := call(t, client, ActionFeaturesSet, map[string]any{"file_download": false}, &flags); err != nil {
		t.Fatal(err)
	}
	if want := (features.Flags{Upload: true}); flags != want {
		t.Errorf("second features.set = %+v, want %+v", flags, want)
	}
	if connections.Subscribers() != 1 {
		t.Errorf("Subscribers() = %d, want 1", connections.Subscribers())
	}
}

func TestFeaturesSetRejects(t *testing.T) {
	initial := features.Flags{Download: true}
	client, set, _ := startAdmin(t, initial)

	tests := []struct {
		name    string
		fields  map[string]any
		message string
	}{
		{"empty", nil, "requires at least one of [file_upload file_delete file_rename file_download]"},
		{"misspelled", map[string]any{"file_uplaod": true}, "unknown fields [file_uplaod]"},
		{"misspelled beside valid", map[string]any{"file_upload": true, "file_uplaod": true}, "unknown fields [file_uplaod]"},
		{"wrong type", map[string]any{"file_upload": "yes"}, "invalid fields"},
		{"only nulls", map[string]any{"file_upload": nil}, "no flag values given"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := call(t, client, ActionFeaturesSet, test.fields, nil)
			var serviceErr *service.ServiceError
			if !errors.As(err, &serviceErr) {
				t.Fatalf("error = %v, want *service.ServiceError", err)
			}
			if serviceErr.Code != service.CodeMalformed {
				t.Errorf("code = %q, want %q", serviceErr.Code, service.CodeMalformed)
			}
			if !strings.Contains(serviceErr.Message, test.message) {
				t.Errorf("message = %q, want it to contain %q", serviceErr.Message, test.message)
			}
		})
	}
	if got := set.Snapshot(); got != initial {
		t.Errorf("rejected updates changed flags to %+v", got)
	}
}

func TestStatus(t *testing.T) {
	client, set, connections := startAdmin(t, features.Flags{Delete: true})
	if _, err := set.Subscribe("one"); err != nil {
		t.Fatal(err)
	}
	if _, err := set.Subscribe("two"); err != nil {
		t.Fatal(err)
	}
	connections.Sessions().Track(stubSession("tail-1"))

	var status Status
	if err := call(t, client, ActionStatus, nil, &status); err != nil {
		t.Fatal(err)
	}
	if status.Subscribers != 2 || status.TailSessions != 1 {
		t.Errorf("status counts = %d subscribers, %d sessions; want 2, 1", status.Subscribers, status.TailSessions)
	}
	if !status.Features.Delete || status.Version == "" {
		t.Errorf("status = %+v", status)
	}
}
