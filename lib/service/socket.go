// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/filetail/wb/lib/codec"
)

const (
	// readTimeout is how long a client has to send its request.
	readTimeout = 30 * time.Second

	// writeTimeout bounds writing the reply.
	writeTimeout = 10 * time.Second

	// maxRequestSize bounds one request. Admin requests are a few
	// dozen bytes.
	maxRequestSize = 64 * 1024
)

// ErrorCode classifies a failed reply so wbctl can tell a mistake in
// its own request from a refusal by the server.
type ErrorCode string

const (
	// CodeMalformed: the request was undecodable, named no action, or
	// carried fields the action does not accept.
	CodeMalformed ErrorCode = "malformed"

	// CodeUnknownAction: no action of that name is registered.
	CodeUnknownAction ErrorCode = "unknown_action"

	// CodeForbidden: the peer's uid may not administer this server.
	CodeForbidden ErrorCode = "forbidden"

	// CodeFailed: the action ran and returned an error.
	CodeFailed ErrorCode = "failed"

	// CodeInternal: the server could not build a reply.
	CodeInternal ErrorCode = "internal"
)

// Reply is the envelope of every admin socket reply.
type Reply struct {
	OK    bool             `cbor:"ok"`
	Code  ErrorCode        `cbor:"code,omitempty"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// Action is one entry of the admin action table. The server checks a
// request against Fields and NeedsField before Run sees it.
type Action struct {
	// Fields are the request keys the action accepts besides
	// "action". Any other key fails the request as malformed.
	Fields []string

	// NeedsField fails requests that carry none of Fields.
	NeedsField bool

	// Mutates marks actions that change server state. They are
	// logged at info with the caller's credentials.
	Mutates bool

	// Run performs the action. A non-nil result becomes the reply's
	// data.
	Run func(ctx context.Context, request *Request) (any, error)
}

// Request is a request that passed the action's field checks.
type Request struct {
	Action string
	Peer   Peer
	fields map[string]codec.RawMessage
}

// Has reports whether the request carries field.
func (r *Request) Has(field string) bool {
	_, ok := r.fields[field]
	return ok
}

// Decode decodes the request's fields, without "action", into v
// strictly. A failure is reported to the client as malformed.
func (r *Request) Decode(v any) error {
	data, err := codec.Marshal(r.fields)
	if err != nil {
		return fmt.Errorf("re-encoding request fields: %w", err)
	}
	if err := codec.UnmarshalStrict(data, v); err != nil {
		return BadRequestf("invalid fields: %v", err)
	}
	return nil
}

// RequestError is a client mistake found by an action. It is
// reported with CodeMalformed.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// BadRequestf returns a *RequestError.
func BadRequestf(format string, args ...any) error {
	return &RequestError{Message: fmt.Sprintf(format, args...)}
}

// SocketServer serves wb's admin actions on a Unix socket, one request
// and one reply per connection. The socket is created with mode 0600,
// and a peer whose uid is neither the server's nor root is refused.
type SocketServer struct {
	socketPath string
	actions    map[string]Action
	logger     *slog.Logger

	// authorize decides whether a peer may run actions.
	authorize func(Peer) bool

	connections sync.WaitGroup
	ready       chan struct{}
}

// NewSocketServer creates a server for socketPath.
func NewSocketServer(socketPath string, logger *slog.Logger) *SocketServer {
	return &SocketServer{
		socketPath: socketPath,
		actions:    make(map[string]Action),
		logger:     logger,
		authorize:  sameUserOrRoot(os.Geteuid()),
		ready:      make(chan struct{}),
	}
}

// Ready is closed once the socket accepts connections.
func (s *SocketServer) Ready() <-chan struct{} {
	return s.ready
}

// Handle adds name to the action table. It panics on a duplicate name
// or a nil Run, and must not be called once Serve has started.
func (s *SocketServer) Handle(name string, action Action) {
	if _, exists := s.actions[name]; exists {
		panic(fmt.Sprintf("service.SocketServer: duplicate action %q", name))
	}
	if action.Run == nil {
		panic(fmt.Sprintf("service.SocketServer: action %q has no Run", name))
	}
	s.actions[name] = action
}

// Serve answers requests until ctx is cancelled, then waits for
// connections in progress. A stale socket file is replaced; the
// socket is removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	listener, err := s.listen()
	if err != nil {
		return err
	}
	defer os.Remove(s.socketPath)
	close(s.ready)
	s.logger.Info("admin socket listening", "path", s.socketPath, "actions", len(s.actions))

	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Warn("admin socket accept failed", "error", err)
			continue
		}
		s.connections.Add(1)
		go func() {
			defer s.connections.Done()
			defer conn.Close()
			s.serveConn(ctx, conn.(*net.UnixConn))
		}()
	}
	listener.Close()
	s.connections.Wait()
	return nil
}

func (s *SocketServer) listen() (*net.UnixListener, error) {
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}
	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: s.socketPath, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	// Close must not unlink: Serve removes the path itself, and a
	// restarted server may already own it.
	listener.SetUnlinkOnClose(false)
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()
		os.Remove(s.socketPath)
		return nil, fmt.Errorf("restricting %s: %w", s.socketPath, err)
	}
	return listener, nil
}

func (s *SocketServer) serveConn(ctx context.Context, conn *net.UnixConn) {
	peer, err := peerOf(conn)
	if err != nil {
		s.logger.Warn("reading admin peer credentials", "error", err)
		s.reply(conn, failure(CodeForbidden, "peer credentials unavailable"))
		return
	}
	if !s.authorize(peer) {
		s.logger.Warn("admin request refused", "uid", peer.UID, "pid", peer.PID)
		s.reply(conn, failure(CodeForbidden, fmt.Sprintf("uid %d may not administer this server", peer.UID)))
		return
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	request, action, failed := s.readRequest(conn)
	if failed != nil {
		s.reply(conn, *failed)
		return
	}
	request.Peer = peer

	if action.Mutates {
		s.logger.Info("admin change requested",
			"action", request.Action,
			"fields", request.fieldNames(),
			"uid", peer.UID,
			"pid", peer.PID,
		)
	}
	s.reply(conn, s.run(ctx, action, request))
}

// readRequest decodes one request and checks it against the action
// table. A non-nil reply means the request was refused.
func (s *SocketServer) readRequest(conn net.Conn) (*Request, Action, *Reply) {
	var fields map[string]codec.RawMessage
	err := codec.NewStrictDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&fields)
	if err != nil {
		refusal := failure(CodeMalformed, fmt.Sprintf("invalid request: %v", err))
		return nil, Action{}, &refusal
	}

	rawName, ok := fields["action"]
	if !ok {
		refusal := failure(CodeMalformed, "missing required field: action")
		return nil, Action{}, &refusal
	}
	var name string
	if err := codec.Unmarshal(rawName, &name); err != nil || name == "" {
		refusal := failure(CodeMalformed, "action must be a non-empty string")
		return nil, Action{}, &refusal
	}
	delete(fields, "action")

	action, exists := s.actions[name]
	if !exists {
		refusal := failure(CodeUnknownAction, fmt.Sprintf("unknown action %q", name))
		return nil, Action{}, &refusal
	}

	request := &Request{Action: name, fields: fields}
	if unknown := request.fieldsOutside(action.Fields); len(unknown) > 0 {
		refusal := failure(CodeMalformed, fmt.Sprintf("%s: unknown fields [%s]", name, strings.Join(unknown, " ")))
		return nil, Action{}, &refusal
	}
	if action.NeedsField && len(fields) == 0 {
		refusal := failure(CodeMalformed, fmt.Sprintf("%s: requires at least one of [%s]", name, strings.Join(action.Fields, " ")))
		return nil, Action{}, &refusal
	}
	return request, action, nil
}

// run calls the action and turns its outcome into a reply. A panic in
// the action becomes an internal error for this connection only.
func (s *SocketServer) run(ctx context.Context, action Action, request *Request) (reply Reply) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error("admin action panicked", "action", request.Action, "panic", recovered)
			reply = failure(CodeInternal, "internal error")
		}
	}()

	result, err := action.Run(ctx, request)
	if err != nil {
		var requestErr *RequestError
		if errors.As(err, &requestErr) {
			return failure(CodeMalformed, fmt.Sprintf("%s: %s", request.Action, requestErr.Message))
		}
		s.logger.Debug("admin action failed", "action", request.Action, "error", err)
		return failure(CodeFailed, err.Error())
	}

	reply = Reply{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.logger.Error("encoding admin reply", "action", request.Action, "error", err)
			return failure(CodeInternal, "encoding reply failed")
		}
		reply.Data = data
	}
	return reply
}

func (s *SocketServer) reply(conn net.Conn, reply Reply) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(reply); err != nil {
		s.logger.Debug("writing admin reply", "error", err)
	}
}

func failure(code ErrorCode, message string) Reply {
	return Reply{Code: code, Error: message}
}

// fieldsOutside returns the request's fields not in allowed, sorted.
func (r *Request) fieldsOutside(allowed []string) []string {
	var unknown []string
	for field := range r.fields {
		if !contains(allowed, field) {
			unknown = append(unknown, field)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func (r *Request) fieldNames() []string {
	names := make([]string, 0, len(r.fields))
	for field := range r.fields {
		names = append(names, field)
	}
	sort.Strings(names)
	return names
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}
