// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/filetail/wb/lib/codec"
)

const (
	// dialTimeout covers only the connect phase.
	dialTimeout = 5 * time.Second

	// responseReadTimeout covers the server's read, handler, and
	// write phases.
	responseReadTimeout = readTimeout + writeTimeout

	maxResponseSize = 64 * 1024
)

// ServiceError is a failure reported by the server (ok=false).
type ServiceError struct {
	Action  string
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// ServiceClient calls a SocketServer. Each Call is one connection.
type ServiceClient struct {
	socketPath string
}

// NewServiceClient returns a client for the socket at socketPath.
func NewServiceClient(socketPath string) *ServiceClient {
	return &ServiceClient{socketPath: socketPath}
}

// Call sends action with fields and decodes the reply data into
// result when both are non-nil. fields must not contain "action".
// Server-side failures are returned as *ServiceError; connection and
// codec failures as plain errors.
func (c *ServiceClient) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	reply, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}
	if !reply.OK {
		return &ServiceError{Action: action, Code: reply.Code, Message: reply.Error}
	}
	if result != nil && len(reply.Data) > 0 {
		if err := codec.Unmarshal(reply.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

func (c *ServiceClient) send(ctx context.Context, request any) (*Reply, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	if _, ok := ctx.Deadline(); !ok {
		conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	}
	var reply Reply
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&reply); err != nil {
		return nil, fmt.Errorf("reading reply: %w", err)
	}
	return &reply, nil
}
