// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package browse

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/filetail/wb/lib/fault"
	"github.com/filetail/wb/lib/netutil"
	"github.com/filetail/wb/tail"
)

// writeTimeout bounds one websocket write. A client that cannot take a
// message in this long is treated as gone.
const writeTimeout = 10 * time.Second

// websocketSink adapts a websocket connection to tail.Sink. File bytes
// that are not valid UTF-8 are replaced so every message is a valid
// text frame.
type websocketSink struct {
	conn *websocket.Conn
}

func (sink websocketSink) Send(ctx context.Context, message []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return sink.conn.Write(ctx, websocket.MessageText, bytes.ToValidUTF8(message, []byte("\uFFFD")))
}

func (s *Server) acceptWebsocket(w http.ResponseWriter, r *http.Request) (*websocket.Conn, bool) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		// Accept has already written an error response.
		s.logger.Debug("websocket upgrade failed", "path", r.URL.Path, "error", err)
		return nil, false
	}
	return conn, true
}

// closeStatus picks the close status for a connection ending with no
// error: going away when the server is shutting down, normal otherwise.
func closeStatus(r *http.Request) websocket.StatusCode {
	if r.Context().Err() != nil {
		return websocket.StatusGoingAway
	}
	return websocket.StatusNormalClosure
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.acceptWebsocket(w, r)
	if !ok {
		return
	}
	// Client messages are ignored; the returned context ends when the
	// client closes or the request context does.
	ctx := conn.CloseRead(r.Context())

	session := tail.NewSession(tail.Config{
		Root:         s.files.Root(),
		Path:         r.PathValue("path"),
		Sink:         websocketSink{conn: conn},
		Clock:        s.clock,
		Logger:       s.logger,
		Tracker:      s.connections.Sessions(),
		ID:           uuid.NewString(),
		BacklogLines: s.backlogLines,
		PollInterval: s.pollInterval,
	})

	err := session.Run(ctx)
	switch {
	case err == nil:
		conn.Close(closeStatus(r), "")
	case fault.KindOf(err) != fault.Unknown:
		// Opening and backfilling failures; the diagnostic is sent.
		kind := fault.KindOf(err)
		conn.Close(fault.CloseCode(kind), kind.String())
	case netutil.IsExpectedCloseError(err):
		s.logger.Debug("tail client went away", "session", session.ID(), "error", err)
		conn.CloseNow()
	default:
		s.logger.Warn("tail session failed", "session", session.ID(), "error", err)
		conn.Close(websocket.StatusInternalError, "tail failed")
	}
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.acceptWebsocket(w, r)
	if !ok {
		return
	}
	ctx := conn.CloseRead(r.Context())

	id := uuid.NewString()
	mailbox, err := s.features.Subscribe(id)
	if err != nil {
		s.logger.Error("subscribing to feature flags", "error", err)
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer s.features.Unsubscribe(id)
	s.logger.Debug("feature subscriber connected", "subscriber", id)

	for {
		select {
		case <-ctx.Done():
			conn.Close(closeStatus(r), "")
			return
		case flags := <-mailbox.C():
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, flags)
			cancel()
			if err != nil {
				if netutil.IsExpectedCloseError(err) || ctx.Err() != nil {
					s.logger.Debug("feature subscriber went away", "subscriber", id, "error", err)
				} else {
					s.logger.Warn("writing feature flags", "subscriber", id, "error", err)
				}
				conn.CloseNow()
				return
			}
		}
	}
}
