// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package browse

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/filetail/wb/features"
	"github.com/filetail/wb/fileops"
	"github.com/filetail/wb/lib/auth"
	"github.com/filetail/wb/lib/clock"
	"github.com/filetail/wb/registry"
)

// Config configures a Server.
type Config struct {
	// Files performs every file operation. Required.
	Files *fileops.Service

	// Features is the process-wide flag set. Required.
	Features *features.Set

	// Connections tracks live tail sessions for shutdown. It is the
	// same registry that backs Features' subscribers. Required.
	Connections *registry.Registry[features.Flags]

	// Auth gates every route but /login. Required.
	Auth *auth.Authenticator

	// Clock drives tail polling. Defaults to clock.Real().
	Clock clock.Clock

	// BacklogLines and PollInterval tune tail sessions. Zero means
	// the tail package defaults.
	BacklogLines int
	PollInterval time.Duration

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// Server holds the handlers' shared state.
type Server struct {
	files        *fileops.Service
	features     *features.Set
	connections  *registry.Registry[features.Flags]
	auth         *auth.Authenticator
	clock        clock.Clock
	backlogLines int
	pollInterval time.Duration
	logger       *slog.Logger
}

// New validates config and returns a Server.
func New(config Config) *Server {
	if config.Files == nil || config.Features == nil || config.Connections == nil ||
		config.Auth == nil || config.Logger == nil {
		panic("browse.New: Files, Features, Connections, Auth, and Logger are required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	return &Server{
		files:        config.Files,
		features:     config.Features,
		connections:  config.Connections,
		auth:         config.Auth,
		clock:        config.Clock,
		backlogLines: config.BacklogLines,
		pollInterval: config.PollInterval,
		logger:       config.Logger.With("component", "browse"),
	}
}

// Handler returns the complete route table.
func (s *Server) Handler() http.Handler {
	pages := http.NewServeMux()
	pages.Handle("GET "+auth.LoginPath, s.auth.LoginHandler())
	pages.Handle("POST "+auth.LoginPath, s.auth.LoginHandler())
	pages.Handle("POST "+auth.LogoutPath, s.auth.LogoutHandler())
	pages.Handle("POST /upload", s.auth.RequireBrowser(http.HandlerFunc(s.handleUpload)))
	pages.Handle("POST /delete", s.auth.RequireBrowser(http.HandlerFunc(s.handleDelete)))
	pages.Handle("POST /rename", s.auth.RequireBrowser(http.HandlerFunc(s.handleRename)))
	pages.Handle("GET /{path...}", s.auth.RequireBrowser(http.HandlerFunc(s.handlePath)))

	// Websocket upgrades hijack the connection, so they bypass the
	// gzip wrapper.
	root := http.NewServeMux()
	root.Handle("GET /stream/{path...}", s.auth.RequireAPI(http.HandlerFunc(s.handleStream)))
	root.Handle("GET /features", s.auth.RequireAPI(http.HandlerFunc(s.handleFeatures)))
	root.Handle("/", gzhttp.GzipHandler(pages))
	return root
}

// Close ends every live tail session.
func (s *Server) Close() error {
	return s.connections.Sessions().CloseAll()
}
