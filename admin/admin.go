// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package admin registers wb's administrative actions on a
// service.SocketServer. The socket is the only path that changes
// feature flags after startup.
//
// Actions:
//
//	features.get                   current flags
//	features.set  file_upload=...  partial update; omitted fields keep their value
//	status                         subscriber and tail session counts
package admin

import (
	"context"
	"log/slog"

	"github.com/filetail/wb/features"
	"github.com/filetail/wb/lib/service"
	"github.com/filetail/wb/lib/version"
	"github.com/filetail/wb/registry"
)

// Action names.
const (
	ActionFeaturesGet = "features.get"
	ActionFeaturesSet = "features.set"
	ActionStatus      = "status"
)

// Status is the response of the status action.
type Status struct {
	Subscribers  int            `json:"subscribers"`
	TailSessions int            `json:"tail_sessions"`
	Features     features.Flags `json:"features"`
	Version      string         `json:"version"`
}

type handlers struct {
	features    *features.Set
	connections *registry.Registry[features.Flags]
	logger      *slog.Logger
}

// Register adds the admin actions to server.
func Register(server *service.SocketServer, set *features.Set, connections *registry.Registry[features.Flags], logger *slog.Logger) {
	h := &handlers{
		features:    set,
		connections: connections,
		logger:      logger.With("component", "admin"),
	}
	server.Handle(ActionFeaturesGet, service.Action{Run: h.featuresGet})
	server.Handle(ActionFeaturesSet, service.Action{
		Fields:     flagFields(),
		NeedsField: true,
		Mutates:    true,
		Run:        h.featuresSet,
	})
	server.Handle(ActionStatus, service.Action{Run: h.status})
}

func flagFields() []string {
	fields := make([]string, len(features.Capabilities))
	for i, capability := range features.Capabilities {
		fields[i] = string(capability)
	}
	return fields
}

func (h *handlers) featuresGet(ctx context.Context, request *service.Request) (any, error) {
	return h.features.Snapshot(), nil
}

// featuresSet applies a partial update. The server has already refused
// fields that name no capability and requests with no fields at all.
func (h *handlers) featuresSet(ctx context.Context, request *service.Request) (any, error) {
	var patch features.Patch
	if err := request.Decode(&patch); err != nil {
		return nil, err
	}
	// Every field was null.
	if patch.Empty() {
		return nil, service.BadRequestf("no flag values given")
	}
	flags := h.features.Apply(patch)
	h.logger.Info("feature flags set over admin socket", "flags", flags, "uid", request.Peer.UID)
	return flags, nil
}

func (h *handlers) status(ctx context.Context, request *service.Request) (any, error) {
	return Status{
		Subscribers:  h.connections.Subscribers(),
		TailSessions: h.connections.Sessions().Len(),
		Features:     h.features.Snapshot(),
		Version:      version.Info(),
	}, nil
}
