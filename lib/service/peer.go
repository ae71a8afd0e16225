// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Peer is the process on the other end of an admin connection, as
// reported by the kernel.
type Peer struct {
	PID int32
	UID uint32
	GID uint32
}

func peerOf(conn *net.UnixConn) (Peer, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return Peer{}, fmt.Errorf("peer credentials: %w", err)
	}
	var (
		credentials *unix.Ucred
		credErr     error
	)
	err = raw.Control(func(fd uintptr) {
		credentials, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err == nil {
		err = credErr
	}
	if err != nil {
		return Peer{}, fmt.Errorf("peer credentials: %w", err)
	}
	return Peer{PID: credentials.Pid, UID: credentials.Uid, GID: credentials.Gid}, nil
}

// sameUserOrRoot admits peers running as uid or as root.
func sameUserOrRoot(uid int) func(Peer) bool {
	return func(peer Peer) bool {
		return peer.UID == 0 || int(peer.UID) == uid
	}
}
