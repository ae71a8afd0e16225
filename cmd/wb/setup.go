// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/filetail/wb/lib/config"
	"github.com/filetail/wb/lib/secret"
)

// EnvAccessToken names the variable consulted for the login token when
// no access_token_file is configured.
const EnvAccessToken = "WB_ACCESS_TOKEN"

// newLogger returns a text logger when w is a terminal and a JSON
// logger otherwise.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

// loadToken returns the access token from the configured file, then
// the environment, and generates one when neither is set. generated
// reports whether the caller should show the token.
func loadToken(cfg *config.Config) (token *secret.Buffer, generated bool, err error) {
	if cfg.AccessTokenFile != "" {
		token, err := secret.ReadFile(cfg.AccessTokenFile)
		if err != nil {
			return nil, false, fmt.Errorf("loading access token: %w", err)
		}
		return token, false, nil
	}
	token, err = secret.FromEnv(EnvAccessToken)
	if err != nil {
		return nil, false, fmt.Errorf("loading access token from %s: %w", EnvAccessToken, err)
	}
	if token != nil {
		return token, false, nil
	}
	token, err = secret.Generate()
	if err != nil {
		return nil, false, fmt.Errorf("generating access token: %w", err)
	}
	return token, true, nil
}
