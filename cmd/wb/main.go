// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// wb serves one directory over HTTP: a file browser with Markdown and
// syntax-highlighted views, live tail over websocket, and uploads,
// deletes, and renames gated by feature flags. Flags change at runtime
// through the admin socket (see wbctl) and reach every open page.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/filetail/wb/admin"
	"github.com/filetail/wb/browse"
	"github.com/filetail/wb/features"
	"github.com/filetail/wb/fileops"
	"github.com/filetail/wb/lib/auth"
	"github.com/filetail/wb/lib/config"
	"github.com/filetail/wb/lib/process"
	"github.com/filetail/wb/lib/service"
	"github.com/filetail/wb/lib/version"
	"github.com/filetail/wb/registry"
	"github.com/filetail/wb/sandbox"
)

func main() {
	if err := run(); err != nil {
		process.Fatal("wb", err)
	}
}

type options struct {
	configPath  string
	root        string
	listen      string
	logLevel    string
	showVersion bool
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("wb", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "YAML config file (default: $"+config.EnvConfig+")")
	flagSet.StringVar(&opts.root, "root", "", "directory to serve (overrides config)")
	flagSet.StringVar(&opts.listen, "listen", "", "HTTP listen address (overrides config)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn, or error (overrides config)")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return process.Usagef("%v", err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if opts.showVersion {
		version.Print(os.Stdout, "wb")
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return process.Usagef("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig(opts, flagSet)
	if err != nil {
		return err
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, os.Stdout, logger)
}

// loadConfig reads the config file named by --config or WB_CONFIG and
// applies command-line overrides.
func loadConfig(opts options, flagSet *pflag.FlagSet) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if flagSet.Changed("root") {
		cfg.Root = opts.root
	}
	if flagSet.Changed("listen") {
		cfg.Listen = opts.listen
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// serve runs the HTTP server and, when configured, the admin socket
// until ctx is cancelled. The access URL and any generated token are
// written to out once the listener is bound.
func serve(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	root, err := sandbox.NewRoot(cfg.Root)
	if err != nil {
		return err
	}

	flags, err := initialFlags(cfg)
	if err != nil {
		return err
	}

	token, generated, err := loadToken(cfg)
	if err != nil {
		return err
	}
	defer token.Close()

	connections := registry.New[features.Flags]()
	set := features.NewSet(flags, connections, logger.With("component", "features"))

	authenticator, err := auth.New(auth.Config{
		Token:      token,
		CookieName: cfg.CookieName,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer authenticator.Close()

	browser := browse.New(browse.Config{
		Files:        fileops.New(root, set, logger),
		Features:     set,
		Connections:  connections,
		Auth:         authenticator,
		BacklogLines: cfg.Tail.BacklogLines,
		PollInterval: cfg.Tail.PollInterval,
		Logger:       logger,
	})

	httpServer := service.NewHTTPServer(service.HTTPServerConfig{
		Address:      cfg.Listen,
		PortAttempts: cfg.PortRange,
		Handler:      browser.Handler(),
		OnShutdown: func() {
			if err := browser.Close(); err != nil {
				logger.Warn("closing tail sessions", "error", err)
			}
		},
		Logger: logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpDone := make(chan error, 1)
	go func() { httpDone <- httpServer.Serve(ctx) }()

	var socketDone chan error
	if cfg.AdminSocket != "" {
		socketServer := service.NewSocketServer(cfg.AdminSocket, logger.With("component", "admin_socket"))
		admin.Register(socketServer, set, connections, logger)
		socketDone = make(chan error, 1)
		go func() { socketDone <- socketServer.Serve(ctx) }()
	}

	select {
	case <-httpServer.Ready():
	case err := <-httpDone:
		cancel()
		if socketDone != nil {
			<-socketDone
		}
		return err
	}
	fmt.Fprintf(out, "wb serving %s at http://%s/\n", root.Dir(), httpServer.Addr())
	if generated {
		fmt.Fprintf(out, "access token: %s\n", token.String())
	}
	logger.Info("wb running",
		"root", root.Dir(),
		"address", httpServer.Addr().String(),
		"admin_socket", cfg.AdminSocket,
		"features", flags,
		"version", version.Info(),
	)

	var errs []error
	select {
	case err := <-httpDone:
		// The HTTP server stopped on its own; take the admin socket down too.
		errs = append(errs, err)
		cancel()
	case <-ctx.Done():
		errs = append(errs, <-httpDone)
	}
	if socketDone != nil {
		if err := <-socketDone; err != nil {
			errs = append(errs, fmt.Errorf("admin socket: %w", err))
		}
	}
	logger.Info("wb stopped")
	return errors.Join(errs...)
}

// initialFlags returns the configured flags with the features file, if
// any, applied over them.
func initialFlags(cfg *config.Config) (features.Flags, error) {
	flags := cfg.Features
	if cfg.FeaturesFile == "" {
		return flags, nil
	}
	patch, err := features.LoadFile(cfg.FeaturesFile)
	if err != nil {
		return features.Flags{}, err
	}
	return patch.ApplyTo(flags), nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `wb serves a directory as a browsable, tailable file tree.

Every path stays inside the root; symlinks leading out of it are
refused. Uploads, deletes, and renames are off unless enabled in the
config or at runtime with wbctl.

Usage:
  wb [flags]

Examples:
  # Serve the current directory on 127.0.0.1:8000
  wb

  # Serve /var/log with a config file
  wb --config /etc/wb.yaml --root /var/log

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
