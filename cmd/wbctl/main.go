// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// wbctl administers a running wb over its admin socket.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/filetail/wb/admin"
	"github.com/filetail/wb/features"
	"github.com/filetail/wb/lib/config"
	"github.com/filetail/wb/lib/process"
	"github.com/filetail/wb/lib/service"
	"github.com/filetail/wb/lib/version"
)

const callTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		process.Fatal("wbctl", err)
	}
}

// capabilityFlags maps wbctl's short flag names to capabilities.
var capabilityFlags = []struct {
	name       string
	capability features.Capability
}{
	{"upload", features.Upload},
	{"delete", features.Delete},
	{"rename", features.Rename},
	{"download", features.Download},
}

func run(args []string, out io.Writer) error {
	var socketPath string
	var showVersion bool
	flagSet := pflag.NewFlagSet("wbctl", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", "", "admin socket path (default: admin_socket from the wb config)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	for _, entry := range capabilityFlags {
		flagSet.Bool(entry.name, false, "with 'features set': turn "+string(entry.capability)+" on or off")
	}
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.SetInterspersed(true)

	if err := flagSet.Parse(args); err != nil {
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
	if showVersion {
		version.Print(out, "wbctl")
		return nil
	}

	if socketPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		socketPath = cfg.AdminSocket
	}
	if socketPath == "" {
		return process.Usagef("no admin socket: pass --socket or set admin_socket in the wb config")
	}
	client := service.NewServiceClient(socketPath)

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	command := flagSet.Args()
	switch {
	case len(command) == 2 && command[0] == "features" && command[1] == "get":
		var flags features.Flags
		if err := client.Call(ctx, admin.ActionFeaturesGet, nil, &flags); err != nil {
			return err
		}
		return printYAML(out, flags)

	case len(command) == 2 && command[0] == "features" && command[1] == "set":
		fields := make(map[string]any)
		for _, entry := range capabilityFlags {
			if flagSet.Changed(entry.name) {
				value, _ := flagSet.GetBool(entry.name)
				fields[string(entry.capability)] = value
			}
		}
		if len(fields) == 0 {
			return process.Usagef("features set needs at least one of --upload, --delete, --rename, --download")
		}
		var flags features.Flags
		if err := client.Call(ctx, admin.ActionFeaturesSet, fields, &flags); err != nil {
			return err
		}
		return printYAML(out, flags)

	case len(command) == 1 && command[0] == "status":
		var status admin.Status
		if err := client.Call(ctx, admin.ActionStatus, nil, &status); err != nil {
			return err
		}
		fmt.Fprintf(out, "version:       %s\n", status.Version)
		fmt.Fprintf(out, "subscribers:   %d\n", status.Subscribers)
		fmt.Fprintf(out, "tail sessions: %d\n", status.TailSessions)
		fmt.Fprintln(out, "features:")
		for _, capability := range features.Capabilities {
			fmt.Fprintf(out, "  %-14s %v\n", capability+":", status.Features.Enabled(capability))
		}
		return nil

	case len(command) == 0:
		printHelp(flagSet)
		return process.Usagef("no command given")

	default:
		return process.Usagef("unknown command %q", command)
	}
}

func printYAML(out io.Writer, value any) error {
	encoder := yaml.NewEncoder(out)
	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("printing result: %w", err)
	}
	return encoder.Close()
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `wbctl talks to a running wb over its admin socket.

Usage:
  wbctl [flags] features get
  wbctl [flags] features set --upload=true --delete=false ...
  wbctl [flags] status

Only the capabilities named in "features set" change; the rest keep
their current value. Every open page sees the change immediately.

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
