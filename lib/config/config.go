// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/filetail/wb/features"
)

// EnvConfig names the environment variable holding the config path.
const EnvConfig = "WB_CONFIG"

// Config is the complete configuration for one wb process.
type Config struct {
	// Root is the sandbox directory. Every browsed, tailed, or mutated
	// path stays inside it. Default: the working directory.
	Root string `yaml:"root"`

	// Listen is the HTTP listen address. Default: 127.0.0.1:8000.
	Listen string `yaml:"listen"`

	// PortRange is how many consecutive ports, starting at Listen's,
	// are tried when the first is busy. 1 disables the fallback.
	// Default: 1000 (8000 through 8999).
	PortRange int `yaml:"port_range"`

	// AdminSocket is the Unix socket wbctl connects to. Empty disables
	// the admin socket. Default: ${XDG_RUNTIME_DIR:-/tmp}/wb.sock.
	AdminSocket string `yaml:"admin_socket"`

	// AccessTokenFile, when set, holds the login token. Otherwise
	// WB_ACCESS_TOKEN is used, and failing that a random token is
	// generated and printed at startup.
	AccessTokenFile string `yaml:"access_token_file"`

	// CookieName is the session cookie name. Default: wb_session.
	CookieName string `yaml:"cookie_name"`

	// Features are the initial capability flags.
	Features features.Flags `yaml:"features"`

	// FeaturesFile, when set, is a JSONC file whose fields override
	// Features at startup.
	FeaturesFile string `yaml:"features_file"`

	// Tail tunes live tail sessions.
	Tail TailConfig `yaml:"tail"`

	// LogLevel is one of debug, info, warn, error. Default: info.
	LogLevel string `yaml:"log_level"`
}

// TailConfig tunes live tail sessions.
type TailConfig struct {
	// PollInterval is the period between reads. Default: 500ms.
	PollInterval time.Duration `yaml:"poll_interval"`

	// BacklogLines is the number of trailing lines sent on connect.
	// Default: 100.
	BacklogLines int `yaml:"backlog_lines"`
}

// Default returns the configuration used when no file is given.
// Mutating capabilities start disabled; download starts enabled.
func Default() *Config {
	root, err := os.Getwd()
	if err != nil {
		root = "."
	}
	return &Config{
		Root:        root,
		Listen:      "127.0.0.1:8000",
		PortRange:   1000,
		AdminSocket: "${XDG_RUNTIME_DIR:-/tmp}/wb.sock",
		CookieName:  "wb_session",
		Features: features.Flags{
			Download: true,
		},
		Tail: TailConfig{
			PollInterval: 500 * time.Millisecond,
			BacklogLines: 100,
		},
		LogLevel: "info",
	}
}

// Load reads the file named by WB_CONFIG, or returns Default when the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfig)
	if path == "" {
		config := Default()
		config.expandVariables()
		return config, nil
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults and expands variables.
func LoadFile(path string) (*Config, error) {
	config := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	config.expandVariables()
	return config, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Root = expandVars(c.Root, vars)
	vars["WB_ROOT"] = c.Root

	c.AdminSocket = expandVars(c.AdminSocket, vars)
	c.AccessTokenFile = expandVars(c.AccessTokenFile, vars)
	c.FeaturesFile = expandVars(c.FeaturesFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name := parts[1]
		defaultValue := parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Root == "" {
		errs = append(errs, errors.New("root is required"))
	} else if info, err := os.Stat(c.Root); err != nil {
		errs = append(errs, fmt.Errorf("root: %w", err))
	} else if !info.IsDir() {
		errs = append(errs, fmt.Errorf("root %s is not a directory", c.Root))
	}

	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		errs = append(errs, fmt.Errorf("listen: %w", err))
	}
	if c.PortRange < 1 {
		errs = append(errs, fmt.Errorf("port_range must be at least 1, got %d", c.PortRange))
	}
	if c.AdminSocket != "" && !filepath.IsAbs(c.AdminSocket) {
		errs = append(errs, fmt.Errorf("admin_socket must be an absolute path, got %q", c.AdminSocket))
	}
	if c.CookieName == "" || strings.ContainsAny(c.CookieName, " \t;,=") {
		errs = append(errs, fmt.Errorf("cookie_name %q is not a valid cookie name", c.CookieName))
	}
	if c.Tail.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("tail.poll_interval must be positive, got %v", c.Tail.PollInterval))
	}
	if c.Tail.BacklogLines < 1 {
		errs = append(errs, fmt.Errorf("tail.backlog_lines must be at least 1, got %d", c.Tail.BacklogLines))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
