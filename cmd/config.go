// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"

	"github.com/Thermoquad/pincer/pkg/gripper"
	"github.com/Thermoquad/pincer/pkg/pg"
	"github.com/Thermoquad/pincer/pkg/transport"
)

// ConfigEnv names the settings file used when --config is not given
const ConfigEnv = "PINCER_CONFIG"

const (
	defaultBaudRate       = transport.DefaultBaudRate
	defaultReadTimeout    = pg.DefaultReadTimeout
	defaultCommandTimeout = gripper.DefaultCommandTimeout
	defaultMotionTimeout  = gripper.DefaultMotionTimeout
	defaultLogLevel       = "warn"
)

// Settings is the resolved runtime configuration
type Settings struct {
	Link            string
	BaudRate        int
	ReadTimeout     time.Duration
	CommandTimeout  time.Duration
	MotionTimeout   time.Duration
	LogLevel        string
	TrailingNewline bool
	Username        string
	NoSSLVerify     bool
}

// DefaultSettings returns the built-in defaults
func DefaultSettings() Settings {
	return Settings{
		BaudRate:       defaultBaudRate,
		ReadTimeout:    defaultReadTimeout,
		CommandTimeout: defaultCommandTimeout,
		MotionTimeout:  defaultMotionTimeout,
		LogLevel:       defaultLogLevel,
	}
}

// pincer.toml key mapping to Settings
type fileConfig struct {
	Link            string `toml:"link"`
	Baud            int    `toml:"baud"`
	ReadTimeout     string `toml:"read_timeout"`
	CommandTimeout  string `toml:"command_timeout"`
	MotionTimeout   string `toml:"motion_timeout"`
	LogLevel        string `toml:"log_level"`
	TrailingNewline bool   `toml:"trailing_newline"`
	Username        string `toml:"ws_username"`
	NoSSLVerify     bool   `toml:"no_ssl_verify"`
}

// loadConfigFile overlays the keys present in path onto cfg
func loadConfigFile(path string, cfg Settings) (Settings, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Settings{}, fmt.Errorf("load config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Settings{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("link") {
		cfg.Link = strings.TrimSpace(raw.Link)
	}
	if meta.IsDefined("baud") {
		if raw.Baud <= 0 {
			return Settings{}, fmt.Errorf("load config: baud must be positive, got %d", raw.Baud)
		}
		cfg.BaudRate = raw.Baud
	}
	if meta.IsDefined("read_timeout") {
		if cfg.ReadTimeout, err = parseDuration("read_timeout", raw.ReadTimeout); err != nil {
			return Settings{}, err
		}
	}
	if meta.IsDefined("command_timeout") {
		if cfg.CommandTimeout, err = parseDuration("command_timeout", raw.CommandTimeout); err != nil {
			return Settings{}, err
		}
	}
	if meta.IsDefined("motion_timeout") {
		if cfg.MotionTimeout, err = parseDuration("motion_timeout", raw.MotionTimeout); err != nil {
			return Settings{}, err
		}
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("trailing_newline") {
		cfg.TrailingNewline = raw.TrailingNewline
	}
	if meta.IsDefined("ws_username") {
		cfg.Username = strings.TrimSpace(raw.Username)
	}
	if meta.IsDefined("no_ssl_verify") {
		cfg.NoSSLVerify = raw.NoSSLVerify
	}

	return cfg, nil
}

// resolveSettings applies defaults, then the config file, then any flag
// set on the command line
func resolveSettings(flags *pflag.FlagSet) (Settings, error) {
	cfg := DefaultSettings()

	if env := os.Getenv(logLevelEnv); env != "" {
		cfg.LogLevel = env
	}

	path := flagConfig
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		var err error
		if cfg, err = loadConfigFile(path, cfg); err != nil {
			return Settings{}, err
		}
	}

	var err error
	if flags.Changed("link") {
		cfg.Link = flagLink
	}
	if flags.Changed("baud") {
		cfg.BaudRate = flagBaud
	}
	if flags.Changed("username") {
		cfg.Username = flagUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.NoSSLVerify = flagNoSSLVerify
	}
	if flags.Changed("read-timeout") {
		if cfg.ReadTimeout, err = parseDuration("--read-timeout", flagReadTimeout); err != nil {
			return Settings{}, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.CommandTimeout, err = parseDuration("--timeout", flagCommandTimeout); err != nil {
			return Settings{}, err
		}
	}
	if flags.Changed("motion-timeout") {
		if cfg.MotionTimeout, err = parseDuration("--motion-timeout", flagMotionTimeout); err != nil {
			return Settings{}, err
		}
	}
	if flags.Changed("newline") {
		cfg.TrailingNewline = flagNewline
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}

	return cfg, nil
}

func parseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", name, value)
	}
	return d, nil
}
