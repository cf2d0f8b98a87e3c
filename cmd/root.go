// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Connection flags
	flagLink        string
	flagBaud        int
	flagUsername    string
	flagNoSSLVerify bool

	// Protocol flags
	flagReadTimeout    string
	flagCommandTimeout string
	flagMotionTimeout  string
	flagNewline        bool

	// General flags
	flagConfig   string
	flagLogLevel string

	// Resolved in PersistentPreRunE
	settings Settings
	logger   *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pincer",
	Short: "PG Gripper Protocol Tool",
	Long: `Pincer - A CLI tool for controlling and monitoring PG-series parallel grippers.

Sends commands, waits for the matching replies, and decodes the binary
protocol for monitoring and offline analysis of recorded captures.

Link forms:
  Serial:    --link /dev/ttyUSB0 [--baud 9600]   (or serial:///dev/ttyUSB0)
  TCP:       --link tcp://192.168.0.211:10001
  WebSocket: --link ws://host/path [--username user]

Settings are read from a TOML file given with --config (or PINCER_CONFIG);
flags override the file. For WebSocket authentication, the password is read
from the PINCER_PASSWORD environment variable, or prompted interactively if
not set. The --password flag is intentionally not provided to avoid leaking
credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVarP(&flagLink, "link", "l", "", "Serial device or tcp://, ws://, wss:// URL")
	pf.IntVarP(&flagBaud, "baud", "b", defaultBaudRate, "Baud rate (serial only)")
	pf.StringVar(&flagUsername, "username", "", "Username for HTTP Basic auth (WebSocket only)")
	pf.BoolVar(&flagNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	pf.StringVar(&flagReadTimeout, "read-timeout", defaultReadTimeout.String(), "Transport read timeout")
	pf.StringVarP(&flagCommandTimeout, "timeout", "t", defaultCommandTimeout.String(), "Reply timeout for commands")
	pf.StringVar(&flagMotionTimeout, "motion-timeout", defaultMotionTimeout.String(), "Completion timeout for move and grip")
	pf.BoolVar(&flagNewline, "newline", false, "Append a newline after every sent frame")

	pf.StringVarP(&flagConfig, "config", "c", "", "TOML settings file")
	pf.StringVar(&flagLogLevel, "log-level", defaultLogLevel, "Log level (trace, debug, info, warn, error)")

	rootCmd.RegisterFlagCompletionFunc("link", completeLink)
}

// loadSettings resolves defaults, the config file and flags, then builds
// the logger
func loadSettings(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd.Flags())
	if err != nil {
		return err
	}
	l, err := newLogger(s.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	settings, logger = s, l
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
