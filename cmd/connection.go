// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/pincer/pkg/gripper"
	"github.com/Thermoquad/pincer/pkg/pg"
	"github.com/Thermoquad/pincer/pkg/transport"
)

var errNoLink = errors.New("--link is required (serial device, tcp://, ws:// or wss:// URL)")

// session is an open link with a running protocol client
type session struct {
	info   string
	client *pg.Client
	ctrl   *gripper.Controller
}

// missingLinkError lists the serial ports present so the user can pick one
func missingLinkError(ports []string) error {
	if len(ports) == 0 {
		return errNoLink
	}
	return fmt.Errorf("%w; serial ports found: %s", errNoLink, strings.Join(ports, ", "))
}

// completeLink offers the serial ports present for --link
func completeLink(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	ports, err := transport.ListPorts()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var matches []string
	for _, p := range ports {
		if strings.HasPrefix(p, toComplete) {
			matches = append(matches, p)
		}
	}
	return matches, cobra.ShellCompDirectiveNoFileComp
}

// openLink opens the configured link without starting a client
func openLink() (transport.Conn, string, error) {
	if settings.Link == "" {
		ports, err := transport.ListPorts()
		if err != nil {
			logger.WithError(err).Debug("listing serial ports failed")
		}
		return nil, "", missingLinkError(ports)
	}
	return transport.Open(settings.Link, transport.Options{
		BaudRate:      settings.BaudRate,
		Username:      settings.Username,
		SkipSSLVerify: settings.NoSSLVerify,
		Log:           logger,
	})
}

// openSession opens the link, starts the receive loop and wraps the client
// in a gripper controller. hooks see every received frame.
func openSession(hooks ...pg.FrameHook) (*session, error) {
	conn, info, err := openLink()
	if err != nil {
		return nil, err
	}

	opts := []pg.Option{
		pg.WithLogger(logger),
		pg.WithReadTimeout(settings.ReadTimeout),
		pg.WithEncoder(&pg.Encoder{TrailingNewline: settings.TrailingNewline}),
	}
	for _, h := range hooks {
		opts = append(opts, pg.WithFrameHook(h))
	}

	client := pg.NewClient(conn, opts...)
	if err := client.Start(); err != nil {
		conn.Close()
		return nil, err
	}
	logger.WithField("link", info).Info("connected")

	return &session{
		info:   info,
		client: client,
		ctrl: gripper.New(client, gripper.Config{
			CommandTimeout: settings.CommandTimeout,
			MotionTimeout:  settings.MotionTimeout,
		}),
	}, nil
}

// Close stops the gripper and closes the link
func (s *session) Close() error {
	return s.client.Close()
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
