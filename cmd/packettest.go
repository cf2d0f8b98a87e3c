// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/pincer/pkg/pg"
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by requesting a state report",
	Long: `Request a state report and wait for a valid reply until the timeout.

This command connects to the gripper, sends GET_STATE and waits for a
complete, valid state report (passing CRC check). Line noise before the
reply is skipped and reported.

Exit codes:
  0 - State report received before timeout
  1 - Timeout reached, or the device answered with an error
  2 - Connection error

Useful for testing connectivity through a serial adapter or TCP bridge.`,
	Args: cobra.NoArgs,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Pincer - Packet Test\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Timeout: %s\n", settings.CommandTimeout)
	fmt.Printf("Waiting for state report...\n\n")

	ctx, cancel := context.WithTimeout(context.Background(), settings.CommandTimeout)
	defer cancel()

	st, err := s.ctrl.GetState(ctx)
	snap := s.client.Stats()
	s.Close()

	if snap.ResyncBytes > 0 {
		fmt.Printf("(skipped %d invalid bytes before sync)\n", snap.ResyncBytes)
	}

	switch {
	case err == nil:
		fmt.Printf("SUCCESS: Received valid state report\n")
		fmt.Print(pg.FormatAnswer(st))
		fmt.Printf("  Length: %d bytes\n", len(st.Raw())+1)
		os.Exit(0)

	case errors.Is(err, pg.ErrConnectionClosed):
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case errors.Is(err, pg.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid state report received within %s\n", settings.CommandTimeout)
		os.Exit(1)

	default:
		fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
		os.Exit(1)
	}

	return nil
}
