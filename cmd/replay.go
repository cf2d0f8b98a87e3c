// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/pincer/pkg/capture"
	"github.com/Thermoquad/pincer/pkg/pg"
)

var replayErrorsOnly bool

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Decode a capture file recorded with 'monitor --record'",
	Long: `Decode a capture file offline.

Received frames are decoded and validated exactly as the monitor does;
sent frames are listed with their payload. A statistics summary is printed
at the end. No link is opened.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayErrorsOnly, "errors-only", false, "Show only frames with errors or anomalies")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	snap, err := replayCapture(f, cmd.OutOrStdout(), replayErrorsOnly)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", snap)
	return nil
}

// replayCapture prints every record of a capture and returns the
// statistics of the received frames
func replayCapture(r io.Reader, out io.Writer, errorsOnly bool) (pg.Snapshot, error) {
	cr, err := capture.NewReader(r)
	if err != nil {
		return pg.Snapshot{}, err
	}

	h := cr.Header()
	fmt.Fprintln(out, titleStyle.Render("PINCER - REPLAY"))
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Link: %s | Started: %s",
		h.Link, time.Unix(0, h.Started).Format("01/02/06 15:04:05.000"))))
	fmt.Fprintln(out)

	stats := pg.NewStatistics()
	mon := &frameMonitor{out: out, stats: stats, errorsOnly: errorsOnly}

	for {
		rec, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats.Snapshot(), err
		}

		f := rec.Frame()
		if rec.Direction == capture.Sent {
			stats.AddSent(len(f.Bytes()))
			if !errorsOnly {
				fmt.Fprintf(out, "[%s] TX %s (0x%02X) %s\n",
					f.Timestamp.Format("15:04:05.000"), f.Command, uint8(f.Command), pg.FormatHex(f.Payload))
			}
			continue
		}

		stats.AddRead(len(f.Bytes()))
		a, decodeErr := pg.DecodeFrame(f)
		stats.Update(a, decodeErr)
		mon.hook(f, a, decodeErr)
	}

	return stats.Snapshot(), nil
}
