// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/pincer/pkg/pg"
)

var linkTestCmd = &cobra.Command{
	Use:   "link_test",
	Short: "Check that the link stays up and carries clean frames",
	Long: `Open the link and listen without sending anything.

Every received chunk is dumped and fed to a frame decoder, so unsolicited
state reports (for example after 'monitor --interval') show up as frames
while line noise shows up as skipped bytes and CRC failures. The summary
lists those counts for the whole run. Useful for debugging flaky adapters,
bridges and WebSocket proxies.

Exit codes:
  0 - Link stayed up for the whole duration
  1 - Link dropped during the test
  2 - Link could not be opened`,
	Args: cobra.NoArgs,
	RunE: runLinkTest,
}

var linkTestDuration time.Duration

func init() {
	rootCmd.AddCommand(linkTestCmd)
	linkTestCmd.Flags().DurationVar(&linkTestDuration, "duration", 30*time.Second, "How long to listen")
}

type timeoutError interface {
	Timeout() bool
}

// linkWatch tallies raw traffic and the frames found in it. It is owned by
// the goroutine running watchLink.
type linkWatch struct {
	out     io.Writer
	dec     *pg.Decoder
	chunks  int
	bytes   int
	frames  int
	started time.Time
}

func newLinkWatch(out io.Writer) *linkWatch {
	return &linkWatch{out: out, dec: pg.NewDecoder(), started: time.Now()}
}

func (w *linkWatch) feed(chunk []byte) {
	w.chunks++
	w.bytes += len(chunk)
	fmt.Fprintf(w.out, "[%s] RX %d bytes: %s\n", time.Now().Format("15:04:05.000"), len(chunk), pg.FormatHex(chunk))

	w.dec.Write(chunk)
	for {
		f, err := w.dec.Next()
		if err != nil {
			return
		}
		w.frames++
		fmt.Fprintf(w.out, "  frame %s (0x%02X), %d payload bytes\n", f.Command, uint8(f.Command), len(f.Payload))
	}
}

func (w *linkWatch) summary(result string) {
	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, titleStyle.Render("Link test summary"))
	fmt.Fprintf(w.out, "  %s %s\n", labelStyle.Render("Elapsed:"), time.Since(w.started).Round(time.Millisecond))
	fmt.Fprintf(w.out, "  %s %d chunks, %d bytes\n", labelStyle.Render("Received:"), w.chunks, w.bytes)
	fmt.Fprintf(w.out, "  %s %d\n", labelStyle.Render("Frames:"), w.frames)
	fmt.Fprintf(w.out, "  %s %d\n", labelStyle.Render("Skipped bytes:"), w.dec.Discarded())
	fmt.Fprintf(w.out, "  %s %d\n", labelStyle.Render("CRC errors:"), w.dec.ChecksumErrors())
	if w.dec.Buffered() > 0 {
		fmt.Fprintf(w.out, "  %s %d\n", labelStyle.Render("Incomplete tail:"), w.dec.Buffered())
	}
	fmt.Fprintf(w.out, "  %s %s\n", labelStyle.Render("Result:"), result)
}

// watchLink reads from r until ctx is done or the link fails. Read
// timeouts are not failures. A nil error means the link stayed up.
func watchLink(ctx context.Context, r io.Reader, w *linkWatch) error {
	chunks := make(chan []byte, 64)
	failed := make(chan error, 1)

	go func() {
		buf := make([]byte, pg.ChunkSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				select {
				case chunks <- append([]byte(nil), buf[:n]...):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				var te timeoutError
				if errors.As(err, &te) && te.Timeout() {
					continue
				}
				failed <- err
				return
			}
		}
	}()

	heartbeat := time.NewTicker(5 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case b := <-chunks:
			w.feed(b)
		case err := <-failed:
			// Deliver what arrived before the failure
			for {
				select {
				case b := <-chunks:
					w.feed(b)
				default:
					return err
				}
			}
		case <-heartbeat.C:
			fmt.Fprintln(w.out, headerStyle.Render(fmt.Sprintf("[%s] link up, %d bytes so far",
				time.Now().Format("15:04:05.000"), w.bytes)))
		case <-ctx.Done():
			return nil
		}
	}
}

func runLinkTest(cmd *cobra.Command, args []string) error {
	conn, info, err := openLink()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("PINCER - LINK TEST"))
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Connection: %s | Listening for %s", info, linkTestDuration)))
	fmt.Fprintln(out)

	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, linkTestDuration)
	defer cancel()

	w := newLinkWatch(out)
	err = watchLink(ctx, conn, w)
	conn.Close()

	if err != nil {
		fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("link dropped: %v", err)))
		w.summary("FAILED")
		os.Exit(1)
	}
	w.summary("PASSED")
	return nil
}
