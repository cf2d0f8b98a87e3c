// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/pincer/pkg/capture"
	"github.com/Thermoquad/pincer/pkg/gripper"
	"github.com/Thermoquad/pincer/pkg/pg"
)

var (
	monitorErrorsOnly    bool
	monitorStatsInterval int
	monitorRecord        string
	monitorInterval      float32
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display decoded frames and detect protocol errors",
	Long: `Display every frame received from the gripper with its decoded fields.

Frames are checked for CRC errors, malformed payloads and anomalous values
(non-finite floats, status bits that contradict the error code, unknown
codes). Bytes skipped while resynchronizing after line noise are counted
in the statistics.

With --interval the gripper is asked to report its state periodically.
With --record every frame, sent and received, is written to a capture file
that can be inspected later with 'pincer replay'.

Press Ctrl+C to exit and print the final statistics.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorErrorsOnly, "errors-only", false, "Show only frames with errors or anomalies")
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 10, "Statistics display interval in seconds (0 to disable)")
	monitorCmd.Flags().StringVar(&monitorRecord, "record", "", "Write a capture file")
	monitorCmd.Flags().Float32Var(&monitorInterval, "interval", 0, "Request periodic state reports every N seconds (0 to disable)")
}

// frameMonitor prints received frames. Hooks run on the receive goroutine
// while the stats ticker prints from the command goroutine.
type frameMonitor struct {
	mu         sync.Mutex
	out        io.Writer
	stats      *pg.Statistics
	errorsOnly bool
}

func (m *frameMonitor) hook(f pg.Frame, a pg.Answer, decodeErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var anomalies []pg.ValidationError
	if decodeErr == nil {
		anomalies = pg.ValidateAnswer(a)
		if m.stats != nil {
			m.stats.AddAnomalies(len(anomalies))
		}
	}

	_, deviceErr := a.(*pg.CommandError)
	if m.errorsOnly && decodeErr == nil && len(anomalies) == 0 && !deviceErr {
		return
	}

	text := pg.FormatFrame(f, a, decodeErr)
	if decodeErr != nil || deviceErr {
		text = renderLines(errorStyle, text)
	}
	fmt.Fprint(m.out, text)
	for _, v := range anomalies {
		fmt.Fprintln(m.out, warningStyle.Render(fmt.Sprintf("  ANOMALY %s: %s", v.Type, v.Message)))
	}
}

func (m *frameMonitor) printf(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintf(m.out, format, args...)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	mon := &frameMonitor{out: cmd.OutOrStdout(), errorsOnly: monitorErrorsOnly}
	hooks := []pg.FrameHook{mon.hook}

	var rec *capture.Writer
	if monitorRecord != "" {
		f, err := os.Create(monitorRecord)
		if err != nil {
			return fmt.Errorf("create capture: %w", err)
		}
		defer f.Close()
		if rec, err = capture.NewWriter(f, settings.Link); err != nil {
			return err
		}
		hooks = append(hooks, rec.Hook())
	}

	s, err := openSession(hooks...)
	if err != nil {
		return err
	}
	defer s.Close()

	mon.mu.Lock()
	mon.stats = s.client.Statistics()
	mon.mu.Unlock()

	fmt.Fprintln(mon.out, titleStyle.Render("PINCER - MONITOR"))
	fmt.Fprintln(mon.out, headerStyle.Render(fmt.Sprintf("Connection: %s | Press Ctrl+C to exit", s.info)))
	fmt.Fprintln(mon.out)

	if monitorInterval > 0 {
		payload := gripper.StateRequest(monitorInterval)
		if err := s.client.Send(pg.CmdGetState, payload); err != nil {
			return err
		}
		if rec != nil {
			rec.WriteFrame(capture.Sent, pg.Frame{Command: pg.CmdGetState, Payload: payload, Timestamp: time.Now()})
		}
	}

	ctx, stop := signalContext()
	defer stop()

	var tick <-chan time.Time
	if monitorStatsInterval > 0 {
		ticker := time.NewTicker(time.Duration(monitorStatsInterval) * time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}

	var loopErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-s.client.Done():
			loopErr = s.client.Err()
			break loop
		case <-tick:
			mon.printf("\n%s\n", s.client.Stats())
		}
	}

	if monitorInterval > 0 && loopErr == nil {
		// Interval 0 ends periodic reporting
		s.client.Send(pg.CmdGetState, gripper.StateRequest(0))
	}

	mon.printf("\n%s\n", s.client.Stats())
	if rec != nil {
		if err := rec.Err(); err != nil {
			return err
		}
		mon.printf("Recorded %d frames to %s\n", rec.Count(), monitorRecord)
	}
	return loopErr
}
