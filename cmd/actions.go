// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/pincer/pkg/gripper"
	"github.com/Thermoquad/pincer/pkg/pg"
)

// action runs one gripper operation and prints the outcome to out
type action func(ctx context.Context, g *gripper.Controller, out io.Writer) error

var (
	moveVelocity     float32
	moveAcceleration float32
	moveCurrent      float32
	gripCurrent      float32
	gripVelocity     float32
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Read position, velocity, current and status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, printState)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read the module configuration block",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, printConfig)
	},
}

var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Run the homing sequence",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, doReference)
	},
}

var moveCmd = &cobra.Command{
	Use:   "move POSITION",
	Short: "Move the jaws to an absolute position in mm and wait for completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := parseFloat("position", args[0])
		if err != nil {
			return err
		}
		p := gripper.MoveParams{
			Position:     pos,
			Velocity:     moveVelocity,
			Acceleration: moveAcceleration,
			Current:      moveCurrent,
		}
		return runAction(cmd, doMove(p))
	},
}

var gripCmd = &cobra.Command{
	Use:   "grip",
	Short: "Close the jaws until the current limit is reached",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, doGrip(gripper.GripParams{Current: gripCurrent, MaxVelocity: gripVelocity}))
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the current motion",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, doStop)
	},
}

var estopCmd = &cobra.Command{
	Use:   "estop",
	Short: "Emergency stop",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, doEStop)
	},
}

var ackCmd = &cobra.Command{
	Use:   "ack",
	Short: "Acknowledge a pending device error",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, doAck)
	},
}

func init() {
	moveCmd.Flags().Float32Var(&moveVelocity, "velocity", gripper.DefaultVelocity, "Velocity in mm/s")
	moveCmd.Flags().Float32Var(&moveAcceleration, "accel", gripper.DefaultAcceleration, "Acceleration in mm/s²")
	moveCmd.Flags().Float32Var(&moveCurrent, "current", gripper.DefaultCurrent, "Current limit in A")

	gripCmd.Flags().Float32Var(&gripCurrent, "current", gripper.DefaultCurrent, "Grip current in A")
	gripCmd.Flags().Float32Var(&gripVelocity, "velocity", gripper.DefaultVelocity, "Maximum closing velocity in mm/s")

	rootCmd.AddCommand(stateCmd, configCmd, referenceCmd, moveCmd, gripCmd, stopCmd, estopCmd, ackCmd)
}

// runAction opens a session, runs a and closes the session. Interrupting a
// motion cancels the wait; Close then stops the gripper.
func runAction(cmd *cobra.Command, a action) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signalContext()
	defer stop()

	return a(ctx, s.ctrl, cmd.OutOrStdout())
}

func printState(ctx context.Context, g *gripper.Controller, out io.Writer) error {
	st, err := g.GetState(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(out, formatState(st))
	return nil
}

func formatState(st *pg.StateReport) string {
	errText := valueStyle.Render(fmt.Sprintf("%s (0x%02X)", st.ErrorCode, uint8(st.ErrorCode)))
	if st.Status.Error() {
		errText = errorStyle.Render(fmt.Sprintf("%s (0x%02X)", st.ErrorCode, uint8(st.ErrorCode)))
	}

	result := fmt.Sprintf("%s %s\n", labelStyle.Render("Position:"), valueStyle.Render(fmt.Sprintf("%.3f mm", st.Position)))
	result += fmt.Sprintf("%s %s\n", labelStyle.Render("Velocity:"), valueStyle.Render(fmt.Sprintf("%.3f mm/s", st.Velocity)))
	result += fmt.Sprintf("%s %s\n", labelStyle.Render("Current: "), valueStyle.Render(fmt.Sprintf("%.3f A", st.Current)))
	result += fmt.Sprintf("%s %s\n", labelStyle.Render("Status:  "), valueStyle.Render(st.Status.String()))
	result += fmt.Sprintf("%s %s\n", labelStyle.Render("Error:   "), errText)
	return result
}

func printConfig(ctx context.Context, g *gripper.Controller, out io.Writer) error {
	cfg, err := g.GetConfig(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %d bytes\n", labelStyle.Render("Config:"), len(cfg.Raw()))
	fmt.Fprintf(out, "  %s\n", pg.FormatHex(cfg.Raw()))
	return nil
}

func doReference(ctx context.Context, g *gripper.Controller, out io.Writer) error {
	if err := g.SetReference(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, valueStyle.Render("Reference acknowledged"))
	return nil
}

func doStop(ctx context.Context, g *gripper.Controller, out io.Writer) error {
	if err := g.Stop(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, valueStyle.Render("Stopped"))
	return nil
}

func doEStop(ctx context.Context, g *gripper.Controller, out io.Writer) error {
	if err := g.EStop(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, warningStyle.Render("Emergency stop acknowledged"))
	return nil
}

func doAck(ctx context.Context, g *gripper.Controller, out io.Writer) error {
	if err := g.AcknowledgeError(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, valueStyle.Render("Error acknowledged"))
	return nil
}

func doMove(p gripper.MoveParams) action {
	return func(ctx context.Context, g *gripper.Controller, out io.Writer) error {
		c, err := g.MoveTo(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, formatCompletion(c))
		return nil
	}
}

func doGrip(p gripper.GripParams) action {
	return func(ctx context.Context, g *gripper.Controller, out io.Writer) error {
		c, err := g.Grip(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, formatCompletion(c))
		return nil
	}
}

func formatCompletion(c *gripper.Completion) string {
	if c.Obstructed {
		return warningStyle.Render(fmt.Sprintf("Obstructed at %.3f mm", c.Position))
	}
	return valueStyle.Render(fmt.Sprintf("Reached %.3f mm", c.Position))
}

func parseFloat(name, s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return float32(v), nil
}
