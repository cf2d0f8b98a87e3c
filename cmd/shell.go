// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/pincer/pkg/gripper"
)

const historyFile = ".pincer_history"

var errQuit = errors.New("quit")

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive gripper shell",
	Long: `Open the link once and issue commands interactively.

Type "help" for the command list. Ctrl+C cancels the current line or a
running motion; Ctrl+D or "quit" exits. History is kept in ~/.pincer_history.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

// shellCommand builds an action from the words after the command name
type shellCommand struct {
	Name        string
	Usage       string
	Description string
	MinArgs     int
	MaxArgs     int
	Build       func(args []string) (action, error)
}

func fixed(a action) func([]string) (action, error) {
	return func([]string) (action, error) { return a, nil }
}

var shellCommands = []shellCommand{
	{"state", "state", "Read position, velocity, current and status", 0, 0, fixed(printState)},
	{"config", "config", "Read the module configuration block", 0, 0, fixed(printConfig)},
	{"reference", "reference", "Run the homing sequence", 0, 0, fixed(doReference)},
	{"move", "move POS [VEL [ACC [CUR]]]", "Move to POS mm and wait for completion", 1, 4, buildMove},
	{"grip", "grip [CUR [VEL]]", "Close until the current limit is reached", 0, 2, buildGrip},
	{"stop", "stop", "Stop the current motion", 0, 0, fixed(doStop)},
	{"estop", "estop", "Emergency stop", 0, 0, fixed(doEStop)},
	{"ack", "ack", "Acknowledge a pending device error", 0, 0, fixed(doAck)},
}

func lookupShellCommand(name string) (shellCommand, bool) {
	for _, c := range shellCommands {
		if c.Name == name {
			return c, true
		}
	}
	return shellCommand{}, false
}

func buildMove(args []string) (action, error) {
	vals, err := parseFloats([]string{"position", "velocity", "acceleration", "current"}, args)
	if err != nil {
		return nil, err
	}
	p := gripper.DefaultMove(vals[0])
	if len(vals) > 1 {
		p.Velocity = vals[1]
	}
	if len(vals) > 2 {
		p.Acceleration = vals[2]
	}
	if len(vals) > 3 {
		p.Current = vals[3]
	}
	return doMove(p), nil
}

func buildGrip(args []string) (action, error) {
	vals, err := parseFloats([]string{"current", "velocity"}, args)
	if err != nil {
		return nil, err
	}
	p := gripper.GripParams{Current: gripper.DefaultCurrent, MaxVelocity: gripper.DefaultVelocity}
	if len(vals) > 0 {
		p.Current = vals[0]
	}
	if len(vals) > 1 {
		p.MaxVelocity = vals[1]
	}
	return doGrip(p), nil
}

func parseFloats(names, args []string) ([]float32, error) {
	vals := make([]float32, len(args))
	for i, s := range args {
		v, err := parseFloat(names[i], s)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// parseShellLine resolves one input line. Builtins return a nil action.
func parseShellLine(line string) (action, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, nil
	}

	name := strings.ToLower(tokens[0])
	switch name {
	case "quit", "exit":
		return nil, errQuit
	}

	c, ok := lookupShellCommand(name)
	if !ok {
		return nil, fmt.Errorf("unknown command %q (try \"help\")", tokens[0])
	}
	args := tokens[1:]
	if len(args) < c.MinArgs || len(args) > c.MaxArgs {
		return nil, fmt.Errorf("usage: %s", c.Usage)
	}
	return c.Build(args)
}

func printShellHelp(out io.Writer) {
	for _, c := range shellCommands {
		fmt.Fprintf(out, "  %-28s %s\n", c.Usage, c.Description)
	}
	fmt.Fprintf(out, "  %-28s %s\n", "stats", "Show link statistics")
	fmt.Fprintf(out, "  %-28s %s\n", "quit", "Exit the shell")
}

func completeShell(line string) (c []string) {
	prefix := strings.ToLower(line)
	for _, cmd := range shellCommands {
		if strings.HasPrefix(cmd.Name, prefix) {
			c = append(c, cmd.Name)
		}
	}
	for _, builtin := range []string{"help", "stats", "quit"} {
		if strings.HasPrefix(builtin, prefix) {
			c = append(c, builtin)
		}
	}
	return
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return historyFile
	}
	return filepath.Join(home, historyFile)
}

func runShell(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()

	shell := liner.NewLiner()
	defer shell.Close()

	shell.SetCtrlCAborts(true)
	shell.SetCompleter(completeShell)

	if f, err := os.Open(historyPath()); err == nil {
		shell.ReadHistory(f)
		f.Close()
	}

	fmt.Fprintf(out, "Connected: %s\n", s.info)
	fmt.Fprintln(out, "Interactive mode, type \"help\" for commands, Ctrl-D to quit.")

	for {
		input, err := shell.Prompt("pincer> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			fmt.Fprintln(out)
			break
		}
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		shell.AppendHistory(input)

		switch strings.ToLower(input) {
		case "help":
			printShellHelp(out)
			continue
		case "stats":
			fmt.Fprintln(out, s.client.Stats())
			continue
		}

		a, err := parseShellLine(input)
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(err.Error()))
			continue
		}

		ctx, stop := signalContext()
		err = a(ctx, s.ctrl, out)
		stop()
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("error: "+err.Error()))
		}

		select {
		case <-s.client.Done():
			return s.client.Err()
		default:
		}
	}

	if f, err := os.Create(historyPath()); err == nil {
		shell.WriteHistory(f)
		f.Close()
	}
	return nil
}
