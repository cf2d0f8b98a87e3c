// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package gripper is a blocking controller for one PG-series gripper on
// top of a pg.Client. Every operation sends one request and waits for
// the reply its caller names explicitly.
package gripper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/pincer/pkg/pg"
)

// ErrNotAcknowledged is returned by AcknowledgeError when the device
// answers CMD_ACK with anything but an acknowledgement
var ErrNotAcknowledged = errors.New("gripper: error not acknowledged")

// Default per-operation timeouts
const (
	DefaultCommandTimeout = 2 * time.Second
	DefaultMotionTimeout  = 30 * time.Second
)

// Default motion parameters
const (
	DefaultVelocity     = 50.0
	DefaultAcceleration = 50.0
	DefaultCurrent      = 1.0
)

// Config holds the controller timeouts. A zero value field uses the default.
type Config struct {
	// CommandTimeout bounds replies that are immediate acknowledgements
	CommandTimeout time.Duration
	// MotionTimeout bounds waits for a motion completion event
	MotionTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.MotionTimeout <= 0 {
		c.MotionTimeout = DefaultMotionTimeout
	}
	return c
}

// MoveParams describes an absolute move. Units are mm, mm/s, mm/s² and A.
type MoveParams struct {
	Position     float32
	Velocity     float32
	Acceleration float32
	Current      float32
}

// DefaultMove returns MoveParams for pos with the default profile
func DefaultMove(pos float32) MoveParams {
	return MoveParams{
		Position:     pos,
		Velocity:     DefaultVelocity,
		Acceleration: DefaultAcceleration,
		Current:      DefaultCurrent,
	}
}

// GripParams describes a grip: close with at most MaxVelocity until the
// motor current reaches Current
type GripParams struct {
	Current     float32
	MaxVelocity float32
}

// Completion is the outcome of a motion
type Completion struct {
	Position   float32
	Obstructed bool
}

// Controller issues gripper operations over a started pg.Client. Motion
// commands are serialized because their completion events share codes.
type Controller struct {
	client *pg.Client
	cfg    Config
	motion sync.Mutex
}

// New creates a controller; the caller owns c and must Start and Close it
func New(c *pg.Client, cfg Config) *Controller {
	return &Controller{client: c, cfg: cfg.withDefaults()}
}

// Config returns the effective timeouts
func (g *Controller) Config() Config {
	return g.cfg
}

func (g *Controller) request(ctx context.Context, timeout time.Duration, cmd pg.Command, payload []byte, expect ...pg.Command) (pg.Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return g.client.Request(ctx, cmd, payload, expect...)
}

// GetState requests a full state report
func (g *Controller) GetState(ctx context.Context) (*pg.StateReport, error) {
	a, err := g.request(ctx, g.cfg.CommandTimeout, pg.CmdGetState, StateRequest(0), pg.CmdGetState)
	if err != nil {
		return nil, err
	}
	return expectType[*pg.StateReport](a)
}

// GetConfig requests every configuration parameter
func (g *Controller) GetConfig(ctx context.Context) (*pg.ConfigData, error) {
	a, err := g.request(ctx, g.cfg.CommandTimeout, pg.CmdGetConfig, []byte{pg.ConfigRequestAll}, pg.CmdGetConfig)
	if err != nil {
		return nil, err
	}
	return expectType[*pg.ConfigData](a)
}

// SetReference starts a reference run. The device acknowledges at once;
// poll GetState for the Referenced bit.
func (g *Controller) SetReference(ctx context.Context) error {
	_, err := g.request(ctx, g.cfg.CommandTimeout, pg.CmdReference, nil, pg.CmdReference)
	return err
}

// Stop halts any motion
func (g *Controller) Stop(ctx context.Context) error {
	_, err := g.request(ctx, g.cfg.CommandTimeout, pg.CmdStop, nil, pg.CmdStop)
	return err
}

// EStop triggers an emergency stop. The device stays faulted until
// AcknowledgeError succeeds.
func (g *Controller) EStop(ctx context.Context) error {
	_, err := g.request(ctx, g.cfg.CommandTimeout, pg.CmdEmergencyStop, nil, pg.CmdEmergencyStop)
	return err
}

// AcknowledgeError clears a latched device error
func (g *Controller) AcknowledgeError(ctx context.Context) error {
	a, err := g.request(ctx, g.cfg.CommandTimeout, pg.CmdAcknowledgeError, nil,
		pg.CmdAcknowledgeError, pg.CmdCommandError)
	if err != nil {
		return err
	}
	switch a := a.(type) {
	case *pg.CommandErrorAck:
		return nil
	case *pg.CommandError:
		return fmt.Errorf("%w: %w", ErrNotAcknowledged, &pg.DeviceError{Code: a.Code})
	default:
		return fmt.Errorf("%w: got %s", ErrNotAcknowledged, a.Command())
	}
}

// MoveTo moves to an absolute position and blocks until the device
// reports the position reached or obstructed
func (g *Controller) MoveTo(ctx context.Context, p MoveParams) (*Completion, error) {
	g.motion.Lock()
	defer g.motion.Unlock()

	tk, err := g.client.Begin(pg.CmdMovePosition, MoveRequest(p), pg.CmdPositionCompleted, pg.CmdPositionObstructed)
	if err != nil {
		return nil, err
	}
	return g.awaitCompletion(ctx, tk)
}

// Motion is a move started by StartMove. It holds the controller's motion
// lock until Await returns or Cancel is called.
type Motion struct {
	ticket  *pg.Ticket
	release sync.Once
	unlock  func()
}

func (m *Motion) done() {
	m.release.Do(m.unlock)
}

// Cancel abandons the motion without waiting for its completion event.
// The device keeps moving; send Stop to halt it.
func (m *Motion) Cancel() {
	m.ticket.Cancel()
	m.done()
}

// StartMove sends the move and returns without waiting. Other motion
// commands block until the returned Motion is passed to Await or canceled.
func (g *Controller) StartMove(p MoveParams) (*Motion, error) {
	g.motion.Lock()
	tk, err := g.client.Begin(pg.CmdMovePosition, MoveRequest(p), pg.CmdPositionCompleted, pg.CmdPositionObstructed)
	if err != nil {
		g.motion.Unlock()
		return nil, err
	}
	return &Motion{ticket: tk, unlock: g.motion.Unlock}, nil
}

// Grip closes on a part and blocks until the motion ends. A grip on a part
// normally ends obstructed.
func (g *Controller) Grip(ctx context.Context, p GripParams) (*Completion, error) {
	g.motion.Lock()
	defer g.motion.Unlock()

	tk, err := g.client.Begin(pg.CmdGrip, GripRequest(p), pg.CmdPositionObstructed, pg.CmdPositionCompleted)
	if err != nil {
		return nil, err
	}
	return g.awaitCompletion(ctx, tk)
}

// Await waits for a motion from StartMove with the motion timeout and
// releases the motion lock
func (g *Controller) Await(ctx context.Context, m *Motion) (*Completion, error) {
	defer m.done()
	return g.awaitCompletion(ctx, m.ticket)
}

func (g *Controller) awaitCompletion(ctx context.Context, tk *pg.Ticket) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.MotionTimeout)
	defer cancel()

	a, err := tk.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return CompletionOf(a)
}

// CompletionOf converts a completion event to a Completion
func CompletionOf(a pg.Answer) (*Completion, error) {
	switch a := a.(type) {
	case *pg.PositionCompleted:
		return &Completion{Position: a.Position}, nil
	case *pg.PositionObstructed:
		return &Completion{Position: a.Position, Obstructed: true}, nil
	default:
		return nil, fmt.Errorf("gripper: unexpected answer %s (0x%02X)", a.Command(), uint8(a.Command()))
	}
}

func expectType[T pg.Answer](a pg.Answer) (T, error) {
	t, ok := a.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("gripper: unexpected answer %T for %s", a, a.Command())
	}
	return t, nil
}
