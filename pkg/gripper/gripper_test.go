// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gripper

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/pincer/pkg/pg"
)

// handler returns the frames a simulated device sends in reply to one request
type handler func(cmd pg.Command, payload []byte) [][]byte

// requestLog records the requests the simulated device received
type requestLog struct {
	mu     sync.Mutex
	frames []pg.Frame
}

func (l *requestLog) add(f pg.Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, f)
}

func (l *requestLog) first(cmd pg.Command) (pg.Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range l.frames {
		if f.Command == cmd {
			return f, true
		}
	}
	return pg.Frame{}, false
}

// newRig connects a controller to a simulated device over net.Pipe
func newRig(t *testing.T, cfg Config, h handler) (*Controller, *requestLog) {
	t.Helper()
	host, dev := net.Pipe()
	log := &requestLog{}

	go func() {
		defer dev.Close()
		dec := pg.NewDecoder()
		buf := make([]byte, 256)
		for {
			n, err := dev.Read(buf)
			if err != nil {
				return
			}
			dec.Write(buf[:n])
			for {
				f, err := dec.Next()
				if err != nil {
					break
				}
				log.add(f)
				if h == nil {
					continue
				}
				for _, reply := range h(f.Command, f.Payload) {
					if _, err := dev.Write(reply); err != nil {
						return
					}
				}
			}
		}
	}()

	c := pg.NewClient(host)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return New(c, cfg), log
}

func frame(cmd pg.Command, payload []byte) []byte {
	return pg.MustEncodeFrame(cmd, payload)
}

func stateFrame(pos float32, status pg.Status, code pg.ErrorCode) []byte {
	return frame(pg.CmdGetState, append(pg.PackFloats(pos, 0, 0), byte(status), byte(code)))
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.CommandTimeout != DefaultCommandTimeout || cfg.MotionTimeout != DefaultMotionTimeout {
		t.Errorf("defaults = %+v", cfg)
	}
	cfg = Config{CommandTimeout: time.Second}.withDefaults()
	if cfg.CommandTimeout != time.Second {
		t.Errorf("explicit timeout overwritten: %+v", cfg)
	}
}

func TestRequestBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"state", StateRequest(0), []byte{0, 0, 0, 0, 0x07}},
		{"state interval", StateRequest(1), []byte{0x00, 0x00, 0x80, 0x3F, 0x07}},
		{"move", MoveRequest(MoveParams{10, 50, 50, 1}), pg.PackFloats(10, 50, 50, 1)},
		{"grip", GripRequest(GripParams{Current: 2, MaxVelocity: 30}), pg.PackFloats(2, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !bytes.Equal(tt.got, tt.want) {
				t.Errorf("payload %X, want %X", tt.got, tt.want)
			}
		})
	}

	if p := DefaultMove(12); p.Velocity != DefaultVelocity || p.Current != DefaultCurrent {
		t.Errorf("DefaultMove = %+v", p)
	}
}

func TestController_GetState(t *testing.T) {
	g, log := newRig(t, Config{}, func(cmd pg.Command, payload []byte) [][]byte {
		if cmd == pg.CmdGetState {
			return [][]byte{stateFrame(12.5, pg.StatusReferenced|pg.StatusPositionReached, pg.ErrorNone)}
		}
		return nil
	})

	s, err := g.GetState(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.Position != 12.5 || !s.Status.Referenced() {
		t.Errorf("state = %+v", s)
	}

	req, ok := log.first(pg.CmdGetState)
	if !ok || !bytes.Equal(req.Payload, StateRequest(0)) {
		t.Errorf("GET_STATE payload %X", req.Payload)
	}
}

func TestController_Acknowledgements(t *testing.T) {
	g, log := newRig(t, Config{}, func(cmd pg.Command, payload []byte) [][]byte {
		switch cmd {
		case pg.CmdReference, pg.CmdStop, pg.CmdEmergencyStop:
			return [][]byte{frame(cmd, nil)}
		case pg.CmdGetConfig:
			return [][]byte{frame(cmd, []byte{0x01, 0x02})}
		}
		return nil
	})
	ctx := context.Background()

	if err := g.SetReference(ctx); err != nil {
		t.Errorf("SetReference: %v", err)
	}
	if err := g.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := g.EStop(ctx); err != nil {
		t.Errorf("EStop: %v", err)
	}

	cfg, err := g.GetConfig(ctx)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if !bytes.Equal(cfg.Raw(), []byte{0x01, 0x02}) {
		t.Errorf("config payload %X", cfg.Raw())
	}
	if req, ok := log.first(pg.CmdGetConfig); !ok || !bytes.Equal(req.Payload, []byte{pg.ConfigRequestAll}) {
		t.Errorf("GET_CONFIG payload %X", req.Payload)
	}
}

func TestController_MoveTo(t *testing.T) {
	tests := []struct {
		name       string
		event      pg.Command
		obstructed bool
	}{
		{"reached", pg.CmdPositionCompleted, false},
		{"obstructed", pg.CmdPositionObstructed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, log := newRig(t, Config{}, func(cmd pg.Command, payload []byte) [][]byte {
				if cmd != pg.CmdMovePosition {
					return nil
				}
				return [][]byte{
					frame(pg.CmdMovePosition, pg.PackFloats(0.4)),
					frame(tt.event, pg.PackFloats(33)),
				}
			})

			c, err := g.MoveTo(context.Background(), MoveParams{Position: 33, Velocity: 50, Acceleration: 50, Current: 1})
			if err != nil {
				t.Fatal(err)
			}
			if c.Position != 33 || c.Obstructed != tt.obstructed {
				t.Errorf("completion = %+v", c)
			}

			req, _ := log.first(pg.CmdMovePosition)
			if !bytes.Equal(req.Payload, pg.PackFloats(33, 50, 50, 1)) {
				t.Errorf("MOVE_POS payload %X", req.Payload)
			}
		})
	}
}

func TestController_MoveToDeviceError(t *testing.T) {
	g, _ := newRig(t, Config{}, func(cmd pg.Command, payload []byte) [][]byte {
		if cmd == pg.CmdMovePosition {
			return [][]byte{frame(pg.CmdCommandError, []byte{byte(pg.InfoNotReferenced)})}
		}
		return nil
	})

	_, err := g.MoveTo(context.Background(), DefaultMove(10))
	var de *pg.DeviceError
	if !errors.As(err, &de) || de.Code != pg.InfoNotReferenced {
		t.Errorf("expected NOT_REFERENCED device error, got %v", err)
	}
}

func TestController_Grip(t *testing.T) {
	g, log := newRig(t, Config{}, func(cmd pg.Command, payload []byte) [][]byte {
		if cmd == pg.CmdGrip {
			return [][]byte{frame(pg.CmdGrip, nil), frame(pg.CmdPositionObstructed, pg.PackFloats(18.5))}
		}
		return nil
	})

	c, err := g.Grip(context.Background(), GripParams{Current: 2, MaxVelocity: 30})
	if err != nil {
		t.Fatal(err)
	}
	if !c.Obstructed || c.Position != 18.5 {
		t.Errorf("completion = %+v", c)
	}
	if req, _ := log.first(pg.CmdGrip); !bytes.Equal(req.Payload, pg.PackFloats(2, 30)) {
		t.Errorf("MOVE_GRIP payload %X", req.Payload)
	}
}

func TestController_StartMoveAwait(t *testing.T) {
	release := make(chan struct{})
	g, _ := newRig(t, Config{}, func(cmd pg.Command, payload []byte) [][]byte {
		if cmd == pg.CmdMovePosition {
			<-release
			return [][]byte{frame(pg.CmdPositionCompleted, pg.PackFloats(5))}
		}
		return nil
	})

	m, err := g.StartMove(DefaultMove(5))
	if err != nil {
		t.Fatal(err)
	}
	close(release)

	c, err := g.Await(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if c.Position != 5 || c.Obstructed {
		t.Errorf("completion = %+v", c)
	}
}

func TestController_StartMoveHoldsMotionLock(t *testing.T) {
	release := make(chan struct{})
	g, log := newRig(t, Config{}, func(cmd pg.Command, payload []byte) [][]byte {
		switch cmd {
		case pg.CmdMovePosition:
			<-release
			return [][]byte{frame(pg.CmdPositionCompleted, pg.PackFloats(5))}
		case pg.CmdGrip:
			return [][]byte{frame(pg.CmdPositionObstructed, pg.PackFloats(3))}
		}
		return nil
	})

	m, err := g.StartMove(DefaultMove(5))
	if err != nil {
		t.Fatal(err)
	}

	type result struct {
		c   *Completion
		err error
	}
	gripped := make(chan result, 1)
	go func() {
		c, err := g.Grip(context.Background(), GripParams{Current: DefaultCurrent, MaxVelocity: DefaultVelocity})
		gripped <- result{c, err}
	}()

	select {
	case <-gripped:
		t.Fatal("Grip ran while a started move was pending")
	case <-time.After(50 * time.Millisecond):
	}
	if _, ok := log.first(pg.CmdGrip); ok {
		t.Fatal("grip sent while a started move was pending")
	}

	close(release)
	c, err := g.Await(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if c.Position != 5 || c.Obstructed {
		t.Errorf("move completion = %+v", c)
	}

	select {
	case r := <-gripped:
		if r.err != nil {
			t.Fatal(r.err)
		}
		if r.c.Position != 3 || !r.c.Obstructed {
			t.Errorf("grip completion = %+v", r.c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Grip did not run after Await")
	}
}

func TestMotion_CancelReleasesLock(t *testing.T) {
	var moves sync.Mutex
	count := 0
	g, _ := newRig(t, Config{}, func(cmd pg.Command, payload []byte) [][]byte {
		if cmd != pg.CmdMovePosition {
			return nil
		}
		moves.Lock()
		defer moves.Unlock()
		count++
		if count == 1 {
			return nil
		}
		return [][]byte{frame(pg.CmdPositionCompleted, pg.PackFloats(8))}
	})

	m, err := g.StartMove(DefaultMove(5))
	if err != nil {
		t.Fatal(err)
	}
	m.Cancel()
	m.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := g.MoveTo(ctx, DefaultMove(8))
	if err != nil {
		t.Fatal(err)
	}
	if c.Position != 8 {
		t.Errorf("completion = %+v", c)
	}
}

func TestController_SequentialGetState(t *testing.T) {
	var mu sync.Mutex
	positions := []float32{10.5, 20.25}
	calls := 0
	g, _ := newRig(t, Config{}, func(cmd pg.Command, payload []byte) [][]byte {
		if cmd != pg.CmdGetState {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		pos := positions[calls%len(positions)]
		calls++
		return [][]byte{stateFrame(pos, pg.StatusReferenced, pg.ErrorNone)}
	})

	for i, want := range positions {
		st, err := g.GetState(context.Background())
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if st.Position != want {
			t.Errorf("call %d: position = %v, want %v", i, st.Position, want)
		}
	}
}

func TestController_AcknowledgeError(t *testing.T) {
	tests := []struct {
		name    string
		reply   []byte
		wantErr error
	}{
		{"acknowledged", frame(pg.CmdAcknowledgeError, []byte("OK")), nil},
		{"rejected", frame(pg.CmdCommandError, []byte{byte(pg.ErrorEmergencyStop)}), ErrNotAcknowledged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newRig(t, Config{}, func(cmd pg.Command, payload []byte) [][]byte {
				if cmd == pg.CmdAcknowledgeError {
					return [][]byte{tt.reply}
				}
				return nil
			})

			err := g.AcknowledgeError(context.Background())
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			var de *pg.DeviceError
			if !errors.As(err, &de) || de.Code != pg.ErrorEmergencyStop {
				t.Errorf("rejection should carry the device code, got %v", err)
			}
		})
	}
}

func TestController_CommandTimeout(t *testing.T) {
	g, _ := newRig(t, Config{CommandTimeout: 50 * time.Millisecond}, nil)

	start := time.Now()
	_, err := g.GetState(context.Background())
	if !errors.Is(err, pg.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestCompletionOf_Unexpected(t *testing.T) {
	a, err := pg.DecodeAnswer(pg.CmdStop, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := CompletionOf(a); err == nil {
		t.Error("STOP is not a completion event")
	}
}
