// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pg

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeDevice is an in-memory gripper. Frames written by the client are
// decoded and passed to respond; the returned frames are queued for the
// client to read. Read returns (0, nil) after a short idle period like a
// serial port with a read timeout.
type fakeDevice struct {
	respond func(cmd Command, payload []byte) [][]byte

	mu      sync.Mutex
	dec     *Decoder
	pending []byte

	rx        chan []byte
	sent      chan Frame
	closed    chan struct{}
	closeOnce sync.Once
	timeout   atomic.Int64
}

func newFakeDevice(respond func(cmd Command, payload []byte) [][]byte) *fakeDevice {
	return &fakeDevice{
		respond: respond,
		dec:     NewDecoder(),
		rx:      make(chan []byte, 64),
		sent:    make(chan Frame, 64),
		closed:  make(chan struct{}),
	}
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	if len(d.pending) == 0 {
		select {
		case b := <-d.rx:
			d.pending = b
		case <-d.closed:
			return 0, io.EOF
		case <-time.After(10 * time.Millisecond):
			return 0, nil
		}
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	select {
	case <-d.closed:
		return 0, io.ErrClosedPipe
	default:
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.dec.Write(p)
	for {
		f, err := d.dec.Next()
		if err != nil {
			break
		}
		select {
		case d.sent <- f:
		default:
		}
		if d.respond != nil {
			for _, reply := range d.respond(f.Command, f.Payload) {
				d.rx <- reply
			}
		}
	}
	return len(p), nil
}

func (d *fakeDevice) Close() error {
	d.closeOnce.Do(func() { close(d.closed) })
	return nil
}

func (d *fakeDevice) SetReadTimeout(t time.Duration) error {
	d.timeout.Store(int64(t))
	return nil
}

// inject queues raw bytes as if the device sent them unsolicited
func (d *fakeDevice) inject(b []byte) {
	d.rx <- b
}

func startClient(t *testing.T, dev *fakeDevice, opts ...Option) *Client {
	t.Helper()
	c := NewClient(dev, opts...)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_RequestState(t *testing.T) {
	dev := newFakeDevice(func(cmd Command, payload []byte) [][]byte {
		if cmd == CmdGetState {
			return [][]byte{MustEncodeFrame(CmdGetState, statePayload(12.5, 0, 0.25, 0x81, ErrorNone))}
		}
		return nil
	})
	c := startClient(t, dev, WithReadTimeout(20*time.Millisecond))

	if got := time.Duration(dev.timeout.Load()); got != 20*time.Millisecond {
		t.Errorf("read timeout = %v", got)
	}

	a, err := c.Request(shortCtx(t, time.Second), CmdGetState, append(PackFloats(0), StateModeAll), CmdGetState)
	if err != nil {
		t.Fatal(err)
	}
	s, ok := a.(*StateReport)
	if !ok {
		t.Fatalf("got %T", a)
	}
	if s.Position != 12.5 || !s.Status.Referenced() {
		t.Errorf("state = %+v", s)
	}

	if last, ok := c.Last(CmdGetState); !ok || last != a {
		t.Error("Last() should return the same answer")
	}

	stats := c.Stats()
	if stats.FramesSent != 1 || stats.ValidAnswers != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestClient_DeviceError(t *testing.T) {
	dev := newFakeDevice(func(cmd Command, payload []byte) [][]byte {
		if cmd == CmdMovePosition {
			return [][]byte{MustEncodeFrame(CmdCommandError, []byte{byte(InfoNotReferenced)})}
		}
		return nil
	})
	c := startClient(t, dev)

	_, err := c.Request(shortCtx(t, time.Second), CmdMovePosition, PackFloats(10, 50), CmdPositionCompleted, CmdPositionObstructed)
	if !errors.Is(err, ErrDeviceReported) {
		t.Fatalf("expected device error, got %v", err)
	}
	var de *DeviceError
	if !errors.As(err, &de) || de.Code != InfoNotReferenced {
		t.Errorf("got %v", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	c := startClient(t, newFakeDevice(nil))

	_, err := c.Request(shortCtx(t, 50*time.Millisecond), CmdGetState, nil, CmdGetState)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestClient_NoExpectation(t *testing.T) {
	c := startClient(t, newFakeDevice(nil))
	if _, err := c.Begin(CmdStop, nil); !errors.Is(err, ErrNoExpectation) {
		t.Errorf("expected ErrNoExpectation, got %v", err)
	}
}

func TestClient_PayloadTooLarge(t *testing.T) {
	c := startClient(t, newFakeDevice(nil))
	if err := c.Send(CmdGetConfig, make([]byte, MaxPayloadSize+1)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestClient_ResyncAfterGarbage(t *testing.T) {
	c := startClient(t, newFakeDevice(nil))
	dev := c.transport.(*fakeDevice)

	tk := c.table.Expect(CmdPositionCompleted)
	garbage := []byte{0x00, 0xFF, 0x05, 0x00, 0x0C, 0x05, 0x0C, 0x03, 0x12}
	dev.inject(append(garbage, MustEncodeFrame(CmdPositionCompleted, PackFloats(42))...))

	a, err := tk.Wait(shortCtx(t, time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if a.(*PositionCompleted).Position != 42 {
		t.Errorf("got %#v", a)
	}
	if s := c.Stats(); s.ResyncBytes != uint64(len(garbage)) {
		t.Errorf("ResyncBytes = %d, want %d", s.ResyncBytes, len(garbage))
	}
}

func TestClient_DecodeErrorDoesNotPublish(t *testing.T) {
	var hooked atomic.Int32
	c := startClient(t, newFakeDevice(nil), WithFrameHook(func(f Frame, a Answer, err error) {
		hooked.Add(1)
	}))
	dev := c.transport.(*fakeDevice)

	tk := c.table.Expect(CmdGetState)
	dev.inject(MustEncodeFrame(CmdGetState, make([]byte, 13)))
	dev.inject(MustEncodeFrame(CmdGetState, statePayload(3, 0, 0, 0, ErrorNone)))

	a, err := tk.Wait(shortCtx(t, time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if a.(*StateReport).Position != 3 {
		t.Errorf("the malformed report should have been dropped, got %#v", a)
	}
	if n := hooked.Load(); n != 2 {
		t.Errorf("hook called %d times, want 2", n)
	}
	if s := c.Stats(); s.DecodeErrors != 1 {
		t.Errorf("DecodeErrors = %d", s.DecodeErrors)
	}
}

func TestClient_CloseSendsStopAndUnblocks(t *testing.T) {
	dev := newFakeDevice(nil)
	c := NewClient(dev)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	tk, err := c.Begin(CmdGrip, PackFloats(1, 10), CmdPositionCompleted)
	if err != nil {
		t.Fatal(err)
	}
	<-dev.sent // MOVE_GRIP

	waitErr := make(chan error, 1)
	go func() {
		_, err := tk.Wait(context.Background())
		waitErr <- err
	}()

	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	select {
	case f := <-dev.sent:
		if f.Command != CmdStop {
			t.Errorf("expected STOP on close, got %s", f.Command)
		}
	default:
		t.Error("no STOP frame sent on close")
	}

	select {
	case err := <-waitErr:
		if !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("expected ErrConnectionClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not released by Close")
	}

	select {
	case <-c.Done():
	default:
		t.Error("Done() not closed after Close")
	}

	if err := c.Send(CmdGetState, nil); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Send after Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestClient_TransportLost(t *testing.T) {
	dev := newFakeDevice(nil)
	c := startClient(t, dev)

	tk, err := c.Begin(CmdGetState, nil, CmdGetState)
	if err != nil {
		t.Fatal(err)
	}
	dev.Close()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("receive loop did not stop on EOF")
	}

	if _, err := tk.Wait(context.Background()); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("expected ErrConnectionClosed, got %v", err)
	}
	if !errors.Is(c.Err(), ErrConnectionClosed) {
		t.Errorf("Err() = %v", c.Err())
	}
}

func TestClient_CloseWithoutStart(t *testing.T) {
	c := NewClient(newFakeDevice(nil))
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-c.Done():
	default:
		t.Error("Done() should be closed")
	}
}

func TestClient_StartAfterClose(t *testing.T) {
	c := NewClient(newFakeDevice(nil))
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Start after Close = %v, want ErrConnectionClosed", err)
	}
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() should stay closed")
	}
}

func TestClient_StartCloseRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		c := NewClient(newFakeDevice(nil))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Start()
		}()
		go func() {
			defer wg.Done()
			c.Close()
		}()
		wg.Wait()

		select {
		case <-c.Done():
		case <-time.After(2 * time.Second):
			t.Fatalf("iteration %d: receive loop did not stop", i)
		}
	}
}

func TestClient_ConcurrentRequests(t *testing.T) {
	dev := newFakeDevice(func(cmd Command, payload []byte) [][]byte {
		switch cmd {
		case CmdGetState:
			return [][]byte{MustEncodeFrame(CmdGetState, statePayload(1, 0, 0, StatusReferenced, ErrorNone))}
		case CmdGetConfig:
			return [][]byte{MustEncodeFrame(CmdGetConfig, []byte{0xAA, 0xBB})}
		}
		return nil
	})
	c := startClient(t, dev)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := c.Request(context.Background(), CmdGetState, nil, CmdGetState)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := c.Request(context.Background(), CmdGetConfig, []byte{ConfigRequestAll}, CmdGetConfig)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}
