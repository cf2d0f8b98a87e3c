// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNoExpectation is returned by Request and Begin when no reply code is given
var ErrNoExpectation = errors.New("pg: no expected reply code")

// Transport is a byte stream to one device. Read returning (0, nil) or a
// timeout error means no data yet; io.EOF or any other error ends the
// session.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// ReadTimeoutSetter is implemented by transports whose Read blocks for a
// configurable time
type ReadTimeoutSetter interface {
	SetReadTimeout(time.Duration) error
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// WithReadTimeout sets the per-read timeout applied to transports that
// support it
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) { c.readTimeout = d }
}

// WithFrameHook registers a hook called for every received frame
func WithFrameHook(h FrameHook) Option {
	return func(c *Client) { c.hooks = append(c.hooks, h) }
}

// WithEncoder replaces the default frame encoder
func WithEncoder(e *Encoder) Option {
	return func(c *Client) { c.encoder = e }
}

// Client owns one transport: a single receive goroutine publishes answers
// to the correlation table, and any goroutine may send requests.
type Client struct {
	transport   Transport
	encoder     *Encoder
	table       *Table
	stats       *Statistics
	log         logrus.FieldLogger
	readTimeout time.Duration
	hooks       []FrameHook

	writeMu sync.Mutex

	// lifeMu orders Start against Close so done is closed exactly once
	lifeMu    sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	stopping  atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewClient wraps t. Call Start before sending.
func NewClient(t Transport, opts ...Option) *Client {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		transport:   t,
		encoder:     NewEncoder(),
		table:       NewTable(),
		stats:       NewStatistics(),
		log:         discard,
		readTimeout: DefaultReadTimeout,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the receive goroutine. Calling it again has no effect.
// Start after Close returns ErrConnectionClosed.
func (c *Client) Start() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if c.stopping.Load() {
		return ErrConnectionClosed
	}
	if c.started {
		return nil
	}

	if s, ok := c.transport.(ReadTimeoutSetter); ok && c.readTimeout > 0 {
		if err := s.SetReadTimeout(c.readTimeout); err != nil {
			return fmt.Errorf("pg: set read timeout: %w", err)
		}
	}
	c.started = true

	r := &receiver{
		transport: c.transport,
		table:     c.table,
		stats:     c.stats,
		log:       c.log,
		hooks:     c.hooks,
	}

	go func() {
		defer close(c.done)
		err := receiveLoop(c.ctx, r)
		if !errors.Is(err, ErrConnectionClosed) {
			c.log.WithError(err).Error("receive loop stopped")
		}
		c.table.Close(err)
	}()

	c.log.Debug("receive loop started")
	return nil
}

// Send encodes and writes one request frame. Writes are serialized.
func (c *Client) Send(cmd Command, payload []byte) error {
	if c.stopping.Load() {
		return ErrConnectionClosed
	}
	if err := c.table.Err(); err != nil {
		return err
	}
	return c.write(cmd, payload)
}

func (c *Client) write(cmd Command, payload []byte) error {
	frame, err := c.encoder.Encode(cmd, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.transport.Write(frame); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrConnectionClosed, cmd, err)
	}
	c.stats.AddSent(len(frame))

	c.log.WithFields(logrus.Fields{
		"cmd": fmt.Sprintf("%s (0x%02X)", cmd, uint8(cmd)),
		"len": len(payload),
	}).Debug("sent request")
	return nil
}

// Begin takes a ticket for any of expect and then sends the request. The
// caller must Wait or Cancel the ticket.
func (c *Client) Begin(cmd Command, payload []byte, expect ...Command) (*Ticket, error) {
	if len(expect) == 0 {
		return nil, ErrNoExpectation
	}

	tk := c.table.Expect(expect...)
	if err := c.Send(cmd, payload); err != nil {
		tk.Cancel()
		return nil, err
	}
	return tk, nil
}

// Request sends cmd and waits for the first answer on any of expect.
// A CMD_ERROR received while waiting is returned as *DeviceError.
func (c *Client) Request(ctx context.Context, cmd Command, payload []byte, expect ...Command) (Answer, error) {
	tk, err := c.Begin(cmd, payload, expect...)
	if err != nil {
		return nil, err
	}
	return tk.Wait(ctx)
}

// Last returns the latest answer received for code, if any
func (c *Client) Last(code Command) (Answer, bool) {
	a, seq := c.table.Last(code)
	return a, seq > 0
}

// Stats returns a snapshot of the connection counters
func (c *Client) Stats() Snapshot {
	return c.stats.Snapshot()
}

// Statistics returns the live counters, for callers that add anomalies
func (c *Client) Statistics() *Statistics {
	return c.stats
}

// Done is closed when the receive loop has stopped
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, or nil while it is running
func (c *Client) Err() error {
	return c.table.Err()
}

// Close stops the device on a best-effort basis, closes the transport and
// waits for the receive loop to exit. Pending requests fail with
// ErrConnectionClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.lifeMu.Lock()
		c.stopping.Store(true)
		started := c.started
		c.lifeMu.Unlock()

		if c.table.Err() == nil {
			if err := c.write(CmdStop, nil); err != nil {
				c.log.WithError(err).Debug("stop on close failed")
			} else {
				time.Sleep(StopFlushDelay)
			}
		}

		c.cancel()
		c.closeErr = c.transport.Close()

		if started {
			select {
			case <-c.done:
			case <-time.After(LoopExitTimeout):
				c.log.Warn("receive loop did not exit in time")
			}
		} else {
			close(c.done)
		}

		c.table.Close(ErrConnectionClosed)
		c.log.Debug("connection closed")
	})
	return c.closeErr
}
