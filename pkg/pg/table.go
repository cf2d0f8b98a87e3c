// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// slot holds the latest answer published for one command code. seq only
// grows; order is the table-wide publish counter at the time of the last
// publish.
type slot struct {
	mu      sync.Mutex
	seq     uint64
	order   uint64
	last    Answer
	waiters map[*Ticket]struct{}
}

// Table correlates answers published by the receive loop with callers
// waiting for them. Slots are indexed by command byte and locked
// independently.
type Table struct {
	slots [256]slot
	order atomic.Uint64

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// NewTable creates an empty correlation table
func NewTable() *Table {
	return &Table{closed: make(chan struct{})}
}

// Publish stores a as the latest answer for its command and wakes every
// ticket waiting on that command.
func (t *Table) Publish(a Answer) {
	s := &t.slots[a.Command()]
	order := t.order.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.order = order
	s.last = a
	for w := range s.waiters {
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}

// Last returns the latest answer published for code and its sequence
// number. The sequence is 0 if nothing was published yet.
func (t *Table) Last(code Command) (Answer, uint64) {
	s := &t.slots[code]
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.seq
}

// Close wakes every current and future waiter with ErrConnectionClosed.
// cause, if not nil, is included in the returned error.
func (t *Table) Close(cause error) {
	t.closeOnce.Do(func() {
		if cause == nil {
			t.closeErr = ErrConnectionClosed
		} else if errors.Is(cause, ErrConnectionClosed) {
			t.closeErr = cause
		} else {
			t.closeErr = fmt.Errorf("%w: %v", ErrConnectionClosed, cause)
		}
		close(t.closed)
	})
}

// Closed returns a channel closed once Close has been called
func (t *Table) Closed() <-chan struct{} {
	return t.closed
}

// Err returns the close error, or nil while the table is open
func (t *Table) Err() error {
	select {
	case <-t.closed:
		return t.closeErr
	default:
		return nil
	}
}

// Expect takes a ticket for the next answer on any of codes. Take the
// ticket before sending the request: answers published after this call
// are never missed, even if they arrive before Wait is called.
//
// Unless the ticket waits on CMD_ERROR or CMD_ACK itself, a CMD_ERROR
// published after Expect makes Wait return a *DeviceError.
func (t *Table) Expect(codes ...Command) *Ticket {
	tk := &Ticket{
		table:  t,
		codes:  append([]Command(nil), codes...),
		seqs:   make([]uint64, len(codes)),
		notify: make(chan struct{}, 1),
	}

	tk.watchErrors = true
	for _, c := range codes {
		if c == CmdCommandError || c == CmdAcknowledgeError {
			tk.watchErrors = false
		}
	}

	for i, c := range tk.codes {
		tk.seqs[i] = t.register(c, tk)
	}
	if tk.watchErrors {
		tk.errSeq = t.register(CmdCommandError, tk)
	}
	return tk
}

// WaitFor blocks until an answer for code is published after the call,
// ctx is done, or the table is closed.
func (t *Table) WaitFor(ctx context.Context, code Command) (Answer, error) {
	return t.Expect(code).Wait(ctx)
}

func (t *Table) register(code Command, tk *Ticket) uint64 {
	s := &t.slots[code]
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiters == nil {
		s.waiters = make(map[*Ticket]struct{})
	}
	s.waiters[tk] = struct{}{}
	return s.seq
}

func (t *Table) unregister(code Command, tk *Ticket) {
	s := &t.slots[code]
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiters, tk)
}

// peek returns the latest answer for code if it was published after seq
func (t *Table) peek(code Command, seq uint64) (Answer, uint64, bool) {
	s := &t.slots[code]
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq > seq {
		return s.last, s.order, true
	}
	return nil, 0, false
}

// Ticket is a pending wait for one reply. Call Wait or Cancel exactly once.
type Ticket struct {
	table       *Table
	codes       []Command
	seqs        []uint64
	watchErrors bool
	errSeq      uint64
	notify      chan struct{}
	cancelOnce  sync.Once
}

// Codes returns the commands the ticket waits on
func (tk *Ticket) Codes() []Command {
	return tk.codes
}

// Wait blocks until a matching answer is published, ctx is done, or the
// connection closes. A ctx deadline is reported as ErrTimeout.
func (tk *Ticket) Wait(ctx context.Context) (Answer, error) {
	defer tk.Cancel()

	for {
		if a, ok, err := tk.poll(); ok {
			return a, err
		}

		select {
		case <-tk.notify:
		case <-tk.table.closed:
			if a, ok, err := tk.poll(); ok {
				return a, err
			}
			return nil, tk.table.closeErr
		case <-ctx.Done():
			if a, ok, err := tk.poll(); ok {
				return a, err
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", ErrTimeout, tk.describe())
			}
			return nil, ctx.Err()
		}
	}
}

// Cancel releases the ticket without waiting
func (tk *Ticket) Cancel() {
	tk.cancelOnce.Do(func() {
		for _, c := range tk.codes {
			tk.table.unregister(c, tk)
		}
		if tk.watchErrors {
			tk.table.unregister(CmdCommandError, tk)
		}
	})
}

// poll picks the earliest-published candidate among the expected codes and
// CMD_ERROR.
func (tk *Ticket) poll() (Answer, bool, error) {
	var (
		best      Answer
		bestOrder uint64
	)
	for i, c := range tk.codes {
		if a, order, ok := tk.table.peek(c, tk.seqs[i]); ok {
			if best == nil || order < bestOrder {
				best, bestOrder = a, order
			}
		}
	}

	if tk.watchErrors {
		if a, order, ok := tk.table.peek(CmdCommandError, tk.errSeq); ok {
			if best == nil || order < bestOrder {
				if ce, isErr := a.(*CommandError); isErr {
					return nil, true, &DeviceError{Code: ce.Code}
				}
			}
		}
	}

	if best == nil {
		return nil, false, nil
	}
	return best, true, nil
}

func (tk *Ticket) describe() string {
	names := make([]string, len(tk.codes))
	for i, c := range tk.codes {
		names[i] = fmt.Sprintf("%s (0x%02X)", c, uint8(c))
	}
	return strings.Join(names, " or ")
}
