// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// FrameHook observes every checksum-valid frame taken off the wire, with
// the decoded answer or the decode error. Hooks run on the receive
// goroutine and must not block.
type FrameHook func(f Frame, a Answer, err error)

// receiver is everything the receive loop needs; it owns none of it
// except the decoder it creates.
type receiver struct {
	transport io.Reader
	table     *Table
	stats     *Statistics
	log       logrus.FieldLogger
	hooks     []FrameHook

	discarded uint64
}

// receiveLoop reads the transport until ctx is cancelled or the transport
// fails. Timeouts are not fatal. The returned error is the reason the loop
// stopped.
func receiveLoop(ctx context.Context, r *receiver) error {
	decoder := NewDecoder()
	buf := make([]byte, ChunkSize)

	for {
		select {
		case <-ctx.Done():
			return ErrConnectionClosed
		default:
		}

		n, err := r.transport.Read(buf)
		if n > 0 {
			r.stats.AddRead(n)
			decoder.Write(buf[:n])
			r.drain(decoder)
		}

		if err != nil {
			if isTimeout(err) {
				continue
			}
			if ctx.Err() != nil {
				return ErrConnectionClosed
			}
			return fmt.Errorf("pg: read: %w", err)
		}
	}
}

// drain publishes every complete frame in the decoder buffer
func (r *receiver) drain(decoder *Decoder) {
	for {
		frame, err := decoder.Next()
		r.noteResync(decoder)
		if err != nil {
			return
		}

		answer, err := DecodeFrame(frame)
		r.stats.Update(answer, err)
		for _, hook := range r.hooks {
			hook(frame, answer, err)
		}

		log := r.log.WithFields(logrus.Fields{
			"cmd": fmt.Sprintf("%s (0x%02X)", frame.Command, uint8(frame.Command)),
			"len": len(frame.Payload),
		})
		if err != nil {
			log.WithError(err).Warn("dropping undecodable frame")
			continue
		}

		switch a := answer.(type) {
		case *RawAnswer:
			log.Warn("command not supported yet")
		case *CommandError:
			log.WithField("code", fmt.Sprintf("0x%02X %s", uint8(a.Code), a.Code)).Warn("device reported command error")
		default:
			log.Debug("received answer")
		}

		r.table.Publish(answer)
	}
}

// noteResync records bytes skipped since the last call
func (r *receiver) noteResync(decoder *Decoder) {
	d := decoder.Discarded()
	if d == r.discarded {
		return
	}
	r.log.WithFields(logrus.Fields{
		"discarded": d - r.discarded,
		"buffered":  decoder.Buffered(),
	}).Debug("resynchronized stream")
	r.discarded = d
	r.stats.SetResync(d, decoder.ChecksumErrors())
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
