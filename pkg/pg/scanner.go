// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ScanFrame looks for a complete, checksum-valid frame at the start of buf.
//
// It returns the frame and the number of bytes the caller must drop from
// the front of buf. With ErrNeedMoreData nothing is consumed. With
// ErrBadPreamble, ErrBadLength or ErrChecksumMismatch exactly one byte is
// consumed so the caller can resynchronize. Every other call consumes the
// whole frame, so repeated calls on a fixed buffer always terminate.
func ScanFrame(buf []byte) (Frame, int, error) {
	if len(buf) >= 1 && buf[0] != Preamble0 {
		return Frame{}, 1, ErrBadPreamble
	}
	if len(buf) >= 2 && buf[1] != Preamble1 {
		return Frame{}, 1, ErrBadPreamble
	}
	if len(buf) < MinFrameSize {
		return Frame{}, 0, ErrNeedMoreData
	}

	length := int(buf[PreambleSize])
	if length == 0 {
		return Frame{}, 1, ErrBadLength
	}

	total := PreambleSize + 1 + length + CRCSize
	if len(buf) < total {
		return Frame{}, 0, ErrNeedMoreData
	}

	candidate := buf[:total]
	got := binary.LittleEndian.Uint16(candidate[total-CRCSize:])
	want := CalculateCRC(candidate[:total-CRCSize])
	if got != want {
		return Frame{}, 1, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrChecksumMismatch, want, got)
	}

	payload := make([]byte, length-1)
	copy(payload, candidate[HeaderSize:total-CRCSize])

	return Frame{
		Command: Command(candidate[PreambleSize+1]),
		Payload: payload,
		CRC:     got,
	}, total, nil
}

// Decoder accumulates stream bytes and extracts frames from them. A
// Decoder is owned by a single goroutine.
type Decoder struct {
	buf       []byte
	discarded uint64
	crcErrors uint64
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		buf: make([]byte, 0, MaxFrameSize*2),
	}
}

// Write appends received bytes to the decoder buffer. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Next returns the next valid frame in the buffer, discarding garbage one
// byte at a time. It returns ErrNeedMoreData once the buffer holds no
// complete frame.
func (d *Decoder) Next() (Frame, error) {
	for {
		frame, n, err := ScanFrame(d.buf)
		if n > 0 {
			d.consume(n)
		}
		switch {
		case err == nil:
			frame.Timestamp = time.Now()
			return frame, nil
		case errors.Is(err, ErrNeedMoreData):
			return Frame{}, err
		default:
			d.discarded += uint64(n)
			if errors.Is(err, ErrChecksumMismatch) {
				d.crcErrors++
			}
		}
	}
}

// Buffered returns the number of bytes waiting in the buffer
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Discarded returns the total number of bytes dropped while resynchronizing
func (d *Decoder) Discarded() uint64 {
	return d.discarded
}

// ChecksumErrors returns the number of candidate frames that failed the CRC
func (d *Decoder) ChecksumErrors() uint64 {
	return d.crcErrors
}

// Reset drops all buffered bytes
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

func (d *Decoder) consume(n int) {
	remaining := copy(d.buf, d.buf[n:])
	d.buf = d.buf[:remaining]
}
