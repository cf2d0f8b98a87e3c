// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records frames to a file and reads them back.
//
// A capture is a CBOR sequence: one Header followed by any number of
// Records, each an integer-keyed map.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/pincer/pkg/pg"
)

// Format identifies capture files
const (
	Format  = "pincer-capture"
	Version = 1
)

// ErrBadHeader is returned when a stream does not start with a capture header
var ErrBadHeader = errors.New("capture: not a capture file")

// Direction of a recorded frame
type Direction uint8

const (
	Received Direction = iota
	Sent
)

func (d Direction) String() string {
	if d == Sent {
		return "TX"
	}
	return "RX"
}

// Header is the first item of a capture
type Header struct {
	Format  string `cbor:"0,keyasint"`
	Version uint   `cbor:"1,keyasint"`
	Link    string `cbor:"2,keyasint,omitempty"`
	Started int64  `cbor:"3,keyasint"` // unix nanoseconds
}

// Record is one frame
type Record struct {
	Time      int64     `cbor:"0,keyasint"` // unix nanoseconds
	Direction Direction `cbor:"1,keyasint"`
	Command   uint8     `cbor:"2,keyasint"`
	Payload   []byte    `cbor:"3,keyasint"`
}

// Timestamp returns the record time
func (r Record) Timestamp() time.Time {
	return time.Unix(0, r.Time)
}

// Frame rebuilds the recorded frame
func (r Record) Frame() pg.Frame {
	f := pg.Frame{
		Command:   pg.Command(r.Command),
		Payload:   r.Payload,
		Timestamp: r.Timestamp(),
	}
	if data, err := pg.EncodeFrame(f.Command, f.Payload); err == nil {
		f.CRC = pg.CalculateCRC(data[:len(data)-pg.CRCSize])
	}
	return f
}

// Writer appends records to a capture. It is safe for concurrent use.
type Writer struct {
	mu    sync.Mutex
	enc   *cbor.Encoder
	count int
	err   error
}

// NewWriter writes the header to w and returns a Writer
func NewWriter(w io.Writer, link string) (*Writer, error) {
	enc := cbor.NewEncoder(w)
	h := Header{
		Format:  Format,
		Version: Version,
		Link:    link,
		Started: time.Now().UnixNano(),
	}
	if err := enc.Encode(h); err != nil {
		return nil, fmt.Errorf("capture: write header: %w", err)
	}
	return &Writer{enc: enc}, nil
}

// Write appends one record. After the first failure every call returns
// the same error.
func (w *Writer) Write(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return w.err
	}
	if err := w.enc.Encode(r); err != nil {
		w.err = fmt.Errorf("capture: write record: %w", err)
		return w.err
	}
	w.count++
	return nil
}

// WriteFrame records f in direction d
func (w *Writer) WriteFrame(d Direction, f pg.Frame) error {
	ts := f.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return w.Write(Record{
		Time:      ts.UnixNano(),
		Direction: d,
		Command:   uint8(f.Command),
		Payload:   f.Payload,
	})
}

// Hook returns a pg.FrameHook recording every received frame
func (w *Writer) Hook() pg.FrameHook {
	return func(f pg.Frame, _ pg.Answer, _ error) {
		w.WriteFrame(Received, f)
	}
}

// Count returns the number of records written
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Err returns the first write error, if any
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Reader reads a capture
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader reads and checks the header
func NewReader(r io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(r)
	var h Header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if h.Format != Format {
		return nil, fmt.Errorf("%w: format %q", ErrBadHeader, h.Format)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("capture: unsupported version %d", h.Version)
	}
	return &Reader{dec: dec, header: h}, nil
}

// Header returns the capture header
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record, or io.EOF at the end of the capture
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("capture: read record: %w", err)
	}
	return rec, nil
}
