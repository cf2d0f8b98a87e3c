// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pg

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encoder encodes command frames for transmission.
type Encoder struct {
	// TrailingNewline appends '\n' after the checksum. Older host software
	// did this; the device ignores it and the scanner skips it.
	TrailingNewline bool
}

// NewEncoder creates a new frame encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode builds the wire bytes for cmd and payload.
func (e *Encoder) Encode(cmd Command, payload []byte) ([]byte, error) {
	data, err := EncodeFrame(cmd, payload)
	if err != nil {
		return nil, err
	}
	if e.TrailingNewline {
		data = append(data, '\n')
	}
	return data, nil
}

// EncodeFrame creates a complete wire-formatted frame:
// preamble, LEN, CMD, payload and the CRC-16/ARC (little-endian) over all
// preceding bytes.
func EncodeFrame(cmd Command, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}

	frame := make([]byte, 0, HeaderSize+len(payload)+CRCSize+1)
	frame = append(frame, Preamble0, Preamble1, uint8(1+len(payload)), uint8(cmd))
	frame = append(frame, payload...)

	crc := CalculateCRC(frame)
	frame = binary.LittleEndian.AppendUint16(frame, crc)

	return frame, nil
}

// MustEncodeFrame is EncodeFrame for payloads known to fit.
// Panics on encoding error.
func MustEncodeFrame(cmd Command, payload []byte) []byte {
	data, err := EncodeFrame(cmd, payload)
	if err != nil {
		panic(fmt.Sprintf("pg: encode error: %v", err))
	}
	return data
}

// PackFloats serializes values as consecutive little-endian IEEE-754 float32.
func PackFloats(values ...float32) []byte {
	buf := make([]byte, 0, 4*len(values))
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}
