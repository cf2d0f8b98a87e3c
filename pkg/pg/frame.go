// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pg

import "time"

// Frame is one checksum-valid unit taken off the wire
type Frame struct {
	Command   Command
	Payload   []byte
	CRC       uint16
	Timestamp time.Time
}

// Length returns the value of the LEN byte (command byte + payload)
func (f Frame) Length() uint8 {
	return uint8(1 + len(f.Payload))
}

// Bytes re-encodes the frame in wire format
func (f Frame) Bytes() []byte {
	data, err := EncodeFrame(f.Command, f.Payload)
	if err != nil {
		panic("pg: frame holds oversized payload: " + err.Error())
	}
	return data
}
