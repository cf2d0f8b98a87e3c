// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pg

import (
	"errors"
	"fmt"
)

var (
	ErrNeedMoreData     = errors.New("pg: need more data")
	ErrBadPreamble      = errors.New("pg: bad preamble")
	ErrBadLength        = errors.New("pg: invalid length byte")
	ErrChecksumMismatch = errors.New("pg: checksum mismatch")
	ErrPayloadTooLarge  = errors.New("pg: payload too large")
	ErrDecode           = errors.New("pg: decode error")
	ErrTimeout          = errors.New("pg: timed out waiting for reply")
	ErrConnectionClosed = errors.New("pg: connection closed")
	ErrDeviceReported   = errors.New("pg: device reported error")
)

// DecodeError reports a payload whose length does not match the layout of
// a known answer.
type DecodeError struct {
	Command Command
	Want    string
	Got     int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("pg: decode %s (0x%02X): payload length %d, want %s", e.Command, uint8(e.Command), e.Got, e.Want)
}

func (e *DecodeError) Unwrap() error {
	return ErrDecode
}

// DeviceError is returned to waiters when the device sends CMD_ERROR. The
// device refuses further motion until the error is acknowledged.
type DeviceError struct {
	Code ErrorCode
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("pg: device error 0x%02X %s (%s)", uint8(e.Code), e.Code, e.Code.Category())
}

func (e *DeviceError) Unwrap() error {
	return ErrDeviceReported
}
