// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package pg implements the binary protocol spoken by PG-series parallel
// grippers over RS-232 or a TCP serial bridge.
//
// The package covers frame encoding, stream scanning with one-byte
// resynchronization, CRC-16/ARC validation, typed answer decoding, the
// background receive loop and the table that correlates asynchronous
// replies with the callers waiting for them.
package pg

import "time"

// Protocol framing bytes
const (
	Preamble0 = 0x05
	Preamble1 = 0x0C
)

// Frame size limits
const (
	PreambleSize   = 2
	HeaderSize     = PreambleSize + 1 + 1 // preamble + LEN + CMD
	CRCSize        = 2
	MinFrameSize   = HeaderSize + CRCSize
	MaxPayloadSize = 254 // LEN is one byte and counts the command byte
	MaxFrameSize   = HeaderSize + MaxPayloadSize + CRCSize
)

// Receive loop tuning
const (
	ChunkSize          = 256
	DefaultReadTimeout = 100 * time.Millisecond
	StopFlushDelay     = 50 * time.Millisecond
	LoopExitTimeout    = time.Second
)

// Command identifies the semantic operation or reply type of a frame.
type Command uint8

// Commands sent by the host; the device echoes the code in its reply
const (
	CmdGetConfig        Command = 0x80
	CmdCommandError     Command = 0x88 // unsolicited
	CmdCommandInfo      Command = 0x8A
	CmdAcknowledgeError Command = 0x8B
	CmdEmergencyStop    Command = 0x90
	CmdStop             Command = 0x91
	CmdReference        Command = 0x92
	CmdGetState         Command = 0x95
	CmdMovePosition     Command = 0xB0
	CmdGrip             Command = 0xB7
)

// Completion events sent by the device once a motion ends
const (
	CmdPositionObstructed Command = 0x93
	CmdPositionCompleted  Command = 0x94
)

// StateModeAll is the GET_STATE mode byte selecting position, velocity and
// current (bits 0x01, 0x02, 0x04). Replies to partial modes have a
// different length and are not decoded.
const StateModeAll = 0x07

// ConfigRequestAll is the GET_CONFIG payload requesting every parameter.
const ConfigRequestAll = 0xFE

// StatePayloadSize is the length of a full state report:
// position, velocity, current (float32 each), status bits, error code.
const StatePayloadSize = 3*4 + 2

// String returns the symbolic name of the command
func (c Command) String() string {
	switch c {
	case CmdGetConfig:
		return "GET_CONFIG"
	case CmdCommandError:
		return "CMD_ERROR"
	case CmdCommandInfo:
		return "CMD_INFO"
	case CmdAcknowledgeError:
		return "CMD_ACK"
	case CmdEmergencyStop:
		return "EMERGENCY_STOP"
	case CmdStop:
		return "STOP"
	case CmdReference:
		return "REFERENCE"
	case CmdPositionObstructed:
		return "MOV_POS_OBSTRUCTED"
	case CmdPositionCompleted:
		return "MOV_POS_REACHED"
	case CmdGetState:
		return "GET_STATE"
	case CmdMovePosition:
		return "MOVE_POS"
	case CmdGrip:
		return "MOVE_GRIP"
	default:
		return "UNKNOWN"
	}
}
