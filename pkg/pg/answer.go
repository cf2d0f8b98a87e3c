// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pg

import (
	"encoding/binary"
	"math"
	"strconv"
)

// Answer is a decoded device reply. The set of implementations is closed;
// switch on the concrete type.
type Answer interface {
	Command() Command
	Raw() []byte
	answer()
}

type base struct {
	cmd Command
	raw []byte
}

func (b base) Command() Command { return b.cmd }
func (b base) Raw() []byte      { return b.raw }
func (base) answer()            {}

// StateReport is the reply to GET_STATE
type StateReport struct {
	base
	Position  float32
	Velocity  float32
	Current   float32
	Status    Status
	ErrorCode ErrorCode
}

// PositionCompleted is sent when a motion reaches its target
type PositionCompleted struct {
	base
	Position float32
}

// PositionObstructed is sent when a motion stops early, e.g. on a gripped part
type PositionObstructed struct {
	base
	Position float32
}

// MoveAccepted acknowledges MOVE_POS with the estimated travel time in seconds
type MoveAccepted struct {
	base
	Duration float32
}

// ReferenceAck acknowledges REFERENCE
type ReferenceAck struct{ base }

// StopAck acknowledges STOP and EMERGENCY_STOP
type StopAck struct{ base }

// GripAck acknowledges MOVE_GRIP
type GripAck struct{ base }

// CommandError is sent unsolicited when the device rejects a command or
// faults. Motion commands are refused until CMD_ACK is sent.
type CommandError struct {
	base
	Code ErrorCode
}

// Message returns the symbolic error name
func (e *CommandError) Message() string {
	return e.Code.String()
}

// CommandErrorAck confirms CMD_ACK
type CommandErrorAck struct{ base }

// ConfigData is the reply to GET_CONFIG; the layout is firmware specific
type ConfigData struct{ base }

// CommandInfo is an informational reply; the layout is firmware specific
type CommandInfo struct{ base }

// RawAnswer carries frames with a command code this package does not know
type RawAnswer struct{ base }

// Code returns the command byte of the unrecognized frame
func (r *RawAnswer) Code() Command { return r.cmd }

type decodeFunc func(b base) (Answer, error)

var decoders = map[Command]decodeFunc{
	CmdGetState:           decodeState,
	CmdPositionCompleted:  decodePositionCompleted,
	CmdPositionObstructed: decodePositionObstructed,
	CmdMovePosition:       decodeMoveAccepted,
	CmdReference:          func(b base) (Answer, error) { return &ReferenceAck{b}, nil },
	CmdStop:               func(b base) (Answer, error) { return &StopAck{b}, nil },
	CmdEmergencyStop:      func(b base) (Answer, error) { return &StopAck{b}, nil },
	CmdGrip:               func(b base) (Answer, error) { return &GripAck{b}, nil },
	CmdCommandError:       decodeCommandError,
	CmdAcknowledgeError:   func(b base) (Answer, error) { return &CommandErrorAck{b}, nil },
	CmdGetConfig:          func(b base) (Answer, error) { return &ConfigData{b}, nil },
	CmdCommandInfo:        func(b base) (Answer, error) { return &CommandInfo{b}, nil },
}

// Known reports whether cmd decodes to a typed answer rather than RawAnswer
func Known(cmd Command) bool {
	_, ok := decoders[cmd]
	return ok
}

// DecodeAnswer maps a frame's command and payload to a typed Answer.
// Unknown commands decode to *RawAnswer. A known command with a payload of
// the wrong length returns a *DecodeError.
func DecodeAnswer(cmd Command, payload []byte) (Answer, error) {
	b := base{cmd: cmd, raw: payload}
	decode, ok := decoders[cmd]
	if !ok {
		return &RawAnswer{b}, nil
	}
	return decode(b)
}

// DecodeFrame decodes the answer carried by f
func DecodeFrame(f Frame) (Answer, error) {
	return DecodeAnswer(f.Command, f.Payload)
}

func decodeState(b base) (Answer, error) {
	if len(b.raw) != StatePayloadSize {
		return nil, &DecodeError{Command: b.cmd, Want: strconv.Itoa(StatePayloadSize), Got: len(b.raw)}
	}
	return &StateReport{
		base:      b,
		Position:  float32At(b.raw, 0),
		Velocity:  float32At(b.raw, 4),
		Current:   float32At(b.raw, 8),
		Status:    Status(b.raw[12]),
		ErrorCode: ErrorCode(b.raw[13]),
	}, nil
}

func decodePositionCompleted(b base) (Answer, error) {
	if len(b.raw) != 4 {
		return nil, &DecodeError{Command: b.cmd, Want: "4", Got: len(b.raw)}
	}
	return &PositionCompleted{base: b, Position: float32At(b.raw, 0)}, nil
}

func decodePositionObstructed(b base) (Answer, error) {
	if len(b.raw) != 4 {
		return nil, &DecodeError{Command: b.cmd, Want: "4", Got: len(b.raw)}
	}
	return &PositionObstructed{base: b, Position: float32At(b.raw, 0)}, nil
}

func decodeMoveAccepted(b base) (Answer, error) {
	if len(b.raw) != 4 {
		return nil, &DecodeError{Command: b.cmd, Want: "4", Got: len(b.raw)}
	}
	return &MoveAccepted{base: b, Duration: float32At(b.raw, 0)}, nil
}

// The error code is the first byte; some firmware pads it to two bytes.
func decodeCommandError(b base) (Answer, error) {
	if len(b.raw) != 1 && len(b.raw) != 2 {
		return nil, &DecodeError{Command: b.cmd, Want: "1 or 2", Got: len(b.raw)}
	}
	return &CommandError{base: b, Code: ErrorCode(b.raw[0])}, nil
}

func float32At(data []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data[offset : offset+4]))
}
