// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gripper

import "github.com/Thermoquad/pincer/pkg/pg"

// Request builders create command payloads ready for pg.Client.Send.
// Floats are little-endian IEEE-754 float32.

// StateRequest creates a GET_STATE payload (0x95) for a full state report.
// interval is the automatic report period in seconds; 0 requests a single
// report.
func StateRequest(interval float32) []byte {
	return append(pg.PackFloats(interval), pg.StateModeAll)
}

// MoveRequest creates a MOVE_POS payload (0xB0): position, velocity,
// acceleration, current.
func MoveRequest(p MoveParams) []byte {
	return pg.PackFloats(p.Position, p.Velocity, p.Acceleration, p.Current)
}

// GripRequest creates a MOVE_GRIP payload (0xB7): current, max velocity.
func GripRequest(p GripParams) []byte {
	return pg.PackFloats(p.Current, p.MaxVelocity)
}
