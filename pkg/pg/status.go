// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pg

import "strings"

// Status is the packed status byte of a state report
type Status uint8

// Status bits
const (
	StatusReferenced      Status = 1 << 0
	StatusMoving          Status = 1 << 1
	StatusProgramMode     Status = 1 << 2
	StatusWarning         Status = 1 << 3
	StatusError           Status = 1 << 4
	StatusBrake           Status = 1 << 5
	StatusMoveEnd         Status = 1 << 6
	StatusPositionReached Status = 1 << 7
)

var statusNames = [8]string{
	"Referenced",
	"Moving",
	"ProgramMode",
	"Warning",
	"Error",
	"Brake",
	"MoveEnd",
	"PositionReached",
}

// Has reports whether every bit in flag is set
func (s Status) Has(flag Status) bool {
	return s&flag == flag
}

func (s Status) Referenced() bool      { return s.Has(StatusReferenced) }
func (s Status) Moving() bool          { return s.Has(StatusMoving) }
func (s Status) ProgramMode() bool     { return s.Has(StatusProgramMode) }
func (s Status) Warning() bool         { return s.Has(StatusWarning) }
func (s Status) Error() bool           { return s.Has(StatusError) }
func (s Status) Brake() bool           { return s.Has(StatusBrake) }
func (s Status) MoveEnd() bool         { return s.Has(StatusMoveEnd) }
func (s Status) PositionReached() bool { return s.Has(StatusPositionReached) }

// Flags returns every bit by name
func (s Status) Flags() map[string]bool {
	flags := make(map[string]bool, len(statusNames))
	for i, name := range statusNames {
		flags[name] = s&(1<<i) != 0
	}
	return flags
}

// String lists the set bits, e.g. "Referenced|PositionReached"
func (s Status) String() string {
	if s == 0 {
		return "none"
	}
	var set []string
	for i, name := range statusNames {
		if s&(1<<i) != 0 {
			set = append(set, name)
		}
	}
	return strings.Join(set, "|")
}
