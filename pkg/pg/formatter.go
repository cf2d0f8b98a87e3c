// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pg

import (
	"fmt"
	"strings"
	"time"
)

// FormatFrame formats a received frame and its decoded answer into a
// human-readable string. answer may be nil if decoding failed.
func FormatFrame(f Frame, answer Answer, decodeErr error) string {
	ts := f.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d\n", ts.Format("15:04:05.000"), f.Command, uint8(f.Command), f.Length())

	if decodeErr != nil {
		return result + fmt.Sprintf("  Decode error: %v\n  Payload: %s\n", decodeErr, FormatHex(f.Payload))
	}
	return result + FormatAnswer(answer)
}

// FormatAnswer formats the fields of a decoded answer, one indented line
func FormatAnswer(a Answer) string {
	switch a := a.(type) {
	case nil:
		return "  (nil answer)\n"

	case *StateReport:
		result := fmt.Sprintf("  Position: %.3f mm, Velocity: %.3f mm/s, Current: %.3f A\n",
			a.Position, a.Velocity, a.Current)
		result += fmt.Sprintf("  Status: %s (0x%02X), Error: %s (0x%02X)\n",
			a.Status, uint8(a.Status), a.ErrorCode, uint8(a.ErrorCode))
		return result

	case *PositionCompleted:
		return fmt.Sprintf("  Reached: %.3f mm\n", a.Position)

	case *PositionObstructed:
		return fmt.Sprintf("  Obstructed at: %.3f mm\n", a.Position)

	case *MoveAccepted:
		return fmt.Sprintf("  Estimated duration: %.3f s\n", a.Duration)

	case *CommandError:
		return fmt.Sprintf("  Error Code: 0x%02X %s (%s)\n", uint8(a.Code), a.Code, a.Code.Category())

	case *ReferenceAck, *StopAck, *GripAck, *CommandErrorAck:
		if len(a.Raw()) == 0 {
			return "  (no payload)\n"
		}
		return fmt.Sprintf("  Payload: %s\n", FormatHex(a.Raw()))

	default:
		return fmt.Sprintf("  Payload: %s\n", FormatHex(a.Raw()))
	}
}

// FormatHex renders data as space-separated hex bytes, e.g. "05 0C 02"
func FormatHex(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
