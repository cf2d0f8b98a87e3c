// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pg

import (
	"fmt"
	"math"
)

// AnomalyType represents different types of answer anomalies
type AnomalyType int

const (
	AnomalyNonFinite AnomalyType = iota
	AnomalyErrorBitWithoutCode
	AnomalyCodeWithoutErrorBit
	AnomalyUnknownErrorCode
	AnomalyUnknownCommand
)

func (t AnomalyType) String() string {
	switch t {
	case AnomalyNonFinite:
		return "NON_FINITE"
	case AnomalyErrorBitWithoutCode:
		return "ERROR_BIT_WITHOUT_CODE"
	case AnomalyCodeWithoutErrorBit:
		return "CODE_WITHOUT_ERROR_BIT"
	case AnomalyUnknownErrorCode:
		return "UNKNOWN_ERROR_CODE"
	case AnomalyUnknownCommand:
		return "UNKNOWN_COMMAND"
	default:
		return "UNKNOWN"
	}
}

// ValidationError represents an answer that decoded but looks wrong
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateAnswer checks a decoded answer for values a healthy device does
// not send. Returns an empty slice if nothing looks wrong.
func ValidateAnswer(a Answer) []ValidationError {
	errors := []ValidationError{}

	switch a := a.(type) {
	case *StateReport:
		errors = append(errors, validateStateReport(a)...)
	case *PositionCompleted:
		errors = append(errors, validateFloat("position", a.Position)...)
	case *PositionObstructed:
		errors = append(errors, validateFloat("position", a.Position)...)
	case *MoveAccepted:
		errors = append(errors, validateFloat("duration", a.Duration)...)
	case *CommandError:
		errors = append(errors, validateErrorCode(a.Code)...)
	case *RawAnswer:
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownCommand,
			Message: fmt.Sprintf("Unknown command 0x%02X", uint8(a.Code())),
			Details: map[string]interface{}{"cmd": uint8(a.Code()), "length": len(a.Raw())},
		})
	}

	return errors
}

func validateStateReport(s *StateReport) []ValidationError {
	errors := []ValidationError{}

	errors = append(errors, validateFloat("position", s.Position)...)
	errors = append(errors, validateFloat("velocity", s.Velocity)...)
	errors = append(errors, validateFloat("current", s.Current)...)

	if s.Status.Error() && s.ErrorCode == ErrorNone {
		errors = append(errors, ValidationError{
			Type:    AnomalyErrorBitWithoutCode,
			Message: "Error status bit set but error code is NO_ERROR",
			Details: map[string]interface{}{"status": uint8(s.Status)},
		})
	}

	if !s.Status.Error() && s.ErrorCode.Category() == CategoryError {
		errors = append(errors, ValidationError{
			Type:    AnomalyCodeWithoutErrorBit,
			Message: fmt.Sprintf("Error code %s reported without Error status bit", s.ErrorCode),
			Details: map[string]interface{}{"status": uint8(s.Status), "code": uint8(s.ErrorCode)},
		})
	}

	errors = append(errors, validateErrorCode(s.ErrorCode)...)
	return errors
}

func validateErrorCode(code ErrorCode) []ValidationError {
	if code.Known() {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyUnknownErrorCode,
		Message: fmt.Sprintf("Unknown error code 0x%02X", uint8(code)),
		Details: map[string]interface{}{"code": uint8(code)},
	}}
}

func validateFloat(name string, v float32) []ValidationError {
	f := float64(v)
	if !math.IsNaN(f) && !math.IsInf(f, 0) {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyNonFinite,
		Message: fmt.Sprintf("Non-finite %s (%v)", name, v),
		Details: map[string]interface{}{"field": name, "value": f},
	}}
}
