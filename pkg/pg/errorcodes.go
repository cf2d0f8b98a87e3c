// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pg

// ErrorCode is the one-byte error code reported by the device in state
// reports and CMD_ERROR frames
type ErrorCode uint8

// Error code categories
const (
	CategoryInfo    = "Info"
	CategoryWarning = "Warning"
	CategoryError   = "Error"
	CategoryUnknown = "Unknown"
)

// Error code values
const (
	ErrorNone               ErrorCode = 0x00
	InfoBoot                ErrorCode = 0x01
	InfoNoFreeSpace         ErrorCode = 0x02
	InfoNoRights            ErrorCode = 0x03
	InfoUnknownCommand      ErrorCode = 0x04
	InfoFailed              ErrorCode = 0x05
	InfoNotReferenced       ErrorCode = 0x06
	InfoSearchSineVector    ErrorCode = 0x07
	InfoNoErrors            ErrorCode = 0x08
	InfoCommunicationError  ErrorCode = 0x09
	InfoTimeout             ErrorCode = 0x10
	InfoWrongBaudrate       ErrorCode = 0x16
	InfoChecksum            ErrorCode = 0x19
	InfoMessageLength       ErrorCode = 0x1D
	InfoWrongParameter      ErrorCode = 0x1E
	InfoProgramEnd          ErrorCode = 0x1F
	InfoTrigger             ErrorCode = 0x40
	InfoReady               ErrorCode = 0x41
	InfoGUIConnected        ErrorCode = 0x42
	InfoGUIDisconnected     ErrorCode = 0x43
	InfoProgramChanged      ErrorCode = 0x44
	WarningTempLow          ErrorCode = 0x70
	WarningTempHigh         ErrorCode = 0x71
	WarningLogicLow         ErrorCode = 0x72
	WarningLogicHigh        ErrorCode = 0x73
	WarningMotorVoltageLow  ErrorCode = 0x74
	WarningMotorVoltageHigh ErrorCode = 0x75
	WarningCableBreak       ErrorCode = 0x76
	WarningMotorTemp        ErrorCode = 0x78
	ErrorOvershoot          ErrorCode = 0x82
	ErrorWrongRampType      ErrorCode = 0xC8
	ErrorConfigMemory       ErrorCode = 0xD2
	ErrorProgramMemory      ErrorCode = 0xD3
	ErrorInvalidPhrase      ErrorCode = 0xD4
	ErrorSoftLow            ErrorCode = 0xD5
	ErrorSoftHigh           ErrorCode = 0xD6
	ErrorPressure           ErrorCode = 0xD7
	ErrorService            ErrorCode = 0xD8
	ErrorEmergencyStop      ErrorCode = 0xD9
	ErrorTow                ErrorCode = 0xDA
	ErrorVPC3               ErrorCode = 0xDB
	ErrorFragmentation      ErrorCode = 0xDC
	ErrorCommutation        ErrorCode = 0xDD
	ErrorCurrent            ErrorCode = 0xDE
	ErrorI2T                ErrorCode = 0xDF
	ErrorInitialize         ErrorCode = 0xE0
	ErrorInternal           ErrorCode = 0xE1
	ErrorHardLow            ErrorCode = 0xE2
	ErrorHardHigh           ErrorCode = 0xE3
	ErrorTooFast            ErrorCode = 0xE4
	ErrorMath               ErrorCode = 0xEC
	ErrorPositionSystem     ErrorCode = 0xED
	ErrorBrakeDefective     ErrorCode = 0xEE
	ErrorMotorTempShutdown  ErrorCode = 0xEF
)

type errorCodeInfo struct {
	name     string
	category string
}

var errorCodes = map[ErrorCode]errorCodeInfo{
	ErrorNone:               {"NO_ERROR", CategoryInfo},
	InfoBoot:                {"INFO_BOOT", CategoryInfo},
	InfoNoFreeSpace:         {"INFO_NO_FREE_SPACE", CategoryInfo},
	InfoNoRights:            {"INFO_NO_RIGHTS", CategoryInfo},
	InfoUnknownCommand:      {"INFO_UNKNOWN_COMMAND", CategoryInfo},
	InfoFailed:              {"INFO_FAILED", CategoryInfo},
	InfoNotReferenced:       {"NOT_REFERENCED", CategoryInfo},
	InfoSearchSineVector:    {"INFO_SEARCH_SINE_VECTOR", CategoryInfo},
	InfoNoErrors:            {"INFO_NO_ERRORS", CategoryInfo},
	InfoCommunicationError:  {"INFO_COMMUNICATION_ERROR", CategoryInfo},
	InfoTimeout:             {"INFO_TIMEOUT", CategoryInfo},
	InfoWrongBaudrate:       {"INFO_WRONG_BAUDRATE", CategoryInfo},
	InfoChecksum:            {"INFO_CHECKSUM", CategoryInfo},
	InfoMessageLength:       {"INFO_MESSAGE_LENGTH", CategoryInfo},
	InfoWrongParameter:      {"INFO_WRONG_PARAMETER", CategoryInfo},
	InfoProgramEnd:          {"INFO_PROGRAM_END", CategoryInfo},
	InfoTrigger:             {"INFO_TRIGGER", CategoryInfo},
	InfoReady:               {"INFO_READY", CategoryInfo},
	InfoGUIConnected:        {"INFO_GUI_CONNECTED", CategoryInfo},
	InfoGUIDisconnected:     {"INFO_GUI_DISCONNECTED", CategoryInfo},
	InfoProgramChanged:      {"INFO_PROGRAM_CHANGED", CategoryInfo},
	WarningTempLow:          {"ERROR_TEMP_LOW", CategoryWarning},
	WarningTempHigh:         {"ERROR_TEMP_HIGH", CategoryWarning},
	WarningLogicLow:         {"ERROR_LOGIC_LOW", CategoryWarning},
	WarningLogicHigh:        {"ERROR_LOGIC_HIGH", CategoryWarning},
	WarningMotorVoltageLow:  {"ERROR_MOTOR_VOLTAGE_LOW", CategoryWarning},
	WarningMotorVoltageHigh: {"ERROR_MOTOR_VOLTAGE_HIGH", CategoryWarning},
	WarningCableBreak:       {"ERROR_CABLE_BREAK", CategoryWarning},
	WarningMotorTemp:        {"ERROR_MOTOR_TEMP", CategoryWarning},
	ErrorOvershoot:          {"ERROR_OVERSHOOT", CategoryError},
	ErrorWrongRampType:      {"ERROR_WRONG_RAMP_TYPE", CategoryError},
	ErrorConfigMemory:       {"ERROR_CONFIG_MEMORY", CategoryError},
	ErrorProgramMemory:      {"ERROR_PROGRAM_MEMORY", CategoryError},
	ErrorInvalidPhrase:      {"ERROR_INVALID_PHRASE", CategoryError},
	ErrorSoftLow:            {"ERROR_SOFT_LOW", CategoryError},
	ErrorSoftHigh:           {"ERROR_SOFT_HIGH", CategoryError},
	ErrorPressure:           {"ERROR_PRESSURE", CategoryError},
	ErrorService:            {"ERROR_SERVICE", CategoryError},
	ErrorEmergencyStop:      {"ERROR_EMERGENCY_STOP", CategoryError},
	ErrorTow:                {"ERROR_TOW", CategoryError},
	ErrorVPC3:               {"ERROR_VPC3", CategoryError},
	ErrorFragmentation:      {"ERROR_FRAGMENTATION", CategoryError},
	ErrorCommutation:        {"ERROR_COMMUTATION", CategoryError},
	ErrorCurrent:            {"ERROR_CURRENT", CategoryError},
	ErrorI2T:                {"ERROR_I2T", CategoryError},
	ErrorInitialize:         {"ERROR_INITIALIZE", CategoryError},
	ErrorInternal:           {"ERROR_INTERNAL", CategoryError},
	ErrorHardLow:            {"ERROR_HARD_LOW", CategoryError},
	ErrorHardHigh:           {"ERROR_HARD_HIGH", CategoryError},
	ErrorTooFast:            {"ERROR_TOO_FAST", CategoryError},
	ErrorMath:               {"ERROR_MATH", CategoryError},
	ErrorPositionSystem:     {"ERROR_POSITION_SYSTEM", CategoryError},
	ErrorBrakeDefective:     {"ERROR_BRAKE_DEFECTIVE", CategoryError},
	ErrorMotorTempShutdown:  {"ERROR_MOTOR_TEMP_SHUTDOWN", CategoryError},
}

// Known reports whether the code is in the device error table
func (c ErrorCode) Known() bool {
	_, ok := errorCodes[c]
	return ok
}

// String returns the symbolic name, or "Unknown"
func (c ErrorCode) String() string {
	if info, ok := errorCodes[c]; ok {
		return info.name
	}
	return CategoryUnknown
}

// Category returns "Info", "Warning", "Error" or "Unknown"
func (c ErrorCode) Category() string {
	if info, ok := errorCodes[c]; ok {
		return info.category
	}
	return CategoryUnknown
}
