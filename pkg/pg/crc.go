// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pg

import "github.com/sigurn/crc16"

// CRC-16/ARC: poly 0x8005, init 0x0000, reflected input and output
var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

// CalculateCRC computes the CRC-16/ARC checksum for the given data
func CalculateCRC(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
