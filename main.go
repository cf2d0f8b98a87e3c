// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Pincer - PG Gripper Protocol Tool
//
// A CLI tool for controlling PG-series parallel grippers and decoding
// their binary protocol in human-readable format.

package main

import (
	"os"

	"github.com/Thermoquad/pincer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
