// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pg

import (
	"fmt"
	"sync"
	"time"
)

// Statistics tracks frame counts and error rates for one connection.
// The receive loop writes, any goroutine may read a Snapshot.
type Statistics struct {
	mu sync.Mutex
	s  Snapshot
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	BytesRead       uint64
	BytesWritten    uint64
	FramesSent      uint64
	TotalFrames     uint64
	ValidAnswers    uint64
	ResyncBytes     uint64
	CRCErrors       uint64
	DecodeErrors    uint64
	UnknownCommands uint64
	DeviceErrors    uint64
	Anomalies       uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{s: Snapshot{StartTime: now, LastUpdateTime: now}}
}

// AddRead counts bytes read from the transport
func (st *Statistics) AddRead(n int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.BytesRead += uint64(n)
}

// AddSent counts one frame of n bytes written to the transport
func (st *Statistics) AddSent(n int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.FramesSent++
	st.s.BytesWritten += uint64(n)
}

// SetResync records the decoder's running resync counters
func (st *Statistics) SetResync(discarded, crcErrors uint64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.ResyncBytes = discarded
	st.s.CRCErrors = crcErrors
}

// Update counts one frame and the outcome of decoding it
func (st *Statistics) Update(a Answer, decodeErr error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.s.TotalFrames++
	st.s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		st.s.DecodeErrors++
		return
	}

	st.s.ValidAnswers++
	switch a.(type) {
	case *RawAnswer:
		st.s.UnknownCommands++
	case *CommandError:
		st.s.DeviceErrors++
	}
}

// AddAnomalies counts validation findings
func (st *Statistics) AddAnomalies(n int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Anomalies += uint64(n)
}

// Snapshot returns a copy of the counters with rates filled in
func (st *Statistics) Snapshot() Snapshot {
	st.mu.Lock()
	snap := st.s
	st.mu.Unlock()

	snap.calculateRates()
	return snap
}

// Reset resets all statistics counters
func (st *Statistics) Reset() {
	now := time.Now()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = Snapshot{StartTime: now, LastUpdateTime: now}
}

func (s *Snapshot) calculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.errorCount()) / elapsed
	}
}

func (s *Snapshot) errorCount() uint64 {
	return s.CRCErrors + s.DecodeErrors + s.DeviceErrors
}

// String returns a formatted statistics summary
func (s Snapshot) String() string {
	var validPercent, decodeErrorPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidAnswers) * 100.0 / float64(s.TotalFrames)
		decodeErrorPercent = float64(s.DecodeErrors) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Bytes In/Out:    %8d / %d\n", s.BytesRead, s.BytesWritten)
	result += fmt.Sprintf("Frames Sent:     %8d\n", s.FramesSent)
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Answers:   %8d (%.1f%%)\n", s.ValidAnswers, validPercent)

	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d\n", s.CRCErrors)
	}
	if s.ResyncBytes > 0 {
		result += fmt.Sprintf("Resync Bytes:    %8d\n", s.ResyncBytes)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, decodeErrorPercent)
	}
	if s.UnknownCommands > 0 {
		result += fmt.Sprintf("Unknown Cmds:    %8d\n", s.UnknownCommands)
	}
	if s.DeviceErrors > 0 {
		result += fmt.Sprintf("Device Errors:   %8d\n", s.DeviceErrors)
	}
	if s.Anomalies > 0 {
		result += fmt.Sprintf("Anomalies:       %8d\n", s.Anomalies)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}
