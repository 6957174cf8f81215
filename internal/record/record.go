// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package record holds the data handed from capture to persistence.
package record

import (
	"time"

	"github.com/relabs-tech/frame_recorder/internal/frame"
	"github.com/relabs-tech/frame_recorder/internal/imu"
)

// Record is one frame paired with the IMU sample held when it was captured
// and the scan depth in effect at that moment.
type Record struct {
	Frame frame.Frame
	IMU   imu.Sample
	Depth float64 // mm
}

// Kind distinguishes a full recording from a single saved frame.
type Kind int

const (
	KindRecording Kind = iota
	KindSingleFrame
)

func (k Kind) String() string {
	if k == KindSingleFrame {
		return "single_frame"
	}
	return "recording"
}

// Frozen is an ownership-transferred record sequence. Nothing mutates Records
// after a Frozen value is created, so any number of flushes may read it.
type Frozen struct {
	SessionID  string
	Kind       Kind
	StartedAt  time.Time
	StoppedAt  time.Time
	Dimensions frame.Dimensions // configured capture dimensions
	Records    []Record         // ordered by Frame.Index, gapless from 0
	Cause      error            // non-nil when capture ended on a fatal fault
}

// Len returns the number of records.
func (f *Frozen) Len() int { return len(f.Records) }

// Report describes the outcome of persisting a Frozen sequence.
type Report struct {
	SessionID string        `json:"session_id"`
	Kind      string        `json:"kind"`
	Dir       string        `json:"dir"`
	Sidecar   string        `json:"sidecar,omitempty"`
	Records   int           `json:"records"`
	Missing   []int         `json:"missing,omitempty"` // indices whose image failed to write
	Elapsed   time.Duration `json:"elapsed"`
}
