// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"fmt"
	"math"
	"sync/atomic"
)

// DepthReader returns the scan depth currently in effect, in millimetres.
type DepthReader interface {
	Get() float64
}

// Depth is the runtime-adjustable scan depth setting. It is written by the
// control surface and read on every capture tick.
type Depth struct {
	bits atomic.Uint64
}

// NewDepth returns a Depth initialised to mm.
func NewDepth(mm float64) *Depth {
	d := &Depth{}
	d.bits.Store(math.Float64bits(mm))
	return d
}

// Get returns the current depth.
func (d *Depth) Get() float64 {
	return math.Float64frombits(d.bits.Load())
}

// Set changes the depth. Records captured after Set returns carry the new value.
func (d *Depth) Set(mm float64) error {
	if math.IsNaN(mm) || math.IsInf(mm, 0) || mm <= 0 {
		return fmt.Errorf("invalid scan depth %v", mm)
	}
	d.bits.Store(math.Float64bits(mm))
	return nil
}
