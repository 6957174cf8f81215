// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"
)

// Sweep describes a hand-held probe fanned back and forth about its long
// axis: pitch follows a triangle wave between -Amplitude and +Amplitude
// degrees, with a small sinusoidal roll wobble. Yaw stays at zero, as it
// would for a tilt-only IMU.
type Sweep struct {
	Amplitude float64       // degrees
	Period    time.Duration // one full back-and-forth
	Wobble    float64       // roll amplitude, degrees
}

// DefaultSweep is a slow ±30° fan with a little hand tremor.
var DefaultSweep = Sweep{Amplitude: 30, Period: 4 * time.Second, Wobble: 2}

// At returns the pose elapsed into the sweep. The sweep starts level and
// moving towards positive pitch.
func (s Sweep) At(elapsed time.Duration) Pose {
	if s.Period <= 0 {
		return Pose{}
	}
	phase := math.Mod(elapsed.Seconds()/s.Period.Seconds(), 1)
	var tri float64 // -1..1, 0 at phase 0
	switch {
	case phase < 0.25:
		tri = 4 * phase
	case phase < 0.75:
		tri = 2 - 4*phase
	default:
		tri = 4*phase - 4
	}
	return Pose{
		Roll:  s.Wobble * math.Sin(2*math.Pi*3*phase),
		Pitch: s.Amplitude * tri,
	}
}

type sweepSource struct {
	sweep Sweep
	start time.Time
}

// NewMockSource returns a Source that plays DefaultSweep in real time.
func NewMockSource() Source {
	return &sweepSource{sweep: DefaultSweep, start: time.Now()}
}

func (m *sweepSource) Next() (Pose, error) {
	return m.sweep.At(time.Since(m.start)), nil
}
