// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "time"

// Vec3 is a 3-component acceleration vector (g).
type Vec3 [3]float64

// Quaternion is an orientation quaternion in w, x, y, z order.
type Quaternion [4]float64

// Identity is the no-rotation quaternion.
var Identity = Quaternion{1, 0, 0, 0}

// Sample is one decoded IMU reading stamped by the host on arrival.
type Sample struct {
	ReceivedAt   time.Time  `json:"received_at"`
	Acceleration Vec3       `json:"acceleration"`
	Orientation  Quaternion `json:"orientation"`
}

// Zero returns the sentinel used when no IMU sample is available:
// zero acceleration and the identity quaternion.
func Zero() Sample {
	return Sample{Orientation: Identity}
}

// IsZero reports whether s carries sentinel values (its timestamp is ignored).
func (s Sample) IsZero() bool {
	return s.Acceleration == Vec3{} && s.Orientation == Identity
}

// Sink receives samples from an IMU adapter.
// HoldBuffer is the only implementation in the recorder.
type Sink interface {
	Update(Sample)
	Disconnect(reason error)
}
