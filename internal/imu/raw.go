// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// Raw is a single raw accelerometer/gyro reading in sensor counts.
type Raw struct {
	Source string `json:"source"`

	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`
}

// RawSource is anything that can be polled for raw readings.
type RawSource interface {
	ReadRaw() (Raw, error)
}

// AccelG converts raw accelerometer counts to g for the given full-scale range
// (2, 4, 8 or 16 g).
func (r Raw) AccelG(fullScaleG float64) Vec3 {
	k := fullScaleG / 32768.0
	return Vec3{float64(r.Ax) * k, float64(r.Ay) * k, float64(r.Az) * k}
}
