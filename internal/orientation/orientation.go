// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"github.com/relabs-tech/frame_recorder/internal/imu"
)

// Pose is orientation as roll/pitch/yaw in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Source is anything that can provide poses over time.
type Source interface {
	Next() (Pose, error)
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
// Yaw is 0 because gravity carries no heading information.
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
		Yaw:   0,
	}
}

// Quaternion converts the pose (ZYX intrinsic order) to a unit quaternion.
func (p Pose) Quaternion() imu.Quaternion {
	hr := p.Roll * math.Pi / 360.0
	hp := p.Pitch * math.Pi / 360.0
	hy := p.Yaw * math.Pi / 360.0

	cr, sr := math.Cos(hr), math.Sin(hr)
	cp, sp := math.Cos(hp), math.Sin(hp)
	cy, sy := math.Cos(hy), math.Sin(hy)

	return imu.Quaternion{
		cr*cp*cy + sr*sp*sy,
		sr*cp*cy - cr*sp*sy,
		cr*sp*cy + sr*cp*sy,
		cr*cp*sy - sr*sp*cy,
	}
}

// Gravity returns the unit gravity vector (g) an accelerometer at rest would
// report in this pose. It is the inverse of ComputePoseFromAccel.
func (p Pose) Gravity() imu.Vec3 {
	r := p.Roll * math.Pi / 180.0
	pt := p.Pitch * math.Pi / 180.0
	return imu.Vec3{
		-math.Sin(pt),
		math.Sin(r) * math.Cos(pt),
		math.Cos(r) * math.Cos(pt),
	}
}

// SampleFromAccel builds an IMU sample from an acceleration vector, deriving
// orientation from tilt.
func SampleFromAccel(a imu.Vec3) imu.Sample {
	pose := ComputePoseFromAccel(a[0], a[1], a[2])
	return imu.Sample{Acceleration: a, Orientation: pose.Quaternion()}
}
