// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"testing"
	"time"

	"github.com/relabs-tech/frame_recorder/internal/imu"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestZeroPoseIsIdentity(t *testing.T) {
	q := Pose{}.Quaternion()
	if q != imu.Identity {
		t.Fatalf("Quaternion() = %v, want identity", q)
	}
}

func TestQuaternionIsUnit(t *testing.T) {
	for _, p := range []Pose{{10, 20, 30}, {-45, 80, 190}, {179, -89, -179}} {
		q := p.Quaternion()
		n := q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3]
		if !near(n, 1) {
			t.Errorf("pose %+v: |q|² = %v", p, n)
		}
	}
}

func TestRollOnlyQuaternion(t *testing.T) {
	q := Pose{Roll: 90}.Quaternion()
	h := math.Sqrt2 / 2
	if !near(q[0], h) || !near(q[1], h) || !near(q[2], 0) || !near(q[3], 0) {
		t.Fatalf("Quaternion() = %v, want [%v %v 0 0]", q, h, h)
	}
}

func TestGravityRoundTrip(t *testing.T) {
	in := Pose{Roll: 12.5, Pitch: -30}
	g := in.Gravity()
	out := ComputePoseFromAccel(g[0], g[1], g[2])
	if !near(in.Roll, out.Roll) || !near(in.Pitch, out.Pitch) {
		t.Fatalf("round trip %+v -> %+v", in, out)
	}
}

func TestSampleFromAccelFlat(t *testing.T) {
	s := SampleFromAccel(imu.Vec3{0, 0, 1})
	if s.Orientation != imu.Identity {
		t.Fatalf("flat orientation = %v, want identity", s.Orientation)
	}
}

func TestSweepTriangle(t *testing.T) {
	s := Sweep{Amplitude: 30, Period: 4 * time.Second}
	cases := []struct {
		at    time.Duration
		pitch float64
	}{
		{0, 0},
		{time.Second, 30},
		{2 * time.Second, 0},
		{3 * time.Second, -30},
		{4 * time.Second, 0},
		{500 * time.Millisecond, 15},
		{5 * time.Second, 30},
	}
	for _, tc := range cases {
		p := s.At(tc.at)
		if !near(p.Pitch, tc.pitch) || p.Roll != 0 || p.Yaw != 0 {
			t.Errorf("At(%v) = %+v, want pitch %v", tc.at, p, tc.pitch)
		}
	}
}

func TestSweepStaysWithinAmplitude(t *testing.T) {
	s := DefaultSweep
	for ms := 0; ms < 8000; ms += 37 {
		p := s.At(time.Duration(ms) * time.Millisecond)
		if math.Abs(p.Pitch) > s.Amplitude+1e-9 || math.Abs(p.Roll) > s.Wobble+1e-9 {
			t.Fatalf("At(%dms) = %+v outside the sweep", ms, p)
		}
		g := p.Gravity()
		if n := math.Sqrt(g[0]*g[0] + g[1]*g[1] + g[2]*g[2]); !near(n, 1) {
			t.Fatalf("gravity at %dms has norm %v", ms, n)
		}
	}
}
