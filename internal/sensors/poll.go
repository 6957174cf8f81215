// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors contains the IMU adapters that feed samples into the
// recorder's hold buffer.
package sensors

import (
	"context"
	"log/slog"
	"time"

	"github.com/relabs-tech/frame_recorder/internal/imu"
	"github.com/relabs-tech/frame_recorder/internal/orientation"
)

// Adapter pushes samples into a sink until ctx is cancelled.
type Adapter interface {
	Run(ctx context.Context, sink imu.Sink) error
}

// maxReadErrors is the number of consecutive failed reads after which a
// polled device is reported as disconnected.
const maxReadErrors = 5

// Poller turns a polled raw device into a sample stream. Orientation is
// derived from the accelerometer tilt, so yaw is always zero.
type Poller struct {
	Src        imu.RawSource
	FullScaleG float64
	Interval   time.Duration
	Logger     *slog.Logger
}

// Run polls Src every Interval and publishes each reading to sink.
func (p *Poller) Run(ctx context.Context, sink imu.Sink) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := p.Interval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			raw, err := p.Src.ReadRaw()
			if err != nil {
				failures++
				logger.Debug("imu read error", "err", err, "consecutive", failures)
				if failures == maxReadErrors {
					sink.Disconnect(err)
				}
				continue
			}
			failures = 0
			s := orientation.SampleFromAccel(raw.AccelG(p.FullScaleG))
			s.ReceivedAt = t
			sink.Update(s)
		}
	}
}

// Mock produces a slowly rocking orientation with matching gravity vector.
type Mock struct {
	Interval time.Duration
}

// Run publishes a mock sample every Interval.
func (m *Mock) Run(ctx context.Context, sink imu.Sink) error {
	src := orientation.NewMockSource()
	interval := m.Interval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			pose, err := src.Next()
			if err != nil {
				sink.Disconnect(err)
				continue
			}
			sink.Update(imu.Sample{ReceivedAt: t, Acceleration: pose.Gravity(), Orientation: pose.Quaternion()})
		}
	}
}
