// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"time"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/frame_recorder/internal/imu"
)

// WitMotion packets are 11 bytes: 0x55, a type byte, four little-endian
// int16 values and a checksum equal to the low byte of the sum of the first 10.
const (
	witHeader     = 0x55
	witPacketLen  = 11
	witAccel      = 0x51
	witQuaternion = 0x59
	witAccelRange = 16.0 // g
)

// WitDecoder reassembles WitMotion packets from a byte stream. A sample is
// produced for every quaternion packet, carrying the latest acceleration.
type WitDecoder struct {
	buf   []byte
	accel imu.Vec3

	// BadPackets counts packets dropped on checksum mismatch.
	BadPackets int
}

// Feed appends p to the decoder and returns the samples it completes.
func (d *WitDecoder) Feed(p []byte) []imu.Sample {
	d.buf = append(d.buf, p...)
	var out []imu.Sample
	for len(d.buf) >= witPacketLen {
		if d.buf[0] != witHeader {
			d.buf = d.buf[1:]
			continue
		}
		pkt := d.buf[:witPacketLen]
		var sum byte
		for _, b := range pkt[:witPacketLen-1] {
			sum += b
		}
		if sum != pkt[witPacketLen-1] {
			d.BadPackets++
			d.buf = d.buf[1:]
			continue
		}

		var v [4]float64
		for i := range v {
			v[i] = float64(int16(binary.LittleEndian.Uint16(pkt[2+2*i:]))) / 32768.0
		}
		switch pkt[1] {
		case witAccel:
			d.accel = imu.Vec3{v[0] * witAccelRange, v[1] * witAccelRange, v[2] * witAccelRange}
		case witQuaternion:
			out = append(out, imu.Sample{Acceleration: d.accel, Orientation: imu.Quaternion(v)})
		}
		d.buf = d.buf[witPacketLen:]
	}
	return out
}

// WitMotion reads a WitMotion serial IMU. The port is reopened after a read
// error until ctx is cancelled.
type WitMotion struct {
	PortName string
	BaudRate uint
	Logger   *slog.Logger

	// Retry is the wait before reopening a failed port.
	Retry time.Duration
}

// Run streams samples from the device into sink.
func (w *WitMotion) Run(ctx context.Context, sink imu.Sink) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retry := w.Retry
	if retry <= 0 {
		retry = time.Second
	}
	for {
		err := w.stream(ctx, sink, logger)
		if ctx.Err() != nil {
			return nil
		}
		sink.Disconnect(err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retry):
		}
	}
}

func (w *WitMotion) stream(ctx context.Context, sink imu.Sink, logger *slog.Logger) error {
	port, err := serial.Open(serial.OpenOptions{
		PortName:        w.PortName,
		BaudRate:        w.BaudRate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return fmt.Errorf("witmotion: open %s: %w", w.PortName, err)
	}
	logger.Info("witmotion port opened", "port", w.PortName, "baud", w.BaudRate)

	// Closing the port unblocks the pending Read.
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer func() {
		if stop() {
			port.Close()
		}
	}()
	return readWit(port, sink, logger)
}

func readWit(r io.Reader, sink imu.Sink, logger *slog.Logger) error {
	var dec WitDecoder
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		for _, s := range dec.Feed(buf[:n]) {
			s.ReceivedAt = time.Now()
			sink.Update(s)
		}
		if err != nil {
			if dec.BadPackets > 0 {
				logger.Debug("witmotion checksum errors", "count", dec.BadPackets)
			}
			return fmt.Errorf("witmotion: read: %w", err)
		}
	}
}
