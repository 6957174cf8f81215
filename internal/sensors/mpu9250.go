// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/frame_recorder/internal/imu"
)

// mpuAccelFullScaleG is the accelerometer range the MPU9250 comes up in after Init.
const mpuAccelFullScaleG = 2.0

// MPU9250Source reads an MPU9250 over SPI.
type MPU9250Source struct {
	name string
	dev  *mpu9250.MPU9250
}

// NewMPU9250Source initializes the MPU9250 on spiDev with chip select csPin,
// runs the factory self-test and calibrates the accelerometer and gyro.
func NewMPU9250Source(spiDev, csPin string, logger *slog.Logger) (*MPU9250Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	name := "mpu9250 " + spiDev

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%s: periph host init: %w", name, err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("%s: CS pin %q not found", name, csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("%s: SPI transport: %w", name, err)
	}

	dev, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("%s: device creation: %w", name, err)
	}
	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("%s: initialization: %w", name, err)
	}

	if _, err := dev.SelfTest(); err != nil {
		logger.Warn("imu self-test failed", "device", name, "err", err)
	}
	if err := dev.Calibrate(); err != nil {
		logger.Warn("imu calibration failed", "device", name, "err", err)
	} else {
		logger.Info("imu calibration complete", "device", name)
	}

	return &MPU9250Source{name: name, dev: dev}, nil
}

// ReadRaw reads accelerometer and gyroscope counts.
func (s *MPU9250Source) ReadRaw() (imu.Raw, error) {
	ax, err := s.dev.GetAccelerationX()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("%s accel X: %w", s.name, err)
	}
	ay, err := s.dev.GetAccelerationY()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("%s accel Y: %w", s.name, err)
	}
	az, err := s.dev.GetAccelerationZ()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("%s accel Z: %w", s.name, err)
	}

	gx, err := s.dev.GetRotationX()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("%s gyro X: %w", s.name, err)
	}
	gy, err := s.dev.GetRotationY()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("%s gyro Y: %w", s.name, err)
	}
	gz, err := s.dev.GetRotationZ()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("%s gyro Z: %w", s.name, err)
	}

	return imu.Raw{Source: s.name, Ax: ax, Ay: ay, Az: az, Gx: gx, Gy: gy, Gz: gz}, nil
}

// FullScaleG returns the accelerometer range used to convert counts to g.
func (s *MPU9250Source) FullScaleG() float64 { return mpuAccelFullScaleG }
