// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/frame_recorder/internal/app"
	"github.com/relabs-tech/frame_recorder/internal/config"
)

func main() {
	configPath := flag.String("config", "./recorder_config.txt", "path to configuration file")
	flag.Parse()

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	logger := app.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting imu producer (IMU -> MQTT)", "imu_source", cfg.IMUSource)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunIMUProducer(ctx, cfg, logger); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
