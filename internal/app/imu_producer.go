// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/frame_recorder/internal/config"
	"github.com/relabs-tech/frame_recorder/internal/imu"
)

// samplePublisher is an imu.Sink that forwards every sample to MQTT.
type samplePublisher struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger

	published atomic.Uint64
}

func (p *samplePublisher) Update(s imu.Sample) {
	payload, err := json.Marshal(s)
	if err != nil {
		p.logger.Error("sample marshal error", "err", err)
		return
	}
	// QoS 0 and no wait: a late sample is worthless to the recorder.
	p.client.Publish(p.topic, 0, false, payload)
	p.published.Add(1)
}

func (p *samplePublisher) Disconnect(reason error) {
	p.logger.Warn("imu device lost", "err", reason)
}

// RunIMUProducer reads the IMU configured by IMU_SOURCE on this host and
// publishes its samples to TOPIC_IMU_SAMPLE until ctx is cancelled.
func RunIMUProducer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.IMUSource == "mqtt" || cfg.IMUSource == "none" {
		return fmt.Errorf("imu producer needs a device IMU_SOURCE (mock, witmotion or mpu9250), got %q", cfg.IMUSource)
	}
	adapter, err := newIMUAdapter(cfg, cfg.MQTTClientIDProducer, logger)
	if err != nil {
		return err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect %s: %w", cfg.MQTTBroker, token.Error())
	}
	defer client.Disconnect(250)
	logger.Info("connected to MQTT, publishing imu samples", "broker", cfg.MQTTBroker, "topic", cfg.TopicIMUSample)

	pub := &samplePublisher{client: client, topic: cfg.TopicIMUSample, logger: logger}

	// Periodic rate log, like a console tick.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		var last uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n := pub.published.Load()
				logger.Info("imu samples published", "total", n, "rate_hz", float64(n-last)/10)
				last = n
			}
		}
	}()

	return adapter.Run(ctx, pub)
}
