// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/frame_recorder/internal/imu"
)

// MQTTSource subscribes to a topic carrying JSON imu.Sample messages, as
// published by the imu_producer binary.
type MQTTSource struct {
	Broker   string
	ClientID string
	Topic    string
	Logger   *slog.Logger
}

// Run connects, subscribes and blocks until ctx is cancelled. A lost
// connection is reported to sink as a disconnect; paho reconnects on its own
// and resubscribes through the OnConnect handler.
func (m *MQTTSource) Run(ctx context.Context, sink imu.Sink) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		s, err := decodeSample(msg.Payload())
		if err != nil {
			logger.Debug("imu sample unmarshal error", "topic", msg.Topic(), "err", err)
			return
		}
		s.ReceivedAt = time.Now()
		sink.Update(s)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(m.Broker).
		SetClientID(m.ClientID).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(c mqtt.Client) {
			if token := c.Subscribe(m.Topic, 0, handler); token.Wait() && token.Error() != nil {
				logger.Error("imu subscribe failed", "topic", m.Topic, "err", token.Error())
				return
			}
			logger.Info("subscribed to imu samples", "topic", m.Topic)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			sink.Disconnect(fmt.Errorf("mqtt connection lost: %w", err))
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect %s: %w", m.Broker, token.Error())
	}
	logger.Info("connected to MQTT broker", "broker", m.Broker)

	<-ctx.Done()
	client.Disconnect(250)
	return nil
}

func decodeSample(payload []byte) (imu.Sample, error) {
	var s imu.Sample
	if err := json.Unmarshal(payload, &s); err != nil {
		return imu.Sample{}, err
	}
	if s.Orientation == (imu.Quaternion{}) {
		return imu.Sample{}, errors.New("sample has no orientation")
	}
	return s, nil
}
