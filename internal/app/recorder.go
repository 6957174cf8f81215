// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/frame_recorder/internal/config"
	"github.com/relabs-tech/frame_recorder/internal/frame"
	"github.com/relabs-tech/frame_recorder/internal/imu"
	"github.com/relabs-tech/frame_recorder/internal/sensors"
	"github.com/relabs-tech/frame_recorder/internal/session"
	"github.com/relabs-tech/frame_recorder/internal/store"
)

// shutdownTimeout bounds how long in-flight flushes may take at exit.
const shutdownTimeout = 2 * time.Minute

// Recorder is the assembled recording process.
type Recorder struct {
	cfg    *config.Config
	logger *slog.Logger

	Hold       *imu.HoldBuffer
	Depth      *session.Depth
	Writer     *store.Writer
	Catalog    *store.Catalog
	Controller *session.Controller

	imuAdapter sensors.Adapter
}

// NewRecorder builds every component named by cfg. The IMU adapter is not
// started until Run.
func NewRecorder(cfg *config.Config, logger *slog.Logger) (*Recorder, error) {
	src, err := newFrameSource(cfg)
	if err != nil {
		return nil, err
	}
	adapter, err := newIMUAdapter(cfg, cfg.MQTTClientIDRecorder, logger)
	if err != nil {
		return nil, err
	}
	enc, err := store.NewEncoder(cfg.ImageFormat)
	if err != nil {
		return nil, err
	}

	w := store.NewWriter(cfg.OutputDir, enc, cfg.FlushWorkers, logger)
	if err := w.Prepare(); err != nil {
		return nil, fmt.Errorf("prepare output dir %s: %w", cfg.OutputDir, err)
	}

	var cat *store.Catalog
	if cfg.CatalogPath != "" {
		cat, err = store.OpenCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
	}

	hold := imu.NewHoldBuffer(time.Duration(cfg.IMUStaleAfter)*time.Millisecond, logger)
	depth := session.NewDepth(cfg.ScanDepth)
	ctrl := session.NewController(src, hold, depth, w, session.ControllerOptions{
		Session: session.Options{
			Dimensions:         frame.Dimensions{Width: cfg.FrameWidth, Height: cfg.FrameHeight},
			MaxTransientFaults: cfg.MaxTransientFaults,
			SoftRecordLimit:    cfg.SoftRecordLimit,
		},
		MaxConcurrentFlushes: cfg.MaxConcurrentFlushes,
	}, logger)

	return &Recorder{
		cfg:        cfg,
		logger:     logger,
		Hold:       hold,
		Depth:      depth,
		Writer:     w,
		Catalog:    cat,
		Controller: ctrl,
		imuAdapter: adapter,
	}, nil
}

func newFrameSource(cfg *config.Config) (frame.Source, error) {
	dims := frame.Dimensions{Width: cfg.FrameWidth, Height: cfg.FrameHeight}
	switch cfg.FrameSource {
	case "mock":
		return frame.NewMockSource(dims, cfg.FrameRate), nil
	case "screen":
		return frame.NewScreenSource(image.Pt(cfg.ScreenOffsetX, cfg.ScreenOffsetY), dims, cfg.FrameRate)
	default:
		return nil, fmt.Errorf("unknown frame source %q", cfg.FrameSource)
	}
}

// newIMUAdapter returns nil for IMU_SOURCE=none.
func newIMUAdapter(cfg *config.Config, clientID string, logger *slog.Logger) (sensors.Adapter, error) {
	interval := time.Duration(cfg.IMUSampleInterval) * time.Millisecond
	switch cfg.IMUSource {
	case "none":
		return nil, nil
	case "mock":
		return &sensors.Mock{Interval: interval}, nil
	case "mqtt":
		return &sensors.MQTTSource{
			Broker:   cfg.MQTTBroker,
			ClientID: clientID,
			Topic:    cfg.TopicIMUSample,
			Logger:   logger,
		}, nil
	case "witmotion":
		return &sensors.WitMotion{PortName: cfg.IMUSerialPort, BaudRate: uint(cfg.IMUBaudRate), Logger: logger}, nil
	case "mpu9250":
		dev, err := sensors.NewMPU9250Source(cfg.IMUSPIDevice, cfg.IMUCSPin, logger)
		if err != nil {
			return nil, err
		}
		return &sensors.Poller{Src: dev, FullScaleG: dev.FullScaleG(), Interval: interval, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown IMU source %q", cfg.IMUSource)
	}
}

// Run starts the IMU adapter, event consumers and web server, optionally
// starts a recording, and blocks until ctx is cancelled. On return any active
// recording has been stopped and every flush has finished or timed out.
func (r *Recorder) Run(ctx context.Context, autoStart bool) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.imuAdapter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.imuAdapter.Run(runCtx, r.Hold); err != nil {
				r.logger.Error("imu adapter stopped", "source", r.cfg.IMUSource, "err", err)
				r.Hold.Disconnect(err)
			}
		}()
	} else {
		r.logger.Warn("no IMU configured, records carry zero samples")
	}

	if r.Catalog != nil {
		stop := startPump(r.Controller, "catalog", r.logger, (&catalogUpdater{cat: r.Catalog, logger: r.logger}).handle)
		defer stop()
	}
	if r.cfg.TopicRecorderEvents != "" {
		stop, err := r.startEventEmitter()
		if err != nil {
			r.logger.Warn("event publishing disabled", "err", err)
		} else {
			defer stop()
		}
	}

	if r.cfg.WebServerPort > 0 {
		web := NewWebServer(r.Controller, r.Depth, r.Catalog, r.logger)
		addr := ":" + strconv.Itoa(r.cfg.WebServerPort)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := web.ListenAndServe(runCtx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.logger.Error("web server stopped", "err", err)
			}
		}()
	}

	if autoStart {
		if _, err := r.Controller.Start(); err != nil {
			return err
		}
	}

	<-ctx.Done()
	r.logger.Info("shutting down, waiting for flushes")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := r.Controller.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("flushes did not finish: %w", err)
	}
	return nil
}

func (r *Recorder) startEventEmitter() (func(), error) {
	opts := mqtt.NewClientOptions().
		AddBroker(r.cfg.MQTTBroker).
		SetClientID(r.cfg.MQTTClientIDRecorder + "-events").
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", r.cfg.MQTTBroker, token.Error())
	}
	r.logger.Info("publishing recorder events", "broker", r.cfg.MQTTBroker, "topic", r.cfg.TopicRecorderEvents)
	em := &mqttEmitter{client: client, topic: r.cfg.TopicRecorderEvents, logger: r.logger}
	stop := startPump(r.Controller, "mqtt", r.logger, em.handle)
	return func() {
		stop()
		client.Disconnect(250)
	}, nil
}

// Close releases the catalog.
func (r *Recorder) Close() error {
	if r.Catalog != nil {
		return r.Catalog.Close()
	}
	return nil
}
