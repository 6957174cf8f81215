// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// Output
	OutputDir   string
	ImageFormat string // png, bmp or tiff
	CatalogPath string // defaults to OUTPUT_DIR/catalog.sqlite

	// Frame capture
	FrameSource        string // mock or screen
	FrameWidth         int
	FrameHeight        int
	FrameRate          int // frames per second the source is paced at
	ScreenOffsetX      int
	ScreenOffsetY      int
	MaxTransientFaults int // 0 = unlimited

	// IMU
	IMUSource         string // none, mock, mqtt, witmotion or mpu9250
	IMUSerialPort     string
	IMUBaudRate       int
	IMUSPIDevice      string
	IMUCSPin          string
	IMUSampleInterval int // milliseconds
	IMUStaleAfter     int // milliseconds, 0 = never

	// MQTT
	MQTTBroker           string
	MQTTClientIDRecorder string
	MQTTClientIDProducer string

	// Topics
	TopicIMUSample      string
	TopicRecorderEvents string // empty disables event publishing

	// Recording
	ScanDepth            float64 // mm
	FlushWorkers         int
	MaxConcurrentFlushes int
	SoftRecordLimit      int // 0 = no warning

	// Web Server
	WebServerPort int // 0 disables

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // text or json
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: set once by InitGlobal, read through Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

var witMotionBaudRates = map[int]bool{
	4800: true, 9600: true, 19200: true, 38400: true, 57600: true, 115200: true, 230400: true,
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	return &Config{
		OutputDir:            "./Generated",
		ImageFormat:          "png",
		FrameSource:          "mock",
		FrameWidth:           640,
		FrameHeight:          480,
		FrameRate:            100,
		IMUSource:            "none",
		IMUSerialPort:        "/dev/ttyUSB0",
		IMUBaudRate:          115200,
		IMUSPIDevice:         "/dev/spidev0.0",
		IMUCSPin:             "8",
		IMUSampleInterval:    10,
		MQTTBroker:           "tcp://localhost:1883",
		MQTTClientIDRecorder: "frame-recorder",
		MQTTClientIDProducer: "frame-recorder-imu-producer",
		TopicIMUSample:       "recorder/imu",
		TopicRecorderEvents:  "recorder/events",
		ScanDepth:            150,
		FlushWorkers:         4,
		MaxConcurrentFlushes: 2,
		WebServerPort:        8080,
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines from r on top of Default(). Blank lines and
// lines starting with # are ignored; unknown keys are errors.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}
		if err := cfg.setValue(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if cfg.CatalogPath == "" {
		cfg.CatalogPath = filepath.Join(cfg.OutputDir, "catalog.sqlite")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Output
	case "OUTPUT_DIR":
		c.OutputDir = value
	case "IMAGE_FORMAT":
		c.ImageFormat = strings.ToLower(value)
	case "CATALOG_PATH":
		c.CatalogPath = value

	// Frame capture
	case "FRAME_SOURCE":
		c.FrameSource = value
	case "FRAME_WIDTH":
		c.FrameWidth, err = parseInt(key, value)
	case "FRAME_HEIGHT":
		c.FrameHeight, err = parseInt(key, value)
	case "FRAME_RATE":
		c.FrameRate, err = parseInt(key, value)
	case "SCREEN_OFFSET_X":
		c.ScreenOffsetX, err = parseInt(key, value)
	case "SCREEN_OFFSET_Y":
		c.ScreenOffsetY, err = parseInt(key, value)
	case "MAX_TRANSIENT_FAULTS":
		c.MaxTransientFaults, err = parseInt(key, value)

	// IMU
	case "IMU_SOURCE":
		c.IMUSource = value
	case "IMU_SERIAL_PORT":
		c.IMUSerialPort = value
	case "IMU_BAUD_RATE":
		c.IMUBaudRate, err = parseInt(key, value)
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_SAMPLE_INTERVAL":
		c.IMUSampleInterval, err = parseInt(key, value)
	case "IMU_STALE_AFTER":
		c.IMUStaleAfter, err = parseInt(key, value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_RECORDER":
		c.MQTTClientIDRecorder = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value

	// Topics
	case "TOPIC_IMU_SAMPLE":
		c.TopicIMUSample = value
	case "TOPIC_RECORDER_EVENTS":
		c.TopicRecorderEvents = value

	// Recording
	case "SCAN_DEPTH":
		depth, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return fmt.Errorf("invalid SCAN_DEPTH %q: %w", value, perr)
		}
		c.ScanDepth = depth
	case "FLUSH_WORKERS":
		c.FlushWorkers, err = parseInt(key, value)
	case "MAX_CONCURRENT_FLUSHES":
		c.MaxConcurrentFlushes, err = parseInt(key, value)
	case "SOFT_RECORD_LIMIT":
		c.SoftRecordLimit, err = parseInt(key, value)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)
	case "LOG_FORMAT":
		c.LogFormat = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return err
}

// validate checks value ranges and enumerations.
func (c *Config) validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}
	switch c.ImageFormat {
	case "png", "bmp", "tiff":
	default:
		return fmt.Errorf("IMAGE_FORMAT must be png, bmp or tiff, got %q", c.ImageFormat)
	}
	switch c.FrameSource {
	case "mock", "screen":
	default:
		return fmt.Errorf("FRAME_SOURCE must be mock or screen, got %q", c.FrameSource)
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("FRAME_WIDTH and FRAME_HEIGHT must be positive, got %dx%d", c.FrameWidth, c.FrameHeight)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("FRAME_RATE must be positive, got %d", c.FrameRate)
	}
	if c.MaxTransientFaults < 0 {
		return fmt.Errorf("MAX_TRANSIENT_FAULTS must not be negative, got %d", c.MaxTransientFaults)
	}

	switch c.IMUSource {
	case "none", "mock":
	case "mqtt":
		if c.MQTTBroker == "" || c.TopicIMUSample == "" {
			return fmt.Errorf("IMU_SOURCE=mqtt requires MQTT_BROKER and TOPIC_IMU_SAMPLE")
		}
	case "witmotion":
		if c.IMUSerialPort == "" {
			return fmt.Errorf("IMU_SOURCE=witmotion requires IMU_SERIAL_PORT")
		}
		if !witMotionBaudRates[c.IMUBaudRate] {
			return fmt.Errorf("IMU_BAUD_RATE %d is not supported by WitMotion devices", c.IMUBaudRate)
		}
	case "mpu9250":
		if c.IMUSPIDevice == "" || c.IMUCSPin == "" {
			return fmt.Errorf("IMU_SOURCE=mpu9250 requires IMU_SPI_DEVICE and IMU_CS_PIN")
		}
	default:
		return fmt.Errorf("IMU_SOURCE must be none, mock, mqtt, witmotion or mpu9250, got %q", c.IMUSource)
	}
	if c.IMUSampleInterval <= 0 {
		return fmt.Errorf("IMU_SAMPLE_INTERVAL must be positive, got %d", c.IMUSampleInterval)
	}
	if c.IMUStaleAfter < 0 {
		return fmt.Errorf("IMU_STALE_AFTER must not be negative, got %d", c.IMUStaleAfter)
	}

	if c.ScanDepth <= 0 {
		return fmt.Errorf("SCAN_DEPTH must be positive, got %v", c.ScanDepth)
	}
	if c.FlushWorkers <= 0 {
		return fmt.Errorf("FLUSH_WORKERS must be positive, got %d", c.FlushWorkers)
	}
	if c.MaxConcurrentFlushes <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_FLUSHES must be positive, got %d", c.MaxConcurrentFlushes)
	}
	if c.SoftRecordLimit < 0 {
		return fmt.Errorf("SOFT_RECORD_LIMIT must not be negative, got %d", c.SoftRecordLimit)
	}
	if c.WebServerPort < 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 0-65535, got %d", c.WebServerPort)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
