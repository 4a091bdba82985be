// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/alsprox/internal/proximity"
	"github.com/relabs-tech/alsprox/internal/sensors"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string

	// Topics
	TopicLux      string
	TopicDistance string

	// Sensor hardware
	I2CBus         string // "" selects the first bus
	I2CAddr        uint16
	IRQPin         string // "" polls instead of waiting for edges
	IRQEdgeTimeout int    // milliseconds
	PollInterval   int    // milliseconds, used when IRQPin is empty

	// Sensor tuning (0 keeps the driver default)
	ALSTime              uint16 // ms, 50..650
	ALSGain              byte   // 0=1x, 1=8x, 2=16x, 3=120x
	ScaleFactor          uint16
	CalibrateTarget      uint32
	ProxThresholdHi      uint16
	ProxThresholdLo      uint16
	ProxPulseCount       byte
	ProxGain             byte
	ProxSaturationPolicy proximity.SaturationPolicy

	// Calibration
	CalibrationSampleInterval int // milliseconds
	CalibrationDir            string
	CalibrationFile           string // thresholds applied at startup, optional

	// Timing
	ConsoleLogInterval int // milliseconds

	// Web Server
	WebServerPort     int
	RegisterDebugPort int

	// Display
	DisplayUpdateInterval int // milliseconds; the panel is fixed at 0x3C
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the values used for keys missing from the file.
func Default() *Config {
	return &Config{
		MQTTClientIDProducer:      "alsprox-producer",
		MQTTClientIDConsole:       "alsprox-console",
		MQTTClientIDWeb:           "alsprox-web",
		MQTTClientIDDisplay:       "alsprox-display",
		TopicLux:                  "alsprox/lux",
		TopicDistance:             "alsprox/distance",
		I2CAddr:                   sensors.DefaultAddress,
		IRQEdgeTimeout:            500,
		PollInterval:              200,
		ProxSaturationPolicy:      proximity.SaturationFail,
		CalibrationSampleInterval: 100,
		CalibrationDir:            "calibration",
		ConsoleLogInterval:        1000,
		WebServerPort:             8080,
		RegisterDebugPort:         8081,
		DisplayUpdateInterval:     500,
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

// Parse reads KEY=VALUE lines from r on top of Default.
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

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseRange(key, value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, v)
	}
	return v, nil
}

func parseAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return uint16(addr), nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	var v int
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_LUX":
		c.TopicLux = value
	case "TOPIC_DISTANCE":
		c.TopicDistance = value

	// Sensor hardware
	case "I2C_BUS":
		c.I2CBus = value
	case "I2C_ADDR":
		c.I2CAddr, err = parseAddr(key, value)
	case "IRQ_PIN":
		c.IRQPin = value
	case "IRQ_EDGE_TIMEOUT":
		c.IRQEdgeTimeout, err = parseRange(key, value, 1, 60000)
	case "POLL_INTERVAL":
		c.PollInterval, err = parseRange(key, value, 1, 60000)

	// Sensor tuning
	case "ALS_TIME":
		if v, err = parseRange(key, value, sensors.MinALSTime, sensors.MaxALSTime); err == nil {
			c.ALSTime = uint16(v)
		}
	case "ALS_GAIN":
		if v, err = parseRange(key, value, 0, sensors.MaxGainIndex); err == nil {
			c.ALSGain = byte(v)
		}
	case "SCALE_FACTOR":
		if v, err = parseRange(key, value, 1, 0xFFFF); err == nil {
			c.ScaleFactor = uint16(v)
		}
	case "CALIBRATE_TARGET":
		t, perr := strconv.ParseUint(value, 10, 32)
		if perr != nil {
			return fmt.Errorf("invalid CALIBRATE_TARGET %q: %w", value, perr)
		}
		c.CalibrateTarget = uint32(t)
	case "PROX_THRESHOLD_HI":
		if v, err = parseRange(key, value, 1, 0xFFFF); err == nil {
			c.ProxThresholdHi = uint16(v)
		}
	case "PROX_THRESHOLD_LO":
		if v, err = parseRange(key, value, 0, 0xFFFE); err == nil {
			c.ProxThresholdLo = uint16(v)
		}
	case "PROX_PULSE_COUNT":
		if v, err = parseRange(key, value, 1, 255); err == nil {
			c.ProxPulseCount = byte(v)
		}
	case "PROX_GAIN":
		var g uint16
		if g, err = parseAddr(key, value); err == nil {
			if g > 0xFF {
				return fmt.Errorf("PROX_GAIN must fit one byte, got %#x", g)
			}
			c.ProxGain = byte(g)
		}
	case "PROX_SATURATION_POLICY":
		c.ProxSaturationPolicy, err = proximity.ParseSaturationPolicy(value)

	// Calibration
	case "CALIBRATION_SAMPLE_INTERVAL":
		c.CalibrationSampleInterval, err = parseRange(key, value, 1, 10000)
	case "CALIBRATION_DIR":
		c.CalibrationDir = value
	case "CALIBRATION_FILE":
		c.CalibrationFile = value

	// Timing
	case "CONSOLE_LOG_INTERVAL":
		c.ConsoleLogInterval, err = parseRange(key, value, 1, 3600000)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseRange(key, value, 1, 65535)
	case "REGISTER_DEBUG_PORT":
		c.RegisterDebugPort, err = parseRange(key, value, 1, 65535)

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseRange(key, value, 1, 60000)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicLux == "" || c.TopicDistance == "" {
		return fmt.Errorf("TOPIC_LUX and TOPIC_DISTANCE must not be empty")
	}
	if c.ProxThresholdHi != 0 && c.ProxThresholdLo != 0 && c.ProxThresholdHi <= c.ProxThresholdLo {
		return fmt.Errorf("PROX_THRESHOLD_HI (%d) must be greater than PROX_THRESHOLD_LO (%d)",
			c.ProxThresholdHi, c.ProxThresholdLo)
	}
	return nil
}

// SensorDefaults returns the driver's attach-time configuration with the
// tuning keys of this file applied.
func (c *Config) SensorDefaults() sensors.SensorConfig {
	s := sensors.DefaultSensorConfig()
	if c.ALSTime != 0 {
		s.ALSTime = c.ALSTime
	}
	if c.ALSGain != 0 {
		s.Gain = c.ALSGain
	}
	if c.ScaleFactor != 0 {
		s.ScaleFactor = c.ScaleFactor
	}
	if c.CalibrateTarget != 0 {
		s.CalibrateTarget = c.CalibrateTarget
	}
	if c.ProxThresholdHi != 0 {
		s.ProxThresholdHi = c.ProxThresholdHi
	}
	if c.ProxThresholdLo != 0 {
		s.ProxThresholdLo = c.ProxThresholdLo
	}
	if c.ProxPulseCount != 0 {
		s.ProxPulseCount = c.ProxPulseCount
	}
	if c.ProxGain != 0 {
		s.ProxGain = c.ProxGain
	}
	s.Clamp()
	return s
}

// Millis converts a millisecond config value to a Duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// InitGlobal initializes the global configuration from file. Only the
// first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
