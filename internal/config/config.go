// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
)

// EnvPrefix prefixes the environment variables that override file values.
const EnvPrefix = "TRACKERS_"

// Config holds all process configuration values. Per-device settings live
// in the settings store, not here.
type Config struct {
	// MQTT
	MQTTBroker          string `env:"MQTT_BROKER"`
	MQTTClientIDDriver  string `env:"MQTT_CLIENT_ID_DRIVER"`
	MQTTClientIDConsole string `env:"MQTT_CLIENT_ID_CONSOLE"`
	MQTTClientIDMock    string `env:"MQTT_CLIENT_ID_MOCK"`
	TopicPrefix         string `env:"TOPIC_PREFIX"`

	// Settings store
	SettingsPath           string `env:"SETTINGS_PATH"`
	SettingsReloadInterval int    `env:"SETTINGS_RELOAD_INTERVAL"` // milliseconds

	// Timing
	TickInterval      int `env:"TICK_INTERVAL"`        // milliseconds
	FrameInterval     int `env:"FRAME_INTERVAL"`       // milliseconds
	RawPoseStaleAfter int `env:"RAW_POSE_STALE_AFTER"` // milliseconds

	// Host
	FirstDeviceIndex uint32 `env:"FIRST_DEVICE_INDEX"`

	// Web Server
	WebServerPort int `env:"WEB_SERVER_PORT"`

	LogLevel string `env:"LOG_LEVEL"`
}

// Package-level singleton: InitGlobal sets it once, Get reads it.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

func defaults() *Config {
	return &Config{
		TopicPrefix:            "trackers",
		SettingsReloadInterval: 250,
		TickInterval:           5,
		FrameInterval:          11,
		RawPoseStaleAfter:      500,
		FirstDeviceIndex:       1,
		WebServerPort:          8080,
		LogLevel:               "info",
	}
}

// Load reads the configuration file, applies environment overrides and
// returns a validated Config.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
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

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.fillClientIDs()

	return cfg, nil
}

func positiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_DRIVER":
		c.MQTTClientIDDriver = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_MOCK":
		c.MQTTClientIDMock = value
	case "TOPIC_PREFIX":
		c.TopicPrefix = strings.Trim(value, "/")

	// Settings store
	case "SETTINGS_PATH":
		c.SettingsPath = value
	case "SETTINGS_RELOAD_INTERVAL":
		c.SettingsReloadInterval, err = positiveInt(key, value)

	// Timing
	case "TICK_INTERVAL":
		c.TickInterval, err = positiveInt(key, value)
	case "FRAME_INTERVAL":
		c.FrameInterval, err = positiveInt(key, value)
	case "RAW_POSE_STALE_AFTER":
		c.RawPoseStaleAfter, err = positiveInt(key, value)

	// Host
	case "FIRST_DEVICE_INDEX":
		idx, perr := strconv.ParseUint(value, 10, 32)
		if perr != nil {
			return fmt.Errorf("invalid FIRST_DEVICE_INDEX %q: %w", value, perr)
		}
		if idx == 0 {
			return fmt.Errorf("FIRST_DEVICE_INDEX must not be 0 (reserved for the anchor)")
		}
		c.FirstDeviceIndex = uint32(idx)

	// Web Server
	case "WEB_SERVER_PORT":
		port, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, perr)
		}
		if port < 0 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 0-65535, got %d", port)
		}
		c.WebServerPort = port

	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// normalize applies the per-key cleanup of setValue to values that
// arrived through the environment.
func (c *Config) normalize() {
	c.TopicPrefix = strings.Trim(c.TopicPrefix, "/")
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.SettingsPath == "" {
		return fmt.Errorf("SETTINGS_PATH is required")
	}
	if c.TopicPrefix == "" {
		return fmt.Errorf("TOPIC_PREFIX must not be empty")
	}
	if c.TickInterval <= 0 || c.FrameInterval <= 0 || c.SettingsReloadInterval <= 0 || c.RawPoseStaleAfter <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	if c.FirstDeviceIndex == 0 {
		return fmt.Errorf("FIRST_DEVICE_INDEX must not be 0 (reserved for the anchor)")
	}
	return nil
}

// fillClientIDs gives every unset MQTT client id a unique value so that
// several instances can share a broker.
func (c *Config) fillClientIDs() {
	suffix := uuid.NewString()[:8]
	if c.MQTTClientIDDriver == "" {
		c.MQTTClientIDDriver = "trackers-driver-" + suffix
	}
	if c.MQTTClientIDConsole == "" {
		c.MQTTClientIDConsole = "trackers-console-" + suffix
	}
	if c.MQTTClientIDMock == "" {
		c.MQTTClientIDMock = "trackers-mock-" + suffix
	}
}

// Tick returns the device update period.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.TickInterval) * time.Millisecond
}

// Frame returns the host frame period.
func (c *Config) Frame() time.Duration {
	return time.Duration(c.FrameInterval) * time.Millisecond
}

// SettingsReload returns the settings file poll period.
func (c *Config) SettingsReload() time.Duration {
	return time.Duration(c.SettingsReloadInterval) * time.Millisecond
}

// StaleAfter returns the age at which a raw pose stops being trusted.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.RawPoseStaleAfter) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
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
