// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trackers_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t,
		"# minimal",
		"MQTT_BROKER=tcp://localhost:1883",
		"SETTINGS_PATH=./settings.toml",
	)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "trackers", cfg.TopicPrefix)
	assert.Equal(t, 5*time.Millisecond, cfg.Tick())
	assert.Equal(t, 11*time.Millisecond, cfg.Frame())
	assert.Equal(t, 250*time.Millisecond, cfg.SettingsReload())
	assert.Equal(t, 500*time.Millisecond, cfg.StaleAfter())
	assert.Equal(t, uint32(1), cfg.FirstDeviceIndex)
	assert.Equal(t, 8080, cfg.WebServerPort)
	assert.True(t, strings.HasPrefix(cfg.MQTTClientIDDriver, "trackers-driver-"))
	assert.True(t, strings.HasPrefix(cfg.MQTTClientIDConsole, "trackers-console-"))
}

func TestLoad_AllKeys(t *testing.T) {
	path := writeConfig(t,
		"MQTT_BROKER = tcp://broker:1883",
		"MQTT_CLIENT_ID_DRIVER = driver-1",
		"MQTT_CLIENT_ID_CONSOLE = console-1",
		"MQTT_CLIENT_ID_MOCK = mock-1",
		"TOPIC_PREFIX = /vr/trackers/",
		"SETTINGS_PATH = /etc/trackers/settings.toml",
		"SETTINGS_RELOAD_INTERVAL = 100",
		"TICK_INTERVAL = 2",
		"FRAME_INTERVAL = 16",
		"RAW_POSE_STALE_AFTER = 250",
		"FIRST_DEVICE_INDEX = 8",
		"WEB_SERVER_PORT = 9090",
		"LOG_LEVEL = DEBUG",
	)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "driver-1", cfg.MQTTClientIDDriver)
	assert.Equal(t, "mock-1", cfg.MQTTClientIDMock)
	assert.Equal(t, "vr/trackers", cfg.TopicPrefix)
	assert.Equal(t, 2*time.Millisecond, cfg.Tick())
	assert.Equal(t, uint32(8), cfg.FirstDeviceIndex)
	assert.Equal(t, 9090, cfg.WebServerPort)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{"missing broker", []string{"SETTINGS_PATH=x"}, "MQTT_BROKER is required"},
		{"missing settings", []string{"MQTT_BROKER=tcp://b:1883"}, "SETTINGS_PATH is required"},
		{"unknown key", []string{"MQTT_BROKER=b", "SETTINGS_PATH=x", "IMU_GYRO_RANGE=1"}, "unknown config key"},
		{"not key value", []string{"MQTT_BROKER"}, "invalid config line 1"},
		{"bad tick", []string{"MQTT_BROKER=b", "SETTINGS_PATH=x", "TICK_INTERVAL=0"}, "TICK_INTERVAL must be positive"},
		{"anchor index", []string{"MQTT_BROKER=b", "SETTINGS_PATH=x", "FIRST_DEVICE_INDEX=0"}, "reserved for the anchor"},
		{"bad port", []string{"MQTT_BROKER=b", "SETTINGS_PATH=x", "WEB_SERVER_PORT=70000"}, "WEB_SERVER_PORT must be 0-65535"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.lines...))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRACKERS_MQTT_BROKER", "tcp://override:1883")
	t.Setenv("TRACKERS_TICK_INTERVAL", "9")

	path := writeConfig(t,
		"MQTT_BROKER=tcp://localhost:1883",
		"SETTINGS_PATH=./settings.toml",
		"TICK_INTERVAL=5",
		"FRAME_INTERVAL=20",
	)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://override:1883", cfg.MQTTBroker)
	assert.Equal(t, 9*time.Millisecond, cfg.Tick())
	assert.Equal(t, 20*time.Millisecond, cfg.Frame(), "fields without an env var keep the file value")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open config file")
}

func TestLoad_EnvOverridesAreNormalized(t *testing.T) {
	t.Setenv("TRACKERS_TOPIC_PREFIX", "/trackers/")
	t.Setenv("TRACKERS_LOG_LEVEL", "DEBUG")

	path := writeConfig(t,
		"MQTT_BROKER=tcp://localhost:1883",
		"SETTINGS_PATH=./settings.toml",
	)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "trackers", cfg.TopicPrefix)
	assert.Equal(t, "debug", cfg.LogLevel)
}
