// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package observability

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackers",
			Subsystem: "device",
			Name:      "ticks_total",
			Help:      "Update loop iterations per virtual device.",
		},
		[]string{"serial", "mode"},
	)
	published = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackers",
			Subsystem: "device",
			Name:      "published_total",
			Help:      "Poses published to the host, by validity.",
		},
		[]string{"serial", "valid"},
	)
	masked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackers",
			Subsystem: "device",
			Name:      "masked_total",
			Help:      "Invalid candidate poses replaced by the locked pose.",
		},
		[]string{"serial"},
	)
	activeDevices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trackers",
			Subsystem: "device",
			Name:      "active",
			Help:      "Virtual devices with a running update loop.",
		},
	)
	mqttPublishErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackers",
			Subsystem: "mqtt",
			Name:      "publish_errors_total",
			Help:      "Pose publishes the MQTT client rejected.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ticks, published, masked, activeDevices, mqttPublishErrors)
	})
}

// RecordTick counts one update loop iteration.
func RecordTick(serial, mode string, candidateValid, publishedValid bool) {
	RegisterMetrics()
	ticks.WithLabelValues(serial, mode).Inc()
	published.WithLabelValues(serial, strconv.FormatBool(publishedValid)).Inc()
	if publishedValid && !candidateValid {
		masked.WithLabelValues(serial).Inc()
	}
}

func DeviceActivated() {
	RegisterMetrics()
	activeDevices.Inc()
}

func DeviceDeactivated() {
	RegisterMetrics()
	activeDevices.Dec()
}

func RecordMQTTPublishError() {
	RegisterMetrics()
	mqttPublishErrors.Inc()
}
