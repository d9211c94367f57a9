// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/virtual_trackers/internal/config"
	"github.com/relabs-tech/virtual_trackers/internal/mqttbus"
	"github.com/relabs-tech/virtual_trackers/internal/orientation"
)

// RunMockAnchor publishes a moving anchor pose on the raw topic of index 0
// so the driver can run without a headset.
func RunMockAnchor(interval time.Duration, dropouts bool) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialized")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDMock)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Info().Str("broker", cfg.MQTTBroker).Bool("dropouts", dropouts).Msg("mock: connected, starting publish loop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := orientation.NewMockSource()
	src.Dropouts = dropouts
	publishAnchor(ctx, client, cfg.TopicPrefix, src, interval)
	return nil
}

// publishAnchor publishes src's anchor pose every interval until ctx is done.
func publishAnchor(ctx context.Context, client mqtt.Client, prefix string, src orientation.Source, interval time.Duration) {
	topic := mqttbus.RawTopic(prefix, orientation.AnchorIndex)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var n uint64
	for {
		select {
		case <-ctx.Done():
			log.Info().Uint64("published", n).Msg("mock: stopped")
			return
		case <-ticker.C:
		}

		pose := src.Pose(orientation.AnchorIndex)
		payload, err := json.Marshal(pose)
		if err != nil {
			log.Error().Err(err).Msg("mock: json marshal error")
			continue
		}

		if token := client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
			log.Warn().Err(token.Error()).Msg("mock: MQTT publish error")
			continue
		}
		n++
		if n%100 == 0 {
			log.Debug().Uint64("published", n).Bool("valid", pose.Valid).Msg("mock: anchor")
		}
	}
}
