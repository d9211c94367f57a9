// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/virtual_trackers/internal/config"
	"github.com/relabs-tech/virtual_trackers/internal/mqttbus"
	"github.com/relabs-tech/virtual_trackers/internal/orientation"
)

// RunConsoleMQTT prints every virtual tracker pose seen on the broker.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialized")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Info().Str("broker", cfg.MQTTBroker).Msg("console: connected to MQTT broker")

	filter := mqttbus.PoseFilter(cfg.TopicPrefix)
	token := client.Subscribe(filter, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var m mqttbus.PoseMessage
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic()).Msg("console: pose unmarshal error")
			return
		}
		printPose(os.Stdout, m)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Info().Str("filter", filter).Msg("console: subscribed")

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("console: shutting down")
	client.Disconnect(250)
	return nil
}

func printPose(w io.Writer, m mqttbus.PoseMessage) {
	e := orientation.EulerFromQuaternion(m.Pose.Rotation)
	fmt.Fprintf(w,
		"[%-24s #%-3d] valid=%-5t %-22s pos=(%7.3f %7.3f %7.3f)  ROLL=%7.2f PITCH=%7.2f YAW=%7.2f\n",
		m.Serial, m.Index, m.Pose.Valid, m.Pose.Result,
		m.Pose.Position.X, m.Pose.Position.Y, m.Pose.Position.Z,
		e.Roll, e.Pitch, e.Yaw,
	)
}
