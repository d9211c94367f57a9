// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mqttbus

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/virtual_trackers/internal/orientation"
)

// PoseMessage is the payload published for every virtual device pose.
type PoseMessage struct {
	Serial string           `json:"serial"`
	Index  uint32           `json:"index"`
	Pose   orientation.Pose `json:"pose"`
	Time   time.Time        `json:"time"`
}

// Sink publishes virtual device poses to MQTT.
type Sink struct {
	client mqtt.Client
	prefix string
}

func NewSink(client mqtt.Client, prefix string) *Sink {
	return &Sink{client: client, prefix: prefix}
}

// PublishPose publishes without waiting for the broker. Only an error that
// is already known when the call returns is reported.
func (s *Sink) PublishPose(serial string, index uint32, pose orientation.Pose) error {
	payload, err := json.Marshal(PoseMessage{
		Serial: serial,
		Index:  index,
		Pose:   pose,
		Time:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal pose for %s: %w", serial, err)
	}

	token := s.client.Publish(PoseTopic(s.prefix, serial), 0, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish pose for %s: %w", serial, err)
		}
	default:
	}
	return nil
}
