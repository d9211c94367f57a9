// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mqttbus

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/virtual_trackers/internal/orientation"
)

type sample struct {
	pose orientation.Pose
	at   time.Time
}

// Source is an orientation.Source fed by raw pose topics. A device whose
// last sample is older than the stale limit reads as absent.
type Source struct {
	prefix     string
	staleAfter time.Duration
	now        func() time.Time

	mu    sync.RWMutex
	poses map[uint32]sample
}

var _ orientation.Source = (*Source)(nil)

func NewSource(prefix string, staleAfter time.Duration) *Source {
	return &Source{
		prefix:     prefix,
		staleAfter: staleAfter,
		now:        time.Now,
		poses:      make(map[uint32]sample),
	}
}

// Subscribe starts receiving raw poses on client.
func (s *Source) Subscribe(client mqtt.Client) error {
	filter := RawFilter(s.prefix)
	token := client.Subscribe(filter, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.Ingest(msg.Topic(), msg.Payload()); err != nil {
			log.Debug().Err(err).Msg("raw pose dropped")
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", filter, err)
	}
	log.Info().Str("filter", filter).Msg("subscribed to raw poses")
	return nil
}

// Ingest decodes one raw message and stores it for its device index.
func (s *Source) Ingest(topic string, payload []byte) error {
	index, euler, err := parseRawTopic(s.prefix, topic)
	if err != nil {
		return err
	}

	now := s.now()

	if !euler {
		var p orientation.Pose
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode raw pose for %d: %w", index, err)
		}
		s.mu.Lock()
		s.poses[index] = sample{pose: p, at: now}
		s.mu.Unlock()
		return nil
	}

	var e orientation.Euler
	if err := json.Unmarshal(payload, &e); err != nil {
		return fmt.Errorf("decode euler sample for %d: %w", index, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := orientation.NewPose()
	if prev, ok := s.poses[index]; ok {
		p.Position = prev.pose.Position
	}
	p.Rotation = e.Quaternion()
	p.Valid = true
	p.Result = orientation.ResultFallbackRotationOnly
	s.poses[index] = sample{pose: p, at: now}
	return nil
}

func (s *Source) Pose(index uint32) orientation.Pose {
	s.mu.RLock()
	smp, ok := s.poses[index]
	s.mu.RUnlock()

	if !ok || (s.staleAfter > 0 && s.now().Sub(smp.at) > s.staleAfter) {
		p := orientation.NewPose()
		p.Connected = false
		return p
	}
	return smp.pose
}
