// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package driver

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/virtual_trackers/internal/observability"
	"github.com/relabs-tech/virtual_trackers/internal/orientation"
	"github.com/relabs-tech/virtual_trackers/internal/vr"
)

// Publisher delivers published poses outside the process.
type Publisher interface {
	PublishPose(serial string, index uint32, pose orientation.Pose) error
}

// DefaultFrameInterval is the host frame period.
const DefaultFrameInterval = 11 * time.Millisecond

const eventQueueSize = 64

type registration struct {
	serial string
	class  vr.DeviceClass
	dev    vr.TrackedDevice
}

// Published is the last pose the host accepted for a device.
type Published struct {
	Serial string           `json:"serial"`
	Index  uint32           `json:"index"`
	Pose   orientation.Pose `json:"pose"`
	At     time.Time        `json:"at"`
}

// Runtime is an in-process host: it assigns device indices, activates
// devices, relays their poses to a Publisher and runs the frame loop.
type Runtime struct {
	pub  Publisher
	next uint32

	mu      sync.RWMutex
	devices map[uint32]registration
	order   []uint32

	lastMu sync.RWMutex
	last   map[uint32]Published

	events chan vr.Event
}

var _ vr.Host = (*Runtime)(nil)

// NewRuntime creates a host that assigns indices starting at firstIndex.
// pub may be nil.
func NewRuntime(pub Publisher, firstIndex uint32) *Runtime {
	if firstIndex == orientation.AnchorIndex {
		firstIndex = orientation.AnchorIndex + 1
	}
	return &Runtime{
		pub:     pub,
		next:    firstIndex,
		devices: make(map[uint32]registration),
		last:    make(map[uint32]Published),
		events:  make(chan vr.Event, eventQueueSize),
	}
}

// TrackedDeviceAdded assigns the next index to dev and activates it.
func (r *Runtime) TrackedDeviceAdded(serial string, class vr.DeviceClass, dev vr.TrackedDevice) bool {
	r.mu.Lock()
	index := r.next
	r.next++
	r.devices[index] = registration{serial: serial, class: class, dev: dev}
	r.order = append(r.order, index)
	r.mu.Unlock()

	if err := dev.Activate(index); err != nil {
		log.Error().Err(err).Str("serial", serial).Uint32("index", index).Msg("runtime: activation failed")
		r.unregister(index)
		return false
	}

	log.Info().Str("serial", serial).Str("class", class.String()).Uint32("index", index).Msg("runtime: device added")
	r.QueueEvent(vr.Event{Type: vr.EventTrackedDeviceActivated, DeviceIndex: index})
	return true
}

func (r *Runtime) unregister(index uint32) {
	r.mu.Lock()
	delete(r.devices, index)
	for i, idx := range r.order {
		if idx == index {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.lastMu.Lock()
	delete(r.last, index)
	r.lastMu.Unlock()
}

// TrackedDevicePoseUpdated accepts a pose for a registered index. Poses
// for unknown indices are dropped.
func (r *Runtime) TrackedDevicePoseUpdated(index uint32, pose orientation.Pose) {
	r.mu.RLock()
	reg, ok := r.devices[index]
	r.mu.RUnlock()
	if !ok {
		return
	}

	r.lastMu.Lock()
	r.last[index] = Published{Serial: reg.serial, Index: index, Pose: pose, At: time.Now()}
	r.lastMu.Unlock()

	if r.pub == nil {
		return
	}
	if err := r.pub.PublishPose(reg.serial, index, pose); err != nil {
		observability.RecordMQTTPublishError()
		log.Debug().Err(err).Str("serial", reg.serial).Msg("runtime: publish failed")
	}
}

// QueueEvent adds an event for the next frame. It is dropped if the queue is full.
func (r *Runtime) QueueEvent(ev vr.Event) {
	select {
	case r.events <- ev:
	default:
		log.Warn().Int("type", int(ev.Type)).Msg("runtime: event queue full, dropping event")
	}
}

func (r *Runtime) PollNextEvent() (vr.Event, bool) {
	select {
	case ev := <-r.events:
		return ev, true
	default:
		return vr.Event{}, false
	}
}

// LastPublished returns the most recent pose accepted for each device,
// ordered by index.
func (r *Runtime) LastPublished() []Published {
	r.mu.RLock()
	order := append([]uint32(nil), r.order...)
	r.mu.RUnlock()

	r.lastMu.RLock()
	defer r.lastMu.RUnlock()

	out := make([]Published, 0, len(order))
	for _, idx := range order {
		if p, ok := r.last[idx]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Device returns the device registered at index.
func (r *Runtime) Device(index uint32) (vr.TrackedDevice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.devices[index]
	return reg.dev, ok
}

// Shutdown deactivates every registered device in reverse order and
// unregisters it.
func (r *Runtime) Shutdown() {
	r.mu.RLock()
	order := append([]uint32(nil), r.order...)
	r.mu.RUnlock()

	for i := len(order) - 1; i >= 0; i-- {
		idx := order[i]
		if dev, ok := r.Device(idx); ok {
			dev.Deactivate()
		}
		r.unregister(idx)
	}
}

// Run drives p.RunFrame every interval until ctx is done, then deactivates
// all devices and cleans up the provider.
func (r *Runtime) Run(ctx context.Context, p *Provider, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("runtime: shutting down")
			r.Shutdown()
			p.Cleanup()
			return
		case <-ticker.C:
			p.RunFrame()
		}
	}
}
