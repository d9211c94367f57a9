// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package driver

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/virtual_trackers/internal/orientation"
	"github.com/relabs-tech/virtual_trackers/internal/settings"
	"github.com/relabs-tech/virtual_trackers/internal/tracker"
	"github.com/relabs-tech/virtual_trackers/internal/vr"
)

const (
	// FirstLocalID is the local id of the first virtual device.
	FirstLocalID = 10
	// MaxDevices bounds the configured device count.
	MaxDevices = 64
)

// ProviderOptions are the collaborators shared by every device.
type ProviderOptions struct {
	Store        settings.Store
	Source       orientation.Source
	Host         vr.Host
	TickInterval time.Duration
}

// Provider owns the virtual devices for the lifetime of a driver session.
type Provider struct {
	opts ProviderOptions

	mu      sync.RWMutex
	devices []*tracker.Device
}

func NewProvider(opts ProviderOptions) *Provider {
	return &Provider{opts: opts}
}

// Init reads the device count from settings and announces that many
// devices to the host. A missing or unreadable count means zero devices.
// It returns the number of devices created.
func (p *Provider) Init() int {
	n, err := p.opts.Store.Int32(settings.SectionDriver, settings.KeyTrackerCount)
	if err != nil {
		log.Warn().Err(err).Msg("provider: no usable tracker count, creating none")
		n = 0
	}
	if n < 0 {
		n = 0
	}
	if n > MaxDevices {
		log.Warn().Int32("requested", n).Int("max", MaxDevices).Msg("provider: tracker count capped")
		n = MaxDevices
	}
	log.Info().Int32("count", n).Msg("provider: creating virtual trackers")

	for i := 0; i < int(n); i++ {
		dev := tracker.New(FirstLocalID+i, tracker.Options{
			Store:        p.opts.Store,
			Source:       p.opts.Source,
			Sink:         p.opts.Host,
			TickInterval: p.opts.TickInterval,
		})
		p.mu.Lock()
		p.devices = append(p.devices, dev)
		p.mu.Unlock()
		if !p.opts.Host.TrackedDeviceAdded(dev.Serial(), vr.ClassGenericTracker, dev) {
			log.Warn().Str("serial", dev.Serial()).Msg("provider: host rejected device")
		}
	}
	return len(p.Devices())
}

// Devices returns the devices in creation order.
func (p *Provider) Devices() []*tracker.Device {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*tracker.Device(nil), p.devices...)
}

// RunFrame forwards a host frame to every device, then delivers the
// frame's pending host events.
func (p *Provider) RunFrame() {
	devices := p.Devices()
	for _, d := range devices {
		d.RunFrame()
	}
	for {
		ev, ok := p.opts.Host.PollNextEvent()
		if !ok {
			return
		}
		for _, d := range devices {
			d.ProcessEvent(ev)
		}
	}
}

func (p *Provider) EnterStandby() {
	log.Info().Msg("provider: entering standby")
}

func (p *Provider) LeaveStandby() {
	log.Info().Msg("provider: leaving standby")
}

// Cleanup destroys the devices in reverse creation order. Each device's
// update loop is stopped before it is released.
func (p *Provider) Cleanup() {
	p.mu.Lock()
	devices := p.devices
	p.devices = nil
	p.mu.Unlock()

	for i := len(devices) - 1; i >= 0; i-- {
		devices[i].Deactivate()
		devices[i] = nil
	}
	log.Info().Msg("provider: cleaned up")
}
