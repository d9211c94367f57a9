// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/virtual_trackers/internal/observability"
	"github.com/relabs-tech/virtual_trackers/internal/orientation"
	"github.com/relabs-tech/virtual_trackers/internal/settings"
	"github.com/relabs-tech/virtual_trackers/internal/vr"
)

// ModelNumber is the model reported by every virtual device.
const ModelNumber = "MyTrackerModelNumber"

// DefaultTickInterval is the update loop period.
const DefaultTickInterval = 5 * time.Millisecond

var (
	// ErrInvalidIndex is returned when the host activates with the invalid index.
	ErrInvalidIndex = errors.New("invalid device index")
	// ErrNotInactive is returned when activating a device that is not inactive.
	ErrNotInactive = errors.New("device is not inactive")
)

// State is a device lifecycle state.
type State int32

const (
	StateInactive State = iota
	StateActivating
	StateActive
	StateDeactivating
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateDeactivating:
		return "deactivating"
	default:
		return "unknown"
	}
}

// Options are the collaborators a Device needs.
type Options struct {
	Store  settings.Store
	Source orientation.Source
	Sink   vr.PoseSink
	// TickInterval defaults to DefaultTickInterval.
	TickInterval time.Duration
}

// Device is one virtual tracker. Its update loop runs while it is active.
type Device struct {
	localID  int
	serial   string
	model    string
	store    settings.Store
	source   orientation.Source
	sink     vr.PoseSink
	interval time.Duration
	logger   zerolog.Logger

	// mu guards the lifecycle fields.
	mu          sync.Mutex
	state       State
	index       uint32
	lockEnabled bool
	cancel      context.CancelFunc
	done        chan struct{}
	// stopped closes once a deactivation has fully reset the device.
	stopped chan struct{}

	// poseMu guards the latch and the last selection, written by the loop
	// and read by GetPose.
	poseMu    sync.Mutex
	latch     *Latch
	selection Selection

	frames atomic.Uint64
}

var _ vr.TrackedDevice = (*Device)(nil)

// New creates an inactive device. The serial number is the model number
// followed by localID.
func New(localID int, opts Options) *Device {
	interval := opts.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	serial := ModelNumber + strconv.Itoa(localID)

	return &Device{
		localID:   localID,
		serial:    serial,
		model:     ModelNumber,
		store:     opts.Store,
		source:    opts.Source,
		sink:      opts.Sink,
		interval:  interval,
		logger:    log.With().Str("serial", serial).Logger(),
		state:     StateInactive,
		index:     orientation.InvalidIndex,
		latch:     NewLatch(false),
		selection: anchorSelection,
	}
}

func (d *Device) Serial() string { return d.serial }
func (d *Device) Model() string  { return d.model }
func (d *Device) LocalID() int   { return d.localID }

func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Index returns the host-assigned index, or orientation.InvalidIndex.
func (d *Device) Index() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.index
}

// LockEnabled reports the pose-lock decision made at activation.
func (d *Device) LockEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lockEnabled
}

// Selection returns the mode chosen on the most recent tick.
func (d *Device) Selection() Selection {
	d.poseMu.Lock()
	defer d.poseMu.Unlock()
	return d.selection
}

// Frames returns the number of host frames forwarded to the device.
func (d *Device) Frames() uint64 {
	return d.frames.Load()
}

// Activate binds the device to index, fixes pose-lock eligibility and starts
// the update loop.
func (d *Device) Activate(index uint32) error {
	if index == orientation.InvalidIndex {
		return fmt.Errorf("activate %s: %w", d.serial, ErrInvalidIndex)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateInactive {
		return fmt.Errorf("activate %s in state %s: %w", d.serial, d.state, ErrNotInactive)
	}
	d.state = StateActivating
	d.index = index
	d.lockEnabled = lockEligible(d.store, d.serial)

	d.poseMu.Lock()
	d.latch = NewLatch(d.lockEnabled)
	d.selection = anchorSelection
	d.poseMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	d.stopped = make(chan struct{})
	go d.run(ctx, index, d.done)

	d.state = StateActive
	observability.DeviceActivated()
	d.logger.Info().
		Uint32("index", index).
		Bool("pose_lock", d.lockEnabled).
		Dur("interval", d.interval).
		Msg("device activated")
	return nil
}

// Deactivate stops the update loop and waits for it to exit before
// releasing the device index. Calling it on an inactive device does nothing.
func (d *Device) Deactivate() {
	d.mu.Lock()
	switch d.state {
	case StateActive:
	case StateDeactivating:
		stopped := d.stopped
		d.mu.Unlock()
		<-stopped
		return
	default:
		d.mu.Unlock()
		return
	}
	d.state = StateDeactivating
	cancel, done, stopped := d.cancel, d.done, d.stopped
	d.mu.Unlock()

	cancel()
	<-done

	d.mu.Lock()
	d.index = orientation.InvalidIndex
	d.cancel = nil
	d.done = nil
	d.stopped = nil
	d.poseMu.Lock()
	d.latch.Reset()
	d.selection = anchorSelection
	d.poseMu.Unlock()
	d.state = StateInactive
	d.mu.Unlock()
	close(stopped)

	observability.DeviceDeactivated()
	d.logger.Info().Msg("device deactivated")
}

// EnterStandby is a host notification; virtual devices have nothing to power down.
func (d *Device) EnterStandby() {
	d.logger.Info().Msg("device entered standby")
}

// RunFrame is called once per host frame. Virtual devices expose no input
// components, so there is nothing to update.
func (d *Device) RunFrame() {
	d.frames.Add(1)
}

// ProcessEvent receives host events. Virtual devices react to none.
func (d *Device) ProcessEvent(ev vr.Event) {}

// GetPose returns what the device would publish right now. It polls the
// settings and synthesizes a fresh candidate but leaves the latch untouched.
func (d *Device) GetPose() orientation.Pose {
	sel := Poll(d.store, d.serial)
	candidate := Synthesize(sel, d.source, d.localID)

	d.poseMu.Lock()
	defer d.poseMu.Unlock()
	return d.latch.View(candidate)
}

// Status is the device summary returned by DebugRequest.
type Status struct {
	Serial    string           `json:"serial"`
	Model     string           `json:"model"`
	LocalID   int              `json:"local_id"`
	Index     *uint32          `json:"index"`
	State     string           `json:"state"`
	Mode      string           `json:"mode"`
	Target    *uint32          `json:"proxy_target,omitempty"`
	PoseLock  bool             `json:"pose_lock"`
	Latched   bool             `json:"latched"`
	Pose      orientation.Pose `json:"pose"`
	FrameSeen uint64           `json:"frames"`
}

// Status snapshots the device.
func (d *Device) Status() Status {
	d.mu.Lock()
	st := Status{
		Serial:   d.serial,
		Model:    d.model,
		LocalID:  d.localID,
		State:    d.state.String(),
		PoseLock: d.lockEnabled,
	}
	if d.index != orientation.InvalidIndex {
		idx := d.index
		st.Index = &idx
	}
	d.mu.Unlock()

	d.poseMu.Lock()
	sel := d.selection
	_, st.Latched = d.latch.Locked()
	d.poseMu.Unlock()

	st.Mode = sel.Mode.String()
	if sel.Mode == ModeProxy {
		target := sel.Target
		st.Target = &target
	}
	st.Pose = d.GetPose()
	st.FrameSeen = d.Frames()
	return st
}

// DebugRequest answers any request with the device status as JSON.
func (d *Device) DebugRequest(request string) string {
	b, err := json.Marshal(d.Status())
	if err != nil {
		return ""
	}
	return string(b)
}

func (d *Device) run(ctx context.Context, index uint32, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		d.tick(index)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs one iteration: poll, synthesize, latch, publish.
func (d *Device) tick(index uint32) {
	sel := Poll(d.store, d.serial)
	candidate := Synthesize(sel, d.source, d.localID)

	d.poseMu.Lock()
	prev := d.selection
	d.selection = sel
	_, hadLocked := d.latch.Locked()
	pose := d.latch.Apply(candidate)
	_, hasLocked := d.latch.Locked()
	d.poseMu.Unlock()

	if sel != prev {
		ev := d.logger.Info().Str("mode", sel.Mode.String())
		if sel.Mode == ModeProxy {
			ev = ev.Uint32("target", sel.Target)
		}
		ev.Msg("device mode changed")
	}
	if hasLocked && !hadLocked {
		d.logger.Info().Msg("pose lock captured first valid pose")
	}

	d.sink.TrackedDevicePoseUpdated(index, pose)
	observability.RecordTick(d.serial, sel.Mode.String(), candidate.Valid, pose.Valid)
}
