// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package vr holds the types shared across the boundary between this driver
// and the host tracking runtime.
package vr

import "github.com/relabs-tech/virtual_trackers/internal/orientation"

// DeviceClass is the kind of device announced to the host.
type DeviceClass int

const (
	ClassInvalid DeviceClass = iota
	ClassHMD
	ClassController
	ClassGenericTracker
	ClassTrackingReference
)

func (c DeviceClass) String() string {
	switch c {
	case ClassHMD:
		return "hmd"
	case ClassController:
		return "controller"
	case ClassGenericTracker:
		return "generic_tracker"
	case ClassTrackingReference:
		return "tracking_reference"
	default:
		return "invalid"
	}
}

// EventType identifies a host event.
type EventType int

const (
	EventNone EventType = iota
	EventEnterStandby
	EventLeaveStandby
	EventTrackedDeviceActivated
	EventTrackedDeviceDeactivated
	EventPropertyChanged
)

// Event is a host event delivered once per frame.
type Event struct {
	Type        EventType
	DeviceIndex uint32
}

// TrackedDevice is the lifecycle contract the host drives for every device.
type TrackedDevice interface {
	Activate(index uint32) error
	Deactivate()
	EnterStandby()
	GetPose() orientation.Pose
	DebugRequest(request string) string
}

// PoseSink receives published poses. Calls arrive concurrently from every
// device's update loop.
type PoseSink interface {
	TrackedDevicePoseUpdated(index uint32, pose orientation.Pose)
}

// Host is the runtime a provider registers devices with.
type Host interface {
	PoseSink
	// TrackedDeviceAdded announces dev; the host activates it before
	// returning. It reports whether the host accepted the device.
	TrackedDeviceAdded(serial string, class DeviceClass, dev TrackedDevice) bool
	PollNextEvent() (Event, bool)
}
