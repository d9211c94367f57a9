// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// AnchorIndex is the device index of the reference device (the headset).
const AnchorIndex uint32 = 0

// InvalidIndex marks a device that has no host-assigned slot.
const InvalidIndex uint32 = math.MaxUint32

// TrackingResult is the tracking-quality state attached to a pose.
// Values match the host runtime's enumeration.
type TrackingResult int

const (
	ResultUninitialized         TrackingResult = 1
	ResultCalibratingInProgress TrackingResult = 100
	ResultCalibratingOutOfRange TrackingResult = 101
	ResultRunningOK             TrackingResult = 200
	ResultRunningOutOfRange     TrackingResult = 201
	ResultFallbackRotationOnly  TrackingResult = 300
)

func (r TrackingResult) String() string {
	switch r {
	case ResultUninitialized:
		return "uninitialized"
	case ResultCalibratingInProgress:
		return "calibrating_in_progress"
	case ResultCalibratingOutOfRange:
		return "calibrating_out_of_range"
	case ResultRunningOK:
		return "running_ok"
	case ResultRunningOutOfRange:
		return "running_out_of_range"
	case ResultFallbackRotationOnly:
		return "fallback_rotation_only"
	default:
		return "unknown"
	}
}

// Identity is the unit quaternion with no rotation.
var Identity = quat.Number{Real: 1}

// Pose is the canonical representation of a single tracking sample.
// Velocities are not carried; nothing here estimates motion derivatives.
type Pose struct {
	Position r3.Vec
	Rotation quat.Number
	Valid    bool
	// Connected is true for every pose a virtual device publishes.
	Connected bool
	Result    TrackingResult
}

// NewPose returns an untrusted sample at the origin with identity rotation.
func NewPose() Pose {
	return Pose{
		Rotation:  Identity,
		Connected: true,
		Result:    ResultUninitialized,
	}
}

// Source supplies raw poses for arbitrary device indices.
// Indices the source knows nothing about report NewPose() with Connected false.
// Implementations must be safe for concurrent use.
type Source interface {
	Pose(index uint32) Pose
}

// Normalize scales q to unit length. Degenerate input yields Identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// Rotate returns v rotated by the unit quaternion q.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(q).Rotate(v)
}

type poseJSON struct {
	Position  [3]float64     `json:"position"`
	Rotation  [4]float64     `json:"rotation"` // w, x, y, z
	Valid     bool           `json:"valid"`
	Connected bool           `json:"connected"`
	Result    TrackingResult `json:"result"`
}

// MarshalJSON encodes the pose with array-shaped position and rotation.
func (p Pose) MarshalJSON() ([]byte, error) {
	return json.Marshal(poseJSON{
		Position:  [3]float64{p.Position.X, p.Position.Y, p.Position.Z},
		Rotation:  [4]float64{p.Rotation.Real, p.Rotation.Imag, p.Rotation.Jmag, p.Rotation.Kmag},
		Valid:     p.Valid,
		Connected: p.Connected,
		Result:    p.Result,
	})
}

// UnmarshalJSON decodes a pose, normalising the rotation.
func (p *Pose) UnmarshalJSON(data []byte) error {
	var w poseJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = Pose{
		Position:  r3.Vec{X: w.Position[0], Y: w.Position[1], Z: w.Position[2]},
		Rotation:  Normalize(quat.Number{Real: w.Rotation[0], Imag: w.Rotation[1], Jmag: w.Rotation[2], Kmag: w.Rotation[3]}),
		Valid:     w.Valid,
		Connected: w.Connected,
		Result:    w.Result,
	}
	if p.Result == 0 {
		p.Result = ResultUninitialized
	}
	return nil
}
