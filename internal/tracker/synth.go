// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracker

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/virtual_trackers/internal/orientation"
)

// Mode selects how a candidate pose is derived.
type Mode int

const (
	// ModeAnchor offsets the device from the anchor pose.
	ModeAnchor Mode = iota
	// ModeProxy mirrors another device's pose verbatim.
	ModeProxy
)

func (m Mode) String() string {
	if m == ModeProxy {
		return "proxy"
	}
	return "anchor"
}

// Offset constants, in metres in the anchor's frame.
const (
	OffsetBase  = -0.15 // lateral position of local id 0
	OffsetStep  = 0.15  // lateral spacing per local id
	OffsetUp    = 0.1
	OffsetDepth = -0.5 // in front of the anchor
)

// Offset returns the anchor-relative offset for a device.
func Offset(localID int) r3.Vec {
	return r3.Vec{
		X: OffsetBase + float64(localID)*OffsetStep,
		Y: OffsetUp,
		Z: OffsetDepth,
	}
}

// Synthesize derives the candidate pose for one tick. It never fails: an
// unavailable anchor or target produces an invalid candidate.
func Synthesize(sel Selection, src orientation.Source, localID int) orientation.Pose {
	if sel.Mode == ModeProxy {
		return mirror(src.Pose(sel.Target))
	}
	return fromAnchor(src.Pose(orientation.AnchorIndex), localID)
}

func mirror(target orientation.Pose) orientation.Pose {
	p := orientation.NewPose()
	p.Position = target.Position
	p.Rotation = target.Rotation
	p.Valid = target.Valid
	p.Result = target.Result
	return p
}

func fromAnchor(anchor orientation.Pose, localID int) orientation.Pose {
	p := orientation.NewPose()
	if !anchor.Valid {
		return p
	}

	p.Rotation = anchor.Rotation
	p.Position = r3.Add(anchor.Position, orientation.Rotate(anchor.Rotation, Offset(localID)))
	p.Valid = true
	p.Result = orientation.ResultRunningOK
	return p
}
