// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// MockSource generates a smoothly moving anchor at standing head height.
// Every other index reports as absent.
type MockSource struct {
	start time.Time
	// Dropouts makes the anchor untracked for the last second of every five.
	Dropouts bool
}

// NewMockSource creates a mock anchor source that generates smooth changing values.
func NewMockSource() *MockSource {
	return &MockSource{start: time.Now()}
}

func (m *MockSource) Pose(index uint32) Pose {
	if index != AnchorIndex {
		p := NewPose()
		p.Connected = false
		return p
	}

	elapsed := time.Since(m.start).Seconds()

	p := NewPose()
	if m.Dropouts && int(elapsed)%5 == 4 {
		return p
	}

	e := Euler{
		Roll:  5 * math.Sin(elapsed),
		Pitch: 10 * math.Cos(elapsed*0.7),
		Yaw:   math.Mod(elapsed*30, 360),
	}
	p.Rotation = e.Quaternion()
	p.Position = r3.Vec{
		X: 0.2 * math.Sin(elapsed*0.5),
		Y: 1.7 + 0.02*math.Sin(elapsed*2),
		Z: 0.2 * math.Cos(elapsed*0.5),
	}
	p.Valid = true
	p.Result = ResultRunningOK
	return p
}
