// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Euler is an orientation in degrees, as published by orientation-only producers.
type Euler struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

var (
	axisX = r3.Vec{X: 1}
	axisY = r3.Vec{Y: 1}
	axisZ = r3.Vec{Z: 1}
)

// Quaternion converts e to a unit quaternion in the tracking frame
// (Y up, -Z forward): yaw about Y, then pitch about X, then roll about Z.
func (e Euler) Quaternion() quat.Number {
	yaw := quat.Number(r3.NewRotation(deg2rad(e.Yaw), axisY))
	pitch := quat.Number(r3.NewRotation(deg2rad(e.Pitch), axisX))
	roll := quat.Number(r3.NewRotation(deg2rad(e.Roll), axisZ))
	return Normalize(quat.Mul(quat.Mul(yaw, pitch), roll))
}

func deg2rad(d float64) float64 {
	return d * math.Pi / 180.0
}

// EulerFromQuaternion is the inverse of Euler.Quaternion. Yaw and roll are
// in (-180, 180], pitch in [-90, 90].
func EulerFromQuaternion(q quat.Number) Euler {
	q = Normalize(q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	sinPitch := -2 * (y*z - w*x)
	sinPitch = math.Max(-1, math.Min(1, sinPitch))

	return Euler{
		Roll:  rad2deg(math.Atan2(2*(x*y+w*z), 1-2*(x*x+z*z))),
		Pitch: rad2deg(math.Asin(sinPitch)),
		Yaw:   rad2deg(math.Atan2(2*(x*z+w*y), 1-2*(x*x+y*y))),
	}
}

func rad2deg(r float64) float64 {
	return r * 180.0 / math.Pi
}
