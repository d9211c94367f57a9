// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracker

import "github.com/relabs-tech/virtual_trackers/internal/orientation"

// Latch holds the last valid pose of a device with pose lock enabled.
// Once it has captured a pose, everything it publishes is valid.
// Latch is not safe for concurrent use.
type Latch struct {
	enabled bool
	locked  orientation.Pose
	has     bool
}

func NewLatch(enabled bool) *Latch {
	return &Latch{enabled: enabled}
}

func (l *Latch) Enabled() bool {
	return l.enabled
}

// Locked returns the captured pose, if any.
func (l *Latch) Locked() (orientation.Pose, bool) {
	return l.locked, l.has
}

// Apply consumes a candidate and returns the pose to publish.
func (l *Latch) Apply(candidate orientation.Pose) orientation.Pose {
	if !l.enabled {
		return candidate
	}
	if candidate.Valid {
		l.locked = candidate
		l.has = true
	}
	return l.View(candidate)
}

// View returns what Apply would publish for candidate, without capturing it.
func (l *Latch) View(candidate orientation.Pose) orientation.Pose {
	if !l.enabled {
		return candidate
	}
	if candidate.Valid {
		return candidate
	}
	if !l.has {
		return candidate
	}
	out := l.locked
	out.Valid = true
	return out
}

// Reset forgets the captured pose.
func (l *Latch) Reset() {
	l.locked = orientation.Pose{}
	l.has = false
}
