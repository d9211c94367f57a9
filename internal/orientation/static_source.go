// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import "sync"

// StaticSource holds the last pose set for each index.
type StaticSource struct {
	mu    sync.RWMutex
	poses map[uint32]Pose
}

func NewStaticSource() *StaticSource {
	return &StaticSource{poses: make(map[uint32]Pose)}
}

// Set stores p for index, normalising its rotation.
func (s *StaticSource) Set(index uint32, p Pose) {
	p.Rotation = Normalize(p.Rotation)
	s.mu.Lock()
	s.poses[index] = p
	s.mu.Unlock()
}

// Remove forgets index; later lookups report an absent device.
func (s *StaticSource) Remove(index uint32) {
	s.mu.Lock()
	delete(s.poses, index)
	s.mu.Unlock()
}

func (s *StaticSource) Pose(index uint32) Pose {
	s.mu.RLock()
	p, ok := s.poses[index]
	s.mu.RUnlock()
	if !ok {
		p = NewPose()
		p.Connected = false
	}
	return p
}
