// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mqttbus

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic layout under the configured prefix:
//
//	<prefix>/pose/<serial>         poses published by virtual devices
//	<prefix>/raw/<index>           raw poses of physical devices (JSON pose)
//	<prefix>/raw/<index>/euler     orientation-only samples (roll/pitch/yaw)
const (
	poseSegment  = "pose"
	rawSegment   = "raw"
	eulerSegment = "euler"
)

func PoseTopic(prefix, serial string) string {
	return prefix + "/" + poseSegment + "/" + serial
}

// PoseFilter matches every virtual device pose topic.
func PoseFilter(prefix string) string {
	return prefix + "/" + poseSegment + "/+"
}

func RawTopic(prefix string, index uint32) string {
	return prefix + "/" + rawSegment + "/" + strconv.FormatUint(uint64(index), 10)
}

func RawEulerTopic(prefix string, index uint32) string {
	return RawTopic(prefix, index) + "/" + eulerSegment
}

// RawFilter matches every raw pose topic.
func RawFilter(prefix string) string {
	return prefix + "/" + rawSegment + "/#"
}

// parseRawTopic extracts the device index from a raw topic and reports
// whether it carries Euler angles.
func parseRawTopic(prefix, topic string) (index uint32, euler bool, err error) {
	rest, ok := strings.CutPrefix(topic, prefix+"/"+rawSegment+"/")
	if !ok {
		return 0, false, fmt.Errorf("topic %q is not a raw pose topic", topic)
	}

	idx, kind, _ := strings.Cut(rest, "/")
	switch kind {
	case "":
	case eulerSegment:
		euler = true
	default:
		return 0, false, fmt.Errorf("topic %q: unknown raw kind %q", topic, kind)
	}

	n, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return 0, false, fmt.Errorf("topic %q: bad device index: %w", topic, err)
	}
	return uint32(n), euler, nil
}
