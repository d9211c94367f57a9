// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package settings

import (
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrNotFound reports a section or key that is not set.
	ErrNotFound = errors.New("setting not found")
	// ErrWrongType reports a value that cannot be read as the requested type.
	ErrWrongType = errors.New("setting has wrong type")
)

// Section and key names shared with the settings editor.
const (
	SectionDriver = "PoseLockDriver"
	SectionProxy  = "PoseLockProxy"

	KeyTrackerCount   = "num_virtual_trackers"
	KeyEnabledSerials = "enabled_trackers"

	proxyKeyPrefix = "proxy_target_for_"
)

// NoProxyTarget is the proxy setting value meaning "no target".
const NoProxyTarget int32 = -1

// Store is a section/key settings store. Reads and writes of distinct keys
// are not atomic with respect to each other. Implementations must be safe
// for concurrent use.
type Store interface {
	Int32(section, key string) (int32, error)
	String(section, key string) (string, error)
	SetInt32(section, key string, v int32) error
	SetString(section, key, v string) error
}

// ProxyTargetKey returns the proxy-section key for serial.
func ProxyTargetKey(serial string) string {
	return proxyKeyPrefix + serial
}

// ParseSerialList splits an enabled-serials value on commas, semicolons and
// whitespace, dropping empty entries.
func ParseSerialList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}

// ContainsSerial reports whether serial is an exact member of the list value.
// A serial that is only a substring of an entry does not match.
func ContainsSerial(list, serial string) bool {
	if serial == "" {
		return false
	}
	for _, s := range ParseSerialList(list) {
		if s == serial {
			return true
		}
	}
	return false
}
