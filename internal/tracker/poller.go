// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracker

import (
	"github.com/relabs-tech/virtual_trackers/internal/orientation"
	"github.com/relabs-tech/virtual_trackers/internal/settings"
)

// Selection is the mode chosen for one tick.
type Selection struct {
	Mode   Mode
	Target uint32 // orientation.InvalidIndex outside proxy mode
}

var anchorSelection = Selection{Mode: ModeAnchor, Target: orientation.InvalidIndex}

// Poll reads the proxy setting for serial. A missing or unreadable setting
// or the -1 sentinel selects anchor mode. Any other negative value selects
// proxy mode against a target that never exists.
func Poll(store settings.Store, serial string) Selection {
	target, err := store.Int32(settings.SectionProxy, settings.ProxyTargetKey(serial))
	if err != nil || target == settings.NoProxyTarget {
		return anchorSelection
	}
	if target < 0 {
		return Selection{Mode: ModeProxy, Target: orientation.InvalidIndex}
	}
	return Selection{Mode: ModeProxy, Target: uint32(target)}
}

// lockEligible reports whether serial is listed in the enabled-serials
// setting. A read failure means not eligible.
func lockEligible(store settings.Store, serial string) bool {
	list, err := store.String(settings.SectionDriver, settings.KeyEnabledSerials)
	if err != nil {
		return false
	}
	return settings.ContainsSerial(list, serial)
}
