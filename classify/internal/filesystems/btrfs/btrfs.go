// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package btrfs describes Btrfs filesystems.
package btrfs

import (
	"github.com/siderolabs/go-volscan/classify/internal/probe"
	"github.com/siderolabs/go-volscan/internal/magic"
	"github.com/siderolabs/go-volscan/volume"
)

const (
	sbOffset    = 0x10000
	magicOffset = sbOffset + 0x40
	labelOffset = sbOffset + 0x12B
	labelSize   = 256
)

// Descriptor for Btrfs.
//
// The fsid is shared by every device of a multi-device filesystem, so no UUID is reported.
var Descriptor = probe.Descriptor{
	Name:   "btrfs",
	Type:   volume.FSBtrfs,
	Magics: []magic.All{{{Offset: magicOffset, Value: []byte("_BHRfS_M")}}},
	Extent: labelOffset + labelSize,
	Label:  probe.CStringLabel(labelOffset, labelSize),
}
