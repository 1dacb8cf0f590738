// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package xfs describes XFS filesystems.
package xfs

import (
	"github.com/siderolabs/go-volscan/classify/internal/probe"
	"github.com/siderolabs/go-volscan/internal/magic"
	"github.com/siderolabs/go-volscan/volume"
)

//nolint:stylecheck,revive
const (
	sb_fname      = 108
	sb_fname_size = 12
)

var xfsMagic = magic.Magic{
	Offset: 0,
	Value:  []byte{0x58, 0x46, 0x53, 0x42},
}

// Descriptor for XFS.
var Descriptor = probe.Descriptor{
	Name:   "xfs",
	Type:   volume.FSXFS,
	Magics: []magic.All{{xfsMagic}},
	Extent: sb_fname + sb_fname_size,
	Label:  probe.CStringLabel(sb_fname, sb_fname_size),
}
