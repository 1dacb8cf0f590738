// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package reiserfs describes ReiserFS filesystems.
package reiserfs

import (
	"github.com/siderolabs/go-volscan/classify/internal/probe"
	"github.com/siderolabs/go-volscan/internal/magic"
	"github.com/siderolabs/go-volscan/volume"
)

const (
	sbOffset    = 0x10000
	magicOffset = sbOffset + 0x34
	uuidOffset  = sbOffset + 0x54
	labelOffset = sbOffset + 0x64
	labelSize   = 16
)

// Descriptor for ReiserFS 3.5 and 3.6 (including journal relocated variants).
var Descriptor = probe.Descriptor{
	Name: "reiserfs",
	Type: volume.FSReiserFS,
	Magics: []magic.All{
		{{Offset: magicOffset, Value: []byte("ReIsErFs")}},
		{{Offset: magicOffset, Value: []byte("ReIsEr2Fs")}},
		{{Offset: magicOffset, Value: []byte("ReIsEr3Fs")}},
	},
	Extent: labelOffset + labelSize,
	UUID:   probe.UUIDAt(uuidOffset),
	Label:  probe.CStringLabel(labelOffset, labelSize),
}
