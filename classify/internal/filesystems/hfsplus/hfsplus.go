// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package hfsplus describes HFS+ and HFSX volume headers.
package hfsplus

import (
	"github.com/siderolabs/go-volscan/classify/internal/probe"
	"github.com/siderolabs/go-volscan/internal/magic"
	"github.com/siderolabs/go-volscan/volume"
)

const headerOffset = 0x400

// Descriptor for HFS+ volume headers, in either byte order.
var Descriptor = probe.Descriptor{
	Name: "hfsplus",
	Type: volume.FSHFSPlus,
	Magics: []magic.All{
		{{Offset: headerOffset, Value: []byte("H+")}},
		{{Offset: headerOffset, Value: []byte("HX")}},
		{{Offset: headerOffset, Value: []byte("+H")}},
		{{Offset: headerOffset, Value: []byte("XH")}},
	},
}
