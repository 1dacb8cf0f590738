// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package jfs describes JFS filesystems.
package jfs

import (
	"github.com/siderolabs/go-volscan/classify/internal/probe"
	"github.com/siderolabs/go-volscan/internal/magic"
	"github.com/siderolabs/go-volscan/volume"
)

// Descriptor for JFS.
var Descriptor = probe.Descriptor{
	Name:   "jfs",
	Type:   volume.FSJFS,
	Magics: []magic.All{{{Offset: 0x8000, Value: []byte("JFS1")}}},
}
