// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package ext describes ext2/ext3/ext4 filesystems.
package ext

import (
	"encoding/binary"

	"github.com/siderolabs/go-volscan/classify/internal/probe"
	"github.com/siderolabs/go-volscan/internal/magic"
	"github.com/siderolabs/go-volscan/volume"
)

const sbOffset = 0x400

// Superblock field offsets.
//
//nolint:stylecheck,revive
const (
	s_magic            = sbOffset + 0x38
	s_feature_compat   = sbOffset + 0x5C
	s_feature_incompat = sbOffset + 0x60
	s_uuid             = sbOffset + 0x68
	s_volume_name      = sbOffset + 0x78
	s_volume_name_size = 16
)

// Various extfs feature flags.
//
//nolint:stylecheck,revive
const (
	EXT3_FEATURE_COMPAT_HAS_JOURNAL = 0x0004
	EXT4_FEATURE_INCOMPAT_EXTENTS   = 0x0040
	EXT4_FEATURE_INCOMPAT_FLEX_BG   = 0x0200
)

var extfsMagic = magic.Magic{
	Offset: s_magic,
	Value:  []byte("\123\357"),
}

// Descriptor for the ext family.
var Descriptor = probe.Descriptor{
	Name:   "extfs",
	Type:   volume.FSExt2,
	Magics: []magic.All{{extfsMagic}},
	Extent: s_volume_name + s_volume_name_size,
	Refine: refine,
	UUID:   probe.UUIDAt(s_uuid),
	Label:  probe.CStringLabel(s_volume_name, s_volume_name_size),
}

func refine(buf []byte) volume.FSType {
	incompat := probe.Field(buf, s_feature_incompat, 4)
	compat := probe.Field(buf, s_feature_compat, 4)

	switch {
	case incompat != nil && binary.LittleEndian.Uint32(incompat)&(EXT4_FEATURE_INCOMPAT_EXTENTS|EXT4_FEATURE_INCOMPAT_FLEX_BG) != 0:
		return volume.FSExt4
	case compat != nil && binary.LittleEndian.Uint32(compat)&EXT3_FEATURE_COMPAT_HAS_JOURNAL != 0:
		return volume.FSExt3
	default:
		return volume.FSExt2
	}
}
