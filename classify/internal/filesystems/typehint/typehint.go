// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package typehint describes filesystems recognized by media or partition type rather than on-disk magic.
package typehint

import (
	"github.com/google/uuid"

	"github.com/siderolabs/go-volscan/classify/internal/probe"
	"github.com/siderolabs/go-volscan/volume"
)

// Apple partition type GUIDs.
var (
	APFSPartitionType    = uuid.MustParse("7C3457EF-0000-11AA-AA11-00306543ECAC")
	HFSPlusPartitionType = uuid.MustParse("48465300-0000-11AA-AA11-00306543ECAC")
)

// OpticalSectorSize is the block size of CD/DVD media.
const OpticalSectorSize = 2048

// ISO9660 is assumed for any media with optical sector size.
var ISO9660 = probe.Descriptor{
	Name: "iso9660",
	Type: volume.FSISO9660,
	Require: func(_ []byte, in probe.Input) bool {
		return in.SectorSize == OpticalSectorSize
	},
}

// APFS container partitions are recognized by type GUID.
var APFS = probe.Descriptor{
	Name:    "apfs",
	Type:    volume.FSAPFS,
	Require: partitionType(APFSPartitionType),
}

// HFSPlus partitions whose header was not recognized.
var HFSPlus = probe.Descriptor{
	Name:    "hfsplus-type",
	Type:    volume.FSHFSPlus,
	Require: partitionType(HFSPlusPartitionType),
}

func partitionType(typ uuid.UUID) func([]byte, probe.Input) bool {
	return func(_ []byte, in probe.Input) bool {
		return in.PartTypeGUID == typ
	}
}
