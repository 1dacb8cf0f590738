// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package identity resolves partition identity from hard drive device path nodes.
package identity

import (
	efi "github.com/canonical/go-efilib"
	"github.com/google/uuid"

	"github.com/siderolabs/go-volscan/gptcache"
	"github.com/siderolabs/go-volscan/internal/gptutil"
	"github.com/siderolabs/go-volscan/volume"
)

// GPT partition attributes.
const (
	AttrRequired       = uint64(1) << 0
	AttrNoBlockIO      = uint64(1) << 1
	AttrLegacyBIOSBoot = uint64(1) << 2
	AttrReadOnly       = uint64(1) << 60
	AttrNoAuto         = uint64(1) << 63
)

var (
	// DiscoverableRootType is the Discoverable Partitions root partition type (x86-64).
	DiscoverableRootType = uuid.MustParse("4F68BCE3-E8CD-4DB1-96E7-FBCAF984B709")

	// MBRPartitionGUID is assigned to partitions of legacy MBR disks, which carry no unique GUID.
	MBRPartitionGUID = uuid.MustParse("92A6C61F-7130-49B9-B05C-8D7E7B039127")
)

// Lookup finds partition table entries by unique partition GUID.
type Lookup interface {
	Lookup(partGUID uuid.UUID) (gptcache.Entry, bool)
}

// Resolve fills the partition identity of the volume from the hard drive node.
//
// It returns true if the volume is a candidate discoverable root partition.
func Resolve(v *volume.Volume, node *efi.HardDriveDevicePathNode, cache Lookup) bool {
	if node == nil {
		return false
	}

	switch sig := node.Signature.(type) {
	case efi.GUIDHardDriveSignature:
		v.PartGUID = gptutil.FromEFIGUID(efi.GUID(sig))

		if cache == nil {
			return false
		}

		entry, ok := cache.Lookup(v.PartGUID)
		if !ok {
			return false
		}

		v.PartName = entry.Name
		v.PartTypeGUID = entry.TypeGUID
		v.IsMarkedReadOnly = entry.Attributes&AttrReadOnly != 0

		return entry.TypeGUID == DiscoverableRootType && entry.Attributes&AttrNoAuto == 0
	case efi.MBRHardDriveSignature:
		v.PartGUID = MBRPartitionGUID
	}

	return false
}
