// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package msdos describes filesystems and disks recognized by the 0x55AA boot sector signature.
package msdos

import (
	"bytes"

	"github.com/siderolabs/go-pointer"

	"github.com/siderolabs/go-volscan/classify/internal/probe"
	"github.com/siderolabs/go-volscan/internal/magic"
	"github.com/siderolabs/go-volscan/volume"
)

// Boot sector field offsets.
//
//nolint:stylecheck,revive
const (
	ntfs_serial = 0x48

	fat_serial   = 0x27
	fat_label    = 0x2B
	fat32_serial = 0x43
	fat32_label  = 0x47
	label_size   = 11
)

var bootSignature = magic.Magic{
	Offset: 0x1FE,
	Value:  []byte{0x55, 0xAA},
}

// NTFS boot sector.
var NTFS = probe.Descriptor{
	Name:   "ntfs",
	Type:   volume.FSNTFS,
	Magics: []magic.All{{bootSignature, {Offset: 3, Value: []byte("NTFS    ")}}},
	UUID:   probe.SerialAt(ntfs_serial, 8),
}

// FAT is the FAT12/FAT16 boot sector.
var FAT = probe.Descriptor{
	Name: "fat",
	Type: volume.FSFAT,
	Magics: []magic.All{
		{bootSignature, {Offset: 0x36, Value: []byte("FAT12   ")}},
		{bootSignature, {Offset: 0x36, Value: []byte("FAT16   ")}},
		{bootSignature, {Offset: 0x36, Value: []byte("FAT     ")}},
	},
	UUID:  probe.SerialAt(fat_serial, 4),
	Label: fatLabel(fat_label),
}

// FAT32 boot sector.
var FAT32 = probe.Descriptor{
	Name:   "fat32",
	Type:   volume.FSFAT,
	Magics: []magic.All{{bootSignature, {Offset: 0x52, Value: []byte("FAT32   ")}}},
	UUID:   probe.SerialAt(fat32_serial, 4),
	Label:  fatLabel(fat32_label),
}

// WholeDisk is an unrecognized boot sector which is not inside a logical partition,
// i.e. an MBR of a whole disk.
var WholeDisk = probe.Descriptor{
	Name:   "wholedisk",
	Type:   volume.FSWholeDisk,
	Magics: []magic.All{{bootSignature}},
	Require: func(_ []byte, in probe.Input) bool {
		return !in.LogicalPartition
	},
}

func fatLabel(offset int) func([]byte) *string {
	return func(buf []byte) *string {
		lbl := bytes.TrimRight(probe.Field(buf, offset, label_size), " \x00")

		if len(lbl) == 0 || string(lbl) == "NO NAME" {
			return nil
		}

		return pointer.To(string(lbl))
	}
}
