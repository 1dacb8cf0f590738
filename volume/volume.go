// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package volume defines the cataloged volume record and its reference counted lifecycle.
package volume

import (
	"fmt"

	"github.com/c2h5oh/datasize"
	efi "github.com/canonical/go-efilib"
	"github.com/canonical/go-efilib/mbr"
	"github.com/google/uuid"

	"github.com/siderolabs/go-volscan/firmware"
)

// Volume is a cataloged storage unit: a partition or a whole, unpartitioned disk.
//
//nolint:govet
type Volume struct {
	// Handle is the firmware handle, zero for logical partitions found in extended partition chains.
	Handle firmware.Handle

	DevicePath          efi.DevicePath
	WholeDiskDevicePath efi.DevicePath

	// RootDir is the open root directory, nil if the volume is not readable.
	RootDir firmware.Dir

	// BlockIO reads the volume, starting at block BlockIOOffset.
	//
	// Block I/O identity is the handle owning the interface.
	BlockIO          firmware.BlockIO
	BlockIOHandle    firmware.Handle
	BlockIOOffset    uint64
	WholeDiskBlockIO firmware.BlockIO
	WholeDiskHandle  firmware.Handle

	FSType FSType
	// VolUUID is the filesystem identity: serial number for FAT/NTFS, UUID for ext and ReiserFS,
	// APFS volume UUID.
	VolUUID uuid.UUID

	PartGUID     uuid.UUID
	PartTypeGUID uuid.UUID

	ContainerGUID uuid.UUID
	Role          Role

	FSLabel     string
	PartName    string
	DisplayName string

	DiskKind DiskKind

	HasBootCode bool
	OSName      string
	OSIcon      string

	IsMBRPartition    bool
	MBRPartitionIndex int

	IsAppleLegacy    bool
	IsMarkedReadOnly bool
	IsReadable       bool

	// MBRTable is a copy of the legacy partition table hosted by the volume.
	MBRTable *[4]mbr.PartitionEntry

	// Size in bytes.
	Size uint64
}

// IsWholeDisk returns true if the volume reads the whole disk from its start.
func (v *Volume) IsWholeDisk() bool {
	return v.BlockIO != nil && v.WholeDiskBlockIO != nil &&
		v.BlockIOHandle == v.WholeDiskHandle && v.BlockIOOffset == 0
}

// IsPartition returns true if the volume block I/O is distinct from its whole disk block I/O.
func (v *Volume) IsPartition() bool {
	return v.BlockIO != nil && v.WholeDiskBlockIO != nil && v.BlockIOHandle != v.WholeDiskHandle
}

// Name returns the display name, falling back to a description built from size and filesystem type.
func (v *Volume) Name() string {
	if v.DisplayName != "" {
		return v.DisplayName
	}

	switch {
	case v.Size > 0 && v.FSType != FSUnknown:
		return fmt.Sprintf("%s %s volume", datasize.ByteSize(v.Size).HR(), v.FSType)
	case v.FSType != FSUnknown:
		return fmt.Sprintf("%s volume", v.FSType)
	default:
		return "unknown volume"
	}
}

// release frees resources owned by the volume.
func (v *Volume) release() error {
	var err error

	if v.RootDir != nil {
		err = v.RootDir.Close()
	}

	*v = Volume{}

	return err
}
