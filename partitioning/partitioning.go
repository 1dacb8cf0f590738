// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package partitioning implements common partitioning functions.
package partitioning

import (
	"fmt"
	"io"
	"os"
	"strconv"
)

// Legacy MBR partition types.
const (
	TypeEmpty          = 0x00
	TypeFAT12          = 0x01
	TypeFAT16          = 0x06
	TypeExtendedCHS    = 0x05
	TypeNTFS           = 0x07
	TypeFAT32LBA       = 0x0C
	TypeExtendedLBA    = 0x0F
	TypeLinux          = 0x83
	TypeLinuxExtended  = 0x85
	TypeGPTProtective  = 0xEE
	TypeEFISystem      = 0xEF
	TypeLinuxRAIDAuto  = 0xFD
	TypeHFSPlus        = 0xAF
	TypeFreeBSD        = 0xA5
	TypeOpenBSD        = 0xA6
	TypeNetBSD         = 0xA9
	TypeBootCampHidden = 0xAB
)

// IsExtended returns true for the MBR types that point to an extended partition chain.
func IsExtended(partType uint8) bool {
	return partType == TypeExtendedCHS || partType == TypeExtendedLBA || partType == TypeLinuxExtended
}

// DevName returns the devname for the partition on a disk.
func DevName(device string, part uint) string {
	result := device

	if len(result) > 0 && result[len(result)-1] >= '0' && result[len(result)-1] <= '9' {
		result += "p"
	}

	return result + strconv.FormatUint(uint64(part), 10)
}

// Device is the target a partition table is written to.
type Device interface {
	io.ReaderAt
	io.WriterAt

	GetSectorSize() uint
	GetSize() uint64
}

// FileDevice is a disk image file.
type FileDevice struct {
	*os.File

	sectorSize uint
	size       uint64
}

// NewFileDevice wraps an image file, the file size is the device size.
func NewFileDevice(f *os.File, sectorSize uint) (*FileDevice, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %q: %w", f.Name(), err)
	}

	if sectorSize == 0 || sectorSize&(sectorSize-1) != 0 {
		return nil, fmt.Errorf("invalid sector size %d", sectorSize)
	}

	return &FileDevice{
		File:       f,
		sectorSize: sectorSize,
		size:       uint64(st.Size()),
	}, nil
}

// GetSectorSize returns the logical sector size.
func (d *FileDevice) GetSectorSize() uint {
	return d.sectorSize
}

// GetSize returns the image size.
func (d *FileDevice) GetSize() uint64 {
	return d.size
}
