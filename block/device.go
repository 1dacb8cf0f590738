// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package block exposes host block devices as disks for emulated firmware.
package block

import (
	"errors"
	"os"
)

// ErrNotWholeDisk is returned for partitions: firmware only sees whole disks.
var ErrNotWholeDisk = errors.New("not a whole disk")

// DefaultSectorSize is used when the kernel doesn't report a usable sector size.
const DefaultSectorSize = 512

// Device is a host block device opened read-only.
type Device struct {
	f *os.File

	ownedFile bool
	devNo     uint64
}

// NewFromFile returns a new Device from the specified file.
//
// The file is not closed by Close.
func NewFromFile(f *os.File) *Device {
	return &Device{f: f}
}

// Media describes the medium in the device as firmware block I/O would report it.
//
//nolint:govet
type Media struct {
	Size       uint64
	SectorSize uint

	Optical   bool
	NoMedia   bool
	ReadOnly  bool
	Removable bool
}

// ReadAt implements io.ReaderAt.
func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	return d.f.ReadAt(p, off)
}

// Name returns the device path the device was opened with.
func (d *Device) Name() string {
	return d.f.Name()
}

// Close the device, if the file is owned by the device.
func (d *Device) Close() error {
	if !d.ownedFile {
		return nil
	}

	return d.f.Close()
}
