// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package firmware defines the boot services consumed by the volume scanner.
//
// The interfaces mirror the UEFI protocols used during discovery: handle
// enumeration by the block I/O protocol, block I/O itself, the simple file
// system protocol and device path introspection.
package firmware

import (
	"errors"
	"fmt"

	efi "github.com/canonical/go-efilib"
)

// Handle is an opaque firmware device handle.
type Handle uintptr

// Firmware errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrUnsupported    = errors.New("protocol not supported")
	ErrNoMedia        = errors.New("no media")
	ErrMediaChanged   = errors.New("media changed")
	ErrDeviceError    = errors.New("device error")
	ErrBufferTooSmall = errors.New("buffer too small")
	ErrBadBufferSize  = errors.New("bad buffer size")
)

// BufferTooSmallError is returned by directory reads when the supplied buffer can't hold the next entry.
type BufferTooSmallError struct {
	// Size is the buffer size required.
	Size int
}

func (e *BufferTooSmallError) Error() string {
	return fmt.Sprintf("buffer too small, %d bytes required", e.Size)
}

// Is makes errors.Is(err, ErrBufferTooSmall) work.
func (e *BufferTooSmallError) Is(target error) bool {
	return target == ErrBufferTooSmall
}

// Media describes the media behind a block I/O interface.
type Media struct {
	MediaID          uint32
	BlockSize        uint32
	LastBlock        uint64
	MediaPresent     bool
	RemovableMedia   bool
	LogicalPartition bool
	ReadOnly         bool
}

// Size returns the media size in bytes.
func (m Media) Size() uint64 {
	if m.BlockSize == 0 {
		return 0
	}

	return (m.LastBlock + 1) * uint64(m.BlockSize)
}

// BlockIO reads logical blocks from a device.
type BlockIO interface {
	Media() Media
	// ReadBlocks reads len(buf) bytes starting at lba.
	//
	// len(buf) must be a multiple of the block size. ErrMediaChanged is returned
	// if mediaID doesn't match the current media, ErrNoMedia if there is no media.
	ReadBlocks(mediaID uint32, lba uint64, buf []byte) error
}

// File is an open file.
type File interface {
	Read(p []byte) (int, error)
	Close() error
}

// Dir is an open directory on a simple file system.
type Dir interface {
	// ReadEntry reads the next directory entry encoded as EFI_FILE_INFO into buf.
	//
	// It returns *BufferTooSmallError if buf can't hold the entry, and io.EOF
	// after the last entry.
	ReadEntry(buf []byte) (int, error)
	// Rewind resets the directory position to the first entry.
	Rewind() error
	// Open opens a file by path relative to the directory.
	Open(path string) (File, error)
	// Info returns information about the file system the directory belongs to.
	Info() (FileSystemInfo, error)
	Close() error
}

// FileSystemInfo mirrors EFI_FILE_SYSTEM_INFO.
type FileSystemInfo struct {
	Label      string
	VolumeSize uint64
	FreeSpace  uint64
	BlockSize  uint32
	ReadOnly   bool
}

// Firmware is the set of boot services used to discover volumes.
type Firmware interface {
	// LocateBlockDevices returns all handles supporting the block I/O protocol.
	LocateBlockDevices() ([]Handle, error)
	// BlockIO returns the block I/O protocol of the handle.
	BlockIO(Handle) (BlockIO, error)
	// DevicePath returns the device path of the handle.
	DevicePath(Handle) (efi.DevicePath, error)
	// LocateDevicePath finds the handle supporting block I/O closest to the path.
	//
	// It returns the handle and the unmatched remainder of the path.
	LocateDevicePath(efi.DevicePath) (Handle, efi.DevicePath, error)
	// OpenRoot opens the root directory of the simple file system on the handle.
	OpenRoot(Handle) (Dir, error)
}
