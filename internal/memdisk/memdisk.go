// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package memdisk implements a disk held in memory.
package memdisk

import (
	"fmt"
	"io"

	"github.com/siderolabs/go-volscan/firmware"
)

// Disk is a memory backed disk.
//
// It can be written as a partitioning.Device and read through firmware.BlockIO.
type Disk struct {
	data       []byte
	sectorSize uint
	mediaID    uint32
	readOnly   bool
	removable  bool
}

// Option configures the disk.
type Option func(*Disk)

// WithMediaID sets the media ID reported to block I/O readers.
func WithMediaID(id uint32) Option {
	return func(d *Disk) {
		d.mediaID = id
	}
}

// WithReadOnly marks the media read-only.
func WithReadOnly() Option {
	return func(d *Disk) {
		d.readOnly = true
	}
}

// WithRemovable marks the media removable.
func WithRemovable() Option {
	return func(d *Disk) {
		d.removable = true
	}
}

// New creates a zeroed disk of size bytes.
func New(size uint64, sectorSize uint, opts ...Option) *Disk {
	return FromBytes(make([]byte, size), sectorSize, opts...)
}

// FromBytes wraps data, the disk size is truncated to whole sectors.
func FromBytes(data []byte, sectorSize uint, opts ...Option) *Disk {
	d := &Disk{
		data:       data[:uint(len(data))/sectorSize*sectorSize],
		sectorSize: sectorSize,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Bytes returns the underlying buffer.
func (d *Disk) Bytes() []byte {
	return d.data
}

// GetSectorSize returns the sector size.
func (d *Disk) GetSectorSize() uint {
	return d.sectorSize
}

// GetSize returns the disk size in bytes.
func (d *Disk) GetSize() uint64 {
	return uint64(len(d.data))
}

// ReadAt implements io.ReaderAt.
func (d *Disk) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(d.data)) {
		return 0, io.EOF
	}

	n := copy(p, d.data[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// WriteAt implements io.WriterAt.
func (d *Disk) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(d.data)) {
		return 0, fmt.Errorf("write of %d bytes at %d is out of bounds", len(p), off)
	}

	return copy(d.data[off:], p), nil
}

// Media implements firmware.BlockIO.
func (d *Disk) Media() firmware.Media {
	var lastBlock uint64

	if len(d.data) > 0 {
		lastBlock = uint64(len(d.data))/uint64(d.sectorSize) - 1
	}

	return firmware.Media{
		MediaID:        d.mediaID,
		BlockSize:      uint32(d.sectorSize),
		LastBlock:      lastBlock,
		MediaPresent:   len(d.data) > 0,
		RemovableMedia: d.removable,
		ReadOnly:       d.readOnly,
	}
}

// ReadBlocks implements firmware.BlockIO.
func (d *Disk) ReadBlocks(mediaID uint32, lba uint64, buf []byte) error {
	if len(d.data) == 0 {
		return firmware.ErrNoMedia
	}

	if mediaID != d.mediaID {
		return firmware.ErrMediaChanged
	}

	if uint(len(buf))%d.sectorSize != 0 {
		return fmt.Errorf("%w: buffer size %d is not a multiple of the block size", firmware.ErrBadBufferSize, len(buf))
	}

	off := lba * uint64(d.sectorSize)
	if off+uint64(len(buf)) > uint64(len(d.data)) {
		return fmt.Errorf("%w: read past the end of the media at LBA %d", firmware.ErrDeviceError, lba)
	}

	copy(buf, d.data[off:])

	return nil
}

// Partition is a window of a disk, seen as a device of its own.
type Partition struct {
	disk     *Disk
	firstLBA uint64
	lastLBA  uint64
}

// Partition returns a view of the LBA range of the disk.
func (d *Disk) Partition(firstLBA, lastLBA uint64) *Partition {
	return &Partition{
		disk:     d,
		firstLBA: firstLBA,
		lastLBA:  lastLBA,
	}
}

// Media implements firmware.BlockIO.
func (p *Partition) Media() firmware.Media {
	media := p.disk.Media()
	media.LastBlock = p.lastLBA - p.firstLBA
	media.LogicalPartition = true

	return media
}

// ReadBlocks implements firmware.BlockIO.
func (p *Partition) ReadBlocks(mediaID uint32, lba uint64, buf []byte) error {
	if lba*uint64(p.disk.sectorSize)+uint64(len(buf)) > (p.lastLBA-p.firstLBA+1)*uint64(p.disk.sectorSize) {
		return fmt.Errorf("%w: read past the end of the partition at LBA %d", firmware.ErrDeviceError, lba)
	}

	return p.disk.ReadBlocks(mediaID, p.firstLBA+lba, buf)
}
