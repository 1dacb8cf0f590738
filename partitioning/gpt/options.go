// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gpt

import "github.com/google/uuid"

// Options configure a new table.
type Options struct {
	// Alignment of partition starts in bytes, defaults to the sector size.
	Alignment uint

	// DiskGUID is generated if not set.
	DiskGUID uuid.UUID

	// BootablePMBR sets the boot indicator on the protective MBR entry, some
	// legacy firmware doesn't boot GPT disks without it.
	BootablePMBR bool
}

// Option sets an option.
type Option func(*Options)

// WithAlignment sets the partition alignment in bytes.
func WithAlignment(alignment uint) Option {
	return func(o *Options) {
		o.Alignment = alignment
	}
}

// WithDiskGUID sets the disk GUID.
func WithDiskGUID(guid uuid.UUID) Option {
	return func(o *Options) {
		o.DiskGUID = guid
	}
}

// WithBootablePMBR marks the protective MBR entry active.
func WithBootablePMBR() Option {
	return func(o *Options) {
		o.BootablePMBR = true
	}
}

// Attribute bits.
const (
	AttrRequired           = 1 << 0
	AttrNoBlockIO          = 1 << 1
	AttrLegacyBIOSBootable = 1 << 2
)

// PartitionOptions configure a partition.
type PartitionOptions struct {
	UniqueGUID uuid.UUID
	Attributes uint64
}

// PartitionOption sets a partition option.
type PartitionOption func(*PartitionOptions)

// WithUniqueGUID sets the unique partition GUID, which is generated otherwise.
func WithUniqueGUID(guid uuid.UUID) PartitionOption {
	return func(o *PartitionOptions) {
		o.UniqueGUID = guid
	}
}

// WithAttributes sets attribute bits.
func WithAttributes(attrs uint64) PartitionOption {
	return func(o *PartitionOptions) {
		o.Attributes |= attrs
	}
}

// WithLegacyBIOSBootableAttribute sets or clears the legacy BIOS bootable attribute.
func WithLegacyBIOSBootableAttribute(val bool) PartitionOption {
	return func(o *PartitionOptions) {
		if val {
			o.Attributes |= AttrLegacyBIOSBootable
		} else {
			o.Attributes &^= AttrLegacyBIOSBootable
		}
	}
}
