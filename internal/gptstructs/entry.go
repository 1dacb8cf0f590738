// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gptstructs

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

// ENTRY_SIZE is the size of a GPT partition entry.
//
//nolint:revive,stylecheck
const ENTRY_SIZE = 128

// Entry is a GPT partition entry.
type Entry []byte

// Get_partition_type_guid returns the partition type GUID (on-disk byte order).
//
//nolint:revive,stylecheck
func (e Entry) Get_partition_type_guid() []byte {
	return e[0:16]
}

// Put_partition_type_guid sets the partition type GUID (on-disk byte order).
//
//nolint:revive,stylecheck
func (e Entry) Put_partition_type_guid(v []byte) {
	copy(e[0:16], v)
}

// Get_unique_partition_guid returns the unique partition GUID (on-disk byte order).
//
//nolint:revive,stylecheck
func (e Entry) Get_unique_partition_guid() []byte {
	return e[16:32]
}

// Put_unique_partition_guid sets the unique partition GUID (on-disk byte order).
//
//nolint:revive,stylecheck
func (e Entry) Put_unique_partition_guid(v []byte) {
	copy(e[16:32], v)
}

// Get_starting_lba returns the first LBA of the partition.
//
//nolint:revive,stylecheck
func (e Entry) Get_starting_lba() uint64 {
	return binary.LittleEndian.Uint64(e[32:40])
}

// Put_starting_lba sets the first LBA of the partition.
//
//nolint:revive,stylecheck
func (e Entry) Put_starting_lba(v uint64) {
	binary.LittleEndian.PutUint64(e[32:40], v)
}

// Get_ending_lba returns the last LBA of the partition (inclusive).
//
//nolint:revive,stylecheck
func (e Entry) Get_ending_lba() uint64 {
	return binary.LittleEndian.Uint64(e[40:48])
}

// Put_ending_lba sets the last LBA of the partition (inclusive).
//
//nolint:revive,stylecheck
func (e Entry) Put_ending_lba(v uint64) {
	binary.LittleEndian.PutUint64(e[40:48], v)
}

// Get_attributes returns the partition attribute bits.
//
//nolint:revive,stylecheck
func (e Entry) Get_attributes() uint64 {
	return binary.LittleEndian.Uint64(e[48:56])
}

// Put_attributes sets the partition attribute bits.
//
//nolint:revive,stylecheck
func (e Entry) Put_attributes(v uint64) {
	binary.LittleEndian.PutUint64(e[48:56], v)
}

// Get_partition_name returns the UTF-16LE partition name.
//
//nolint:revive,stylecheck
func (e Entry) Get_partition_name() []byte {
	return e[56:128]
}

// Put_partition_name sets the UTF-16LE partition name.
//
//nolint:revive,stylecheck
func (e Entry) Put_partition_name(v []byte) {
	clear(e[56:128])
	copy(e[56:128], v)
}

var zeroGUID = make([]byte, 16)

// IsUnused returns true for entries with a zero type GUID.
func (e Entry) IsUnused() bool {
	return bytes.Equal(e.Get_partition_type_guid(), zeroGUID)
}

// Name decodes the UTF-16LE partition name.
func (e Entry) Name() (string, error) {
	name, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(e.Get_partition_name())
	if err != nil {
		return "", err
	}

	if idx := bytes.IndexByte(name, 0); idx >= 0 {
		name = name[:idx]
	}

	return string(name), nil
}
