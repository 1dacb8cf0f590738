// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gptstructs

import "encoding/binary"

// HEADER_SIZE is the size of the GPT header as defined by UEFI.
//
//nolint:revive,stylecheck
const HEADER_SIZE = 92

// Header is the GPT header.
type Header []byte

// Get_signature returns the header signature.
//
//nolint:revive,stylecheck
func (h Header) Get_signature() uint64 {
	return binary.LittleEndian.Uint64(h[0:8])
}

// Put_signature sets the header signature.
//
//nolint:revive,stylecheck
func (h Header) Put_signature(v uint64) {
	binary.LittleEndian.PutUint64(h[0:8], v)
}

// Get_revision returns the header revision.
//
//nolint:revive,stylecheck
func (h Header) Get_revision() uint32 {
	return binary.LittleEndian.Uint32(h[8:12])
}

// Put_revision sets the header revision.
//
//nolint:revive,stylecheck
func (h Header) Put_revision(v uint32) {
	binary.LittleEndian.PutUint32(h[8:12], v)
}

// Get_header_size returns the header size.
//
//nolint:revive,stylecheck
func (h Header) Get_header_size() uint32 {
	return binary.LittleEndian.Uint32(h[12:16])
}

// Put_header_size sets the header size.
//
//nolint:revive,stylecheck
func (h Header) Put_header_size(v uint32) {
	binary.LittleEndian.PutUint32(h[12:16], v)
}

// Get_header_crc32 returns the header checksum.
//
//nolint:revive,stylecheck
func (h Header) Get_header_crc32() uint32 {
	return binary.LittleEndian.Uint32(h[16:20])
}

// Put_header_crc32 sets the header checksum.
//
//nolint:revive,stylecheck
func (h Header) Put_header_crc32(v uint32) {
	binary.LittleEndian.PutUint32(h[16:20], v)
}

// Get_my_lba returns the LBA of this header.
//
//nolint:revive,stylecheck
func (h Header) Get_my_lba() uint64 {
	return binary.LittleEndian.Uint64(h[24:32])
}

// Put_my_lba sets the LBA of this header.
//
//nolint:revive,stylecheck
func (h Header) Put_my_lba(v uint64) {
	binary.LittleEndian.PutUint64(h[24:32], v)
}

// Get_alternate_lba returns the LBA of the other header.
//
//nolint:revive,stylecheck
func (h Header) Get_alternate_lba() uint64 {
	return binary.LittleEndian.Uint64(h[32:40])
}

// Put_alternate_lba sets the LBA of the other header.
//
//nolint:revive,stylecheck
func (h Header) Put_alternate_lba(v uint64) {
	binary.LittleEndian.PutUint64(h[32:40], v)
}

// Get_first_usable_lba returns the first usable LBA.
//
//nolint:revive,stylecheck
func (h Header) Get_first_usable_lba() uint64 {
	return binary.LittleEndian.Uint64(h[40:48])
}

// Put_first_usable_lba sets the first usable LBA.
//
//nolint:revive,stylecheck
func (h Header) Put_first_usable_lba(v uint64) {
	binary.LittleEndian.PutUint64(h[40:48], v)
}

// Get_last_usable_lba returns the last usable LBA.
//
//nolint:revive,stylecheck
func (h Header) Get_last_usable_lba() uint64 {
	return binary.LittleEndian.Uint64(h[48:56])
}

// Put_last_usable_lba sets the last usable LBA.
//
//nolint:revive,stylecheck
func (h Header) Put_last_usable_lba(v uint64) {
	binary.LittleEndian.PutUint64(h[48:56], v)
}

// Get_disk_guid returns the disk GUID (on-disk byte order).
//
//nolint:revive,stylecheck
func (h Header) Get_disk_guid() []byte {
	return h[56:72]
}

// Put_disk_guid sets the disk GUID (on-disk byte order).
//
//nolint:revive,stylecheck
func (h Header) Put_disk_guid(v []byte) {
	copy(h[56:72], v)
}

// Get_partition_entries_lba returns the starting LBA of the partition entries.
//
//nolint:revive,stylecheck
func (h Header) Get_partition_entries_lba() uint64 {
	return binary.LittleEndian.Uint64(h[72:80])
}

// Put_partition_entries_lba sets the starting LBA of the partition entries.
//
//nolint:revive,stylecheck
func (h Header) Put_partition_entries_lba(v uint64) {
	binary.LittleEndian.PutUint64(h[72:80], v)
}

// Get_num_partition_entries returns the number of partition entries.
//
//nolint:revive,stylecheck
func (h Header) Get_num_partition_entries() uint32 {
	return binary.LittleEndian.Uint32(h[80:84])
}

// Put_num_partition_entries sets the number of partition entries.
//
//nolint:revive,stylecheck
func (h Header) Put_num_partition_entries(v uint32) {
	binary.LittleEndian.PutUint32(h[80:84], v)
}

// Get_sizeof_partition_entry returns the size of a partition entry.
//
//nolint:revive,stylecheck
func (h Header) Get_sizeof_partition_entry() uint32 {
	return binary.LittleEndian.Uint32(h[84:88])
}

// Put_sizeof_partition_entry sets the size of a partition entry.
//
//nolint:revive,stylecheck
func (h Header) Put_sizeof_partition_entry(v uint32) {
	binary.LittleEndian.PutUint32(h[84:88], v)
}

// Get_partition_entry_array_crc32 returns the checksum of the partition entries.
//
//nolint:revive,stylecheck
func (h Header) Get_partition_entry_array_crc32() uint32 {
	return binary.LittleEndian.Uint32(h[88:92])
}

// Put_partition_entry_array_crc32 sets the checksum of the partition entries.
//
//nolint:revive,stylecheck
func (h Header) Put_partition_entry_array_crc32(v uint32) {
	binary.LittleEndian.PutUint32(h[88:92], v)
}
