// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package extpart_test

import (
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/canonical/go-efilib/mbr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-volscan/extpart"
	"github.com/siderolabs/go-volscan/internal/memdisk"
	"github.com/siderolabs/go-volscan/partitioning"
	mbrlayout "github.com/siderolabs/go-volscan/partitioning/mbr"
)

var errRead = errors.New("read error")

// sectorMap is a sparse disk, missing sectors fail to read.
type sectorMap map[uint64][]byte

func (m sectorMap) ReadSector(lba uint64, buf []byte) error {
	sector, ok := m[lba]
	if !ok {
		return errRead
	}

	copy(buf, sector)

	return nil
}

type ebrEntry struct {
	flag  byte
	typ   byte
	start uint32
	size  uint32
}

func ebr(entries ...ebrEntry) []byte {
	buf := make([]byte, 512)

	for i, e := range entries {
		off := 446 + i*16

		buf[off] = e.flag
		buf[off+4] = e.typ
		binary.LittleEndian.PutUint32(buf[off+8:], e.start)
		binary.LittleEndian.PutUint32(buf[off+12:], e.size)
	}

	buf[510], buf[511] = 0x55, 0xAA

	return buf
}

func extended(start uint32) mbr.PartitionEntry {
	return mbr.PartitionEntry{Type: partitioning.TypeExtendedLBA, StartingLBA: start, NumberOfSectors: 100000}
}

func offsets(logicals []extpart.Logical) []uint64 {
	result := make([]uint64, 0, len(logicals))

	for _, l := range logicals {
		result = append(result, l.Offset)
	}

	return result
}

func TestWalkWrittenChain(t *testing.T) {
	t.Parallel()

	disk := memdisk.New(8192*512, 512)

	table := mbrlayout.New(disk, 0x12345678)
	require.NoError(t, table.AddPrimary(mbrlayout.Partition{Type: partitioning.TypeLinux, FirstLBA: 64, Sectors: 1984, Bootable: true}))
	require.NoError(t, table.AddLogical(mbrlayout.Partition{Type: partitioning.TypeLinux, FirstLBA: 2049, Sectors: 1000}))
	require.NoError(t, table.AddLogical(mbrlayout.Partition{Type: partitioning.TypeNTFS, FirstLBA: 4097, Sectors: 1000}))
	require.NoError(t, table.AddLogical(mbrlayout.Partition{Type: partitioning.TypeFAT32LBA, FirstLBA: 6145, Sectors: 500}))
	require.NoError(t, table.Write())

	record, err := mbr.ReadRecord(io.NewSectionReader(disk, 0, 512))
	require.NoError(t, err)

	entries := record.Partitions

	assert.EqualValues(t, 0x12345678, record.UniqueSignature)
	assert.EqualValues(t, 0x80, entries[0].BootIndicator)
	assert.EqualValues(t, partitioning.TypeExtendedLBA, entries[1].Type)
	assert.EqualValues(t, 2048, entries[1].StartingLBA)

	logicals, err := extpart.Walk(extpart.NewBlockReader(disk), entries[1], 4)
	require.NoError(t, err)
	require.Len(t, logicals, 3)

	assert.Equal(t, []uint64{2049, 4097, 6145}, offsets(logicals))
	assert.Equal(t, "Partition 5", logicals[0].Name())
	assert.Equal(t, "Partition 7", logicals[2].Name())
	assert.EqualValues(t, partitioning.TypeNTFS, logicals[1].Entry.Type)
	assert.EqualValues(t, 500, logicals[2].Entry.NumberOfSectors)
}

func TestWalk(t *testing.T) {
	t.Parallel()

	longChain := sectorMap{}
	for i := range uint32(extpart.MaxChainLength + 10) {
		longChain[uint64(1000+i)] = ebr(
			ebrEntry{typ: partitioning.TypeLinux, start: 1, size: 1},
			ebrEntry{typ: partitioning.TypeExtendedCHS, start: i + 1, size: 2},
		)
	}

	for _, test := range []struct { //nolint:govet
		name    string
		sectors sectorMap
		start   uint32

		expectedOffsets []uint64
		expectedErr     error
	}{
		{
			name:  "zero start",
			start: 0,
		},
		{
			name:  "read failure",
			start: 1000,
			sectors: sectorMap{
				1000: ebr(
					ebrEntry{typ: partitioning.TypeLinux, start: 63, size: 100},
					ebrEntry{typ: partitioning.TypeExtendedCHS, start: 500, size: 200},
				),
				1500: ebr(
					ebrEntry{typ: partitioning.TypeLinux, start: 63, size: 100},
					ebrEntry{typ: partitioning.TypeExtendedCHS, start: 2000, size: 200},
				),
			},
			expectedOffsets: []uint64{1063, 1563},
			expectedErr:     errRead,
		},
		{
			name:  "zero link ends the chain",
			start: 1000,
			sectors: sectorMap{
				1000: ebr(
					ebrEntry{typ: partitioning.TypeLinux, start: 63, size: 100},
					ebrEntry{typ: partitioning.TypeLinuxExtended, start: 0, size: 200},
				),
			},
			expectedOffsets: []uint64{1063},
		},
		{
			name:  "cycle",
			start: 1000,
			sectors: sectorMap{
				1000: ebr(
					ebrEntry{typ: partitioning.TypeLinux, start: 63, size: 100},
					ebrEntry{typ: partitioning.TypeExtendedCHS, start: 500, size: 200},
				),
				1500: ebr(
					ebrEntry{typ: partitioning.TypeLinux, start: 63, size: 100},
					ebrEntry{typ: partitioning.TypeExtendedLBA, start: 1, size: 200},
				),
				1001: ebr(
					ebrEntry{typ: partitioning.TypeLinux, start: 10, size: 10},
					ebrEntry{typ: partitioning.TypeExtendedLBA, start: 500, size: 200},
				),
			},
			expectedOffsets: []uint64{1063, 1563, 1011},
		},
		{
			name:  "bad signature",
			start: 1000,
			sectors: sectorMap{
				1000: ebr(
					ebrEntry{typ: partitioning.TypeLinux, start: 63, size: 100},
					ebrEntry{typ: partitioning.TypeExtendedCHS, start: 500, size: 200},
				),
				1500: make([]byte, 512),
			},
			expectedOffsets: []uint64{1063},
			expectedErr:     extpart.ErrBadSignature,
		},
		{
			name:  "invalid flag stops the record",
			start: 1000,
			sectors: sectorMap{
				1000: ebr(
					ebrEntry{typ: partitioning.TypeLinux, start: 63, size: 100},
					ebrEntry{flag: 0x11, typ: partitioning.TypeExtendedCHS, start: 500, size: 200},
				),
			},
			expectedOffsets: []uint64{1063},
		},
		{
			name:  "empty entry stops the record",
			start: 1000,
			sectors: sectorMap{
				1000: ebr(
					ebrEntry{typ: partitioning.TypeLinux, start: 63, size: 0},
					ebrEntry{typ: partitioning.TypeLinux, start: 200, size: 100},
				),
			},
		},
		{
			name:            "too long",
			start:           1000,
			sectors:         longChain,
			expectedOffsets: longChainOffsets(),
			expectedErr:     extpart.ErrChainTooLong,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			logicals, err := extpart.Walk(test.sectors, extended(test.start), 4)

			if test.expectedErr != nil {
				require.ErrorIs(t, err, test.expectedErr)
			} else {
				require.NoError(t, err)
			}

			if test.expectedOffsets == nil {
				assert.Empty(t, logicals)

				return
			}

			assert.Equal(t, test.expectedOffsets, offsets(logicals))

			for i, l := range logicals {
				assert.Equal(t, 4+i, l.Index)
			}
		})
	}
}

func longChainOffsets() []uint64 {
	result := make([]uint64, 0, extpart.MaxChainLength)

	for i := range uint64(extpart.MaxChainLength) {
		result = append(result, 1000+i+1)
	}

	return result
}
