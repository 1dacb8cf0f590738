// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gptstructs

import (
	"bytes"
	"errors"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSectorSize = 512
	testLastLBA    = 99
)

type memDisk struct {
	*bytes.Reader
}

func (memDisk) GetSectorSize() uint {
	return testSectorSize
}

// buildDisk returns a disk with a valid primary header, mutated by fn before the checksum is computed.
func buildDisk(fn func(Header)) []byte {
	disk := make([]byte, (testLastLBA+1)*testSectorSize)

	entries := disk[2*testSectorSize : 2*testSectorSize+NumEntries*ENTRY_SIZE]
	Entry(entries[:ENTRY_SIZE]).Put_partition_type_guid(bytes.Repeat([]byte{0xAA}, 16))

	hdr := Header(disk[testSectorSize : 2*testSectorSize])
	hdr.Put_signature(HeaderSignature)
	hdr.Put_revision(0x00010000)
	hdr.Put_header_size(HEADER_SIZE)
	hdr.Put_my_lba(PrimaryLBA)
	hdr.Put_alternate_lba(testLastLBA)
	hdr.Put_first_usable_lba(34)
	hdr.Put_last_usable_lba(66)
	hdr.Put_partition_entries_lba(2)
	hdr.Put_num_partition_entries(NumEntries)
	hdr.Put_sizeof_partition_entry(ENTRY_SIZE)
	hdr.Put_partition_entry_array_crc32(crc32.ChecksumIEEE(entries))

	if fn != nil {
		fn(hdr)
	}

	hdr.Put_header_crc32(hdr.CalculateChecksum())

	return disk
}

func TestReadHeader(t *testing.T) {
	t.Parallel()

	for _, test := range []struct { //nolint:govet
		name   string
		mutate func(Header)

		expectedReason string
	}{
		{
			name: "valid",
		},
		{
			name:           "no signature",
			mutate:         func(h Header) { h.Put_signature(0) },
			expectedReason: "no signature",
		},
		{
			name:           "short header",
			mutate:         func(h Header) { h.Put_header_size(64) },
			expectedReason: "header size 64",
		},
		{
			name:           "wrong lba",
			mutate:         func(h Header) { h.Put_my_lba(2) },
			expectedReason: "header claims LBA 2",
		},
		{
			name:           "usable range past the end",
			mutate:         func(h Header) { h.Put_last_usable_lba(100) },
			expectedReason: "usable range 34-100",
		},
		{
			name:           "header inside usable range",
			mutate:         func(h Header) { h.Put_first_usable_lba(1) },
			expectedReason: "header inside the usable range",
		},
		{
			name:           "entry size",
			mutate:         func(h Header) { h.Put_sizeof_partition_entry(256) },
			expectedReason: "entry size 256",
		},
		{
			name:           "no entries",
			mutate:         func(h Header) { h.Put_num_partition_entries(0) },
			expectedReason: "0 entries",
		},
		{
			name:           "entry checksum",
			mutate:         func(h Header) { h.Put_partition_entry_array_crc32(1) },
			expectedReason: "entry array checksum mismatch",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			disk := memDisk{bytes.NewReader(buildDisk(test.mutate))}

			hdr, entries, err := ReadHeader(disk, PrimaryLBA, testLastLBA)

			if test.expectedReason == "" {
				require.NoError(t, err)
				assert.EqualValues(t, testLastLBA, hdr.Get_alternate_lba())
				require.Len(t, entries, NumEntries)
				assert.False(t, entries[0].IsUnused())
				assert.True(t, entries[1].IsUnused())

				return
			}

			var invalid *InvalidHeaderError

			require.ErrorAs(t, err, &invalid)
			assert.EqualValues(t, PrimaryLBA, invalid.LBA)
			assert.Equal(t, test.expectedReason, invalid.Reason)
		})
	}
}

func TestHeaderChecksumMismatch(t *testing.T) {
	t.Parallel()

	raw := buildDisk(nil)
	raw[testSectorSize+60]++ // inside the disk GUID

	_, _, err := ReadPrimaryOrBackup(memDisk{bytes.NewReader(raw)}, testLastLBA)

	var invalid *InvalidHeaderError

	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "header checksum mismatch", invalid.Reason)
	assert.ErrorContains(t, err, "LBA 99: no signature")
}

func TestReadHeaderShortRead(t *testing.T) {
	t.Parallel()

	_, _, err := ReadHeader(memDisk{bytes.NewReader(make([]byte, testSectorSize))}, PrimaryLBA, testLastLBA)
	require.Error(t, err)

	var invalid *InvalidHeaderError

	assert.False(t, errors.As(err, &invalid))
}
