// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gpt_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-volscan/internal/gptstructs"
	"github.com/siderolabs/go-volscan/internal/gptutil"
	"github.com/siderolabs/go-volscan/partitioning"
	"github.com/siderolabs/go-volscan/partitioning/gpt"
)

const MiB = 1024 * 1024

var (
	espType   = uuid.MustParse("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")
	linuxType = uuid.MustParse("0FC63DAF-8483-4772-8E79-3D69D8477DE4")
)

func createImage(t *testing.T, size int64, sectorSize uint) *partitioning.FileDevice {
	t.Helper()

	f, err := os.Create(filepath.Join(t.TempDir(), "disk.img"))
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, f.Close())
	})

	require.NoError(t, f.Truncate(size))

	dev, err := partitioning.NewFileDevice(f, sectorSize)
	require.NoError(t, err)

	return dev
}

func TestWriteRead(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name       string
		sectorSize uint
	}{
		{"512n", 512},
		{"4Kn", 4096},
	} {
		sectorSize := test.sectorSize

		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			dev := createImage(t, 64*MiB, sectorSize)

			// boot code must survive the protective MBR
			_, err := dev.WriteAt([]byte{0xEB, 0x63, 0x90}, 0)
			require.NoError(t, err)

			diskGUID := uuid.MustParse("D815C311-BDED-43FE-A91A-DCBE0D8025D5")

			table, err := gpt.New(dev, gpt.WithAlignment(MiB), gpt.WithDiskGUID(diskGUID), gpt.WithBootablePMBR())
			require.NoError(t, err)
			assert.Equal(t, diskGUID, table.DiskGUID())

			partGUID := uuid.MustParse("3C4BE5A8-D8C3-4E5E-9A2A-8B1D06C4EB4C")

			idx, esp, err := table.AllocatePartition(16*MiB, "EFI", espType, gpt.WithUniqueGUID(partGUID))
			require.NoError(t, err)
			assert.Equal(t, 1, idx)
			assert.EqualValues(t, MiB/sectorSize, esp.FirstLBA)
			assert.EqualValues(t, (17*MiB)/sectorSize-1, esp.LastLBA)

			idx, root, err := table.AllocatePartition(32*MiB, "root", linuxType, gpt.WithAttributes(1<<60), gpt.WithLegacyBIOSBootableAttribute(true))
			require.NoError(t, err)
			assert.Equal(t, 2, idx)
			assert.Equal(t, esp.LastLBA+1, root.FirstLBA)
			assert.EqualValues(t, 1<<60|gpt.AttrLegacyBIOSBootable, root.Attributes)

			_, _, err = table.AllocatePartition(32*MiB, "too big", linuxType)
			require.ErrorIs(t, err, gpt.ErrNoSpace)

			_, _, err = table.AllocatePartition(MiB, strings.Repeat("n", 37), linuxType)
			require.Error(t, err)

			idx, rest, err := table.AllocatePartition(0, "rest", linuxType)
			require.NoError(t, err)
			assert.Equal(t, 3, idx)
			assert.EqualValues(t, (49*MiB)/sectorSize, rest.FirstLBA)

			_, _, err = table.AllocatePartition(0, "none left", linuxType)
			require.ErrorIs(t, err, gpt.ErrNoSpace)

			require.Len(t, table.Partitions(), 3)
			require.NoError(t, table.Write())

			lastLBA, ok := gptutil.LastLBA(dev)
			require.True(t, ok)

			assert.Equal(t, lastLBA-uint64((16*1024+sectorSize-1)/sectorSize)-1, rest.LastLBA)

			hdr, entries, err := gptstructs.ReadPrimaryOrBackup(dev, lastLBA)
			require.NoError(t, err)
			assert.EqualValues(t, 1, hdr.Get_my_lba())
			assert.Equal(t, diskGUID[:], gptutil.GUIDToUUID(hdr.Get_disk_guid()))
			assert.Len(t, entries, gptstructs.NumEntries)

			assert.Equal(t, partGUID[:], gptutil.GUIDToUUID(entries[0].Get_unique_partition_guid()))

			name, err := entries[1].Name()
			require.NoError(t, err)
			assert.Equal(t, "root", name)
			assert.EqualValues(t, 1<<60|gpt.AttrLegacyBIOSBootable, entries[1].Get_attributes())
			assert.True(t, entries[3].IsUnused())

			pmbr := make([]byte, 512)
			_, err = dev.ReadAt(pmbr, 0)
			require.NoError(t, err)

			assert.Equal(t, []byte{0xEB, 0x63, 0x90}, pmbr[:3])
			assert.Equal(t, []byte{0x55, 0xAA}, pmbr[510:])
			assert.EqualValues(t, 0x80, pmbr[446])
			assert.EqualValues(t, partitioning.TypeGPTProtective, pmbr[446+4])

			// destroy the primary header, the backup should be used
			_, err = dev.WriteAt(make([]byte, sectorSize), int64(sectorSize))
			require.NoError(t, err)

			hdr, entries, err = gptstructs.ReadPrimaryOrBackup(dev, lastLBA)
			require.NoError(t, err)
			assert.Equal(t, lastLBA, hdr.Get_my_lba())
			assert.False(t, entries[0].IsUnused())

			// and without the backup there is no table
			_, err = dev.WriteAt(make([]byte, sectorSize), int64(lastLBA)*int64(sectorSize))
			require.NoError(t, err)

			_, _, err = gptstructs.ReadPrimaryOrBackup(dev, lastLBA)

			var invalid *gptstructs.InvalidHeaderError

			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, "no signature", invalid.Reason)
		})
	}
}

func TestTooSmall(t *testing.T) {
	t.Parallel()

	dev := createImage(t, 16*512, 512)

	_, err := gpt.New(dev)
	require.ErrorIs(t, err, gpt.ErrDeviceTooSmall)
}
