// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package hostfw_test

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/kdomanski/iso9660"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/go-volscan/container"
	"github.com/siderolabs/go-volscan/gptcache"
	"github.com/siderolabs/go-volscan/hostfw"
	"github.com/siderolabs/go-volscan/partitioning"
	"github.com/siderolabs/go-volscan/partitioning/gpt"
	"github.com/siderolabs/go-volscan/partitioning/mbr"
	"github.com/siderolabs/go-volscan/scan"
	"github.com/siderolabs/go-volscan/volume"
)

const MiB = 1024 * 1024

var apfsType = uuid.MustParse("7C3457EF-0000-11AA-AA11-00306543ECAC")

func fat32Header(serial uint32) []byte {
	sector := make([]byte, 512)

	copy(sector, []byte{0xEB, 0x58, 0x90})
	copy(sector[3:], "MSDOS5.0")
	binary.LittleEndian.PutUint32(sector[0x43:], serial)
	copy(sector[0x47:], "NO NAME    ")
	copy(sector[0x52:], "FAT32   ")
	sector[510], sector[511] = 0x55, 0xAA

	return sector
}

func createImage(t *testing.T, size int64) (*os.File, *partitioning.FileDevice) {
	t.Helper()

	f, err := os.Create(filepath.Join(t.TempDir(), "disk.img"))
	require.NoError(t, err)

	t.Cleanup(func() { f.Close() }) //nolint:errcheck

	require.NoError(t, f.Truncate(size))

	dev, err := partitioning.NewFileDevice(f, 512)
	require.NoError(t, err)

	return f, dev
}

// gptImage creates an image with an ESP and a second partition of partType.
func gptImage(t *testing.T, partType uuid.UUID) string {
	t.Helper()

	f, dev := createImage(t, 16*MiB)

	table, err := gpt.New(dev, gpt.WithAlignment(MiB))
	require.NoError(t, err)

	_, esp, err := table.AllocatePartition(4*MiB, "EFI System", container.ESPType)
	require.NoError(t, err)

	_, _, err = table.AllocatePartition(4*MiB, "data", partType)
	require.NoError(t, err)

	require.NoError(t, table.Write())

	_, err = f.WriteAt(fat32Header(0xDEADBEEF), int64(esp.FirstLBA)*512)
	require.NoError(t, err)

	return f.Name()
}

func espRoot(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "EFI", "BOOT"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "EFI", "BOOT", "BOOTX64.EFI"), []byte("MZ"), 0o644))

	return dir
}

func discover(t *testing.T, m *hostfw.Machine, opts ...scan.Option) (*hostfw.Firmware, *scan.DiscoveryState) {
	t.Helper()

	fw, err := hostfw.New(m, hostfw.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, fw.Close()) })

	state, err := scan.Discover(fw, append([]scan.Option{
		scan.WithLogger(zaptest.NewLogger(t)),
		scan.WithPartitionCache(gptcache.New(gptcache.WithLogger(zaptest.NewLogger(t)))),
	}, opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, state.Close()) })

	return fw, state
}

func TestGPTImage(t *testing.T) {
	t.Parallel()

	for _, test := range []struct { //nolint:govet
		name       string
		compress   bool
		bus        hostfw.Bus
		expectKind volume.DiskKind
	}{
		{
			name:       "raw",
			bus:        hostfw.BusNVMe,
			expectKind: volume.DiskInternal,
		},
		{
			name:       "zstd",
			compress:   true,
			bus:        hostfw.BusUSB,
			expectKind: volume.DiskExternal,
		},
		{
			name:       "firewire",
			bus:        hostfw.BusFirewire,
			expectKind: volume.DiskExternal,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			image := gptImage(t, uuid.MustParse("0FC63DAF-8483-4772-8E79-3D69D8477DE4"))

			if test.compress {
				image = compressImage(t, image)
			}

			_, state := discover(t, &hostfw.Machine{
				Disks: []hostfw.Disk{
					{
						Image: image,
						Bus:   test.bus,
						Partitions: []hostfw.Partition{
							{Number: 1, Root: espRoot(t), Label: "ESP"},
						},
					},
				},
			})

			require.NoError(t, state.Defects)
			require.Equal(t, 3, state.Volumes.Len())

			disk := state.Volumes.At(0)
			assert.True(t, disk.IsWholeDisk())
			assert.EqualValues(t, 16*MiB, disk.Size)

			esp := state.Volumes.At(1)
			assert.Equal(t, volume.FSFAT, esp.FSType)
			assert.Equal(t, container.ESPType, esp.PartTypeGUID)
			assert.Equal(t, uuid.UUID{0xEF, 0xBE, 0xAD, 0xDE}, esp.VolUUID)
			assert.Equal(t, "ESP", esp.Name())
			assert.Equal(t, test.expectKind, esp.DiskKind)
			assert.EqualValues(t, 4*MiB, esp.Size)
			require.True(t, esp.IsReadable)

			f, err := esp.RootDir.Open(`\EFI\BOOT\BOOTX64.EFI`)
			require.NoError(t, err)

			contents, err := io.ReadAll(f)
			require.NoError(t, err)
			require.NoError(t, f.Close())

			assert.Equal(t, "MZ", string(contents))

			_, err = esp.RootDir.Open(`\..\etc\passwd`)
			assert.Error(t, err)

			data := state.Volumes.At(2)
			assert.Equal(t, "data", data.PartName)
			assert.False(t, data.IsReadable)
		})
	}
}

func compressImage(t *testing.T, image string) string {
	t.Helper()

	in, err := os.Open(image)
	require.NoError(t, err)

	defer in.Close() //nolint:errcheck

	out, err := os.Create(image + ".zst")
	require.NoError(t, err)

	defer out.Close() //nolint:errcheck

	zw, err := zstd.NewWriter(out)
	require.NoError(t, err)

	_, err = io.Copy(zw, in)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return out.Name()
}

func TestMBRImage(t *testing.T) {
	t.Parallel()

	f, dev := createImage(t, 8*MiB)

	table := mbr.New(dev, 0x1234ABCD)
	require.NoError(t, table.AddPrimary(mbr.Partition{Type: 0x0c, Bootable: true, FirstLBA: 2048, Sectors: 4096}))
	require.NoError(t, table.AddLogical(mbr.Partition{Type: 0x83, FirstLBA: 6145, Sectors: 2048}))
	require.NoError(t, table.Write())

	_, err := f.WriteAt(fat32Header(0x01020304), 2048*512)
	require.NoError(t, err)

	_, state := discover(t, &hostfw.Machine{
		Disks: []hostfw.Disk{
			{Image: f.Name(), Bus: hostfw.BusSATA},
		},
	})

	require.NoError(t, state.Defects)
	require.Equal(t, 3, state.Volumes.Len())

	primary := state.Volumes.At(1)
	assert.Equal(t, volume.FSFAT, primary.FSType)
	assert.EqualValues(t, 4096*512, primary.Size)
	assert.True(t, primary.IsMBRPartition)
	assert.Zero(t, primary.MBRPartitionIndex)

	logical := state.Volumes.At(2)
	assert.Zero(t, logical.Handle)
	assert.True(t, logical.IsMBRPartition)
	assert.Equal(t, 4, logical.MBRPartitionIndex)
	assert.EqualValues(t, 6145, logical.BlockIOOffset)
}

func TestISOImage(t *testing.T) {
	t.Parallel()

	w, err := iso9660.NewWriter()
	require.NoError(t, err)

	t.Cleanup(func() { w.Cleanup() }) //nolint:errcheck

	require.NoError(t, w.AddFile(strings.NewReader("menuentry"), "boot/grub.cfg"))
	require.NoError(t, w.AddFile(strings.NewReader("hello"), "README.TXT"))

	f, err := os.Create(filepath.Join(t.TempDir(), "cd.iso"))
	require.NoError(t, err)

	require.NoError(t, w.WriteTo(f, "VOLSCAN"))
	require.NoError(t, f.Close())

	_, state := discover(t, &hostfw.Machine{
		Disks: []hostfw.Disk{
			{Image: f.Name(), Bus: hostfw.BusCDROM},
		},
	})

	require.NoError(t, state.Defects)
	require.Equal(t, 1, state.Volumes.Len())

	cd := state.Volumes.At(0)
	assert.Equal(t, volume.DiskOptical, cd.DiskKind)
	assert.Equal(t, "VOLSCAN", cd.Name())
	require.True(t, cd.IsReadable)

	readme, err := cd.RootDir.Open(`\readme.txt`)
	require.NoError(t, err)

	contents, err := io.ReadAll(readme)
	require.NoError(t, err)
	require.NoError(t, readme.Close())

	assert.Equal(t, "hello", string(contents))
}

func TestAPFSContainer(t *testing.T) {
	t.Parallel()

	dataUUID := uuid.MustParse("9a1c5f0e-3b7d-4c2a-8e6f-0d1b2c3a4e5f")

	fw, state := discover(t, &hostfw.Machine{
		Disks: []hostfw.Disk{
			{
				Image: gptImage(t, apfsType),
				Bus:   hostfw.BusNVMe,
				Partitions: []hostfw.Partition{
					{
						Number: 2,
						APFS: []hostfw.APFSVolume{
							{Name: "Preboot", Role: "PreBoot"},
							{Name: "Macintosh HD", Role: "System"},
							{Name: "Macintosh HD - Data", Role: "Data", UUID: dataUUID.String()},
						},
					},
				},
			},
		},
	}, scan.WithSyncAPFS(true))

	require.NoError(t, state.Defects)
	require.Equal(t, 6, state.Volumes.Len())

	require.Zero(t, state.PreBoot.Len())
	require.Zero(t, state.System.Len())

	withRoles, err := scan.Discover(fw, scan.WithLogger(zaptest.NewLogger(t)), scan.WithRoleProvider(fw), scan.WithSyncAPFS(true))
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, withRoles.Close()) })

	require.NoError(t, withRoles.Defects)
	assert.True(t, withRoles.SyncEnabled)

	require.Equal(t, 1, withRoles.PreBoot.Len())
	require.Equal(t, 1, withRoles.System.Len())
	require.Equal(t, 1, withRoles.Data.Len())

	system := withRoles.System.At(0)
	data := withRoles.Data.At(0)

	assert.Equal(t, system.ContainerGUID, data.ContainerGUID)
	assert.Equal(t, withRoles.Volumes.At(2).PartGUID, system.ContainerGUID)
	assert.Equal(t, dataUUID, data.VolUUID)
	assert.Equal(t, "Macintosh HD", data.Name())
}

func TestNewMissingImage(t *testing.T) {
	t.Parallel()

	_, err := hostfw.New(&hostfw.Machine{
		Disks: []hostfw.Disk{
			{Image: filepath.Join(t.TempDir(), "missing.img"), Bus: hostfw.BusSATA},
		},
	})
	require.ErrorIs(t, err, os.ErrNotExist)
}
