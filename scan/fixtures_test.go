// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package scan_test

import (
	"encoding/binary"
	"fmt"
	"io"
	"slices"
	"testing"

	efi "github.com/canonical/go-efilib"
	"github.com/google/uuid"
	"github.com/siderolabs/gen/xslices"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-volscan/container"
	"github.com/siderolabs/go-volscan/firmware"
	"github.com/siderolabs/go-volscan/internal/gptutil"
	"github.com/siderolabs/go-volscan/internal/memdisk"
	"github.com/siderolabs/go-volscan/internal/memfw"
	"github.com/siderolabs/go-volscan/partitioning/gpt"
)

const MiB = 1024 * 1024

var (
	basicDataType = uuid.MustParse("EBD0A0A2-B9E5-4433-87C0-68B6B72699C7")
	linuxType     = uuid.MustParse("0FC63DAF-8483-4772-8E79-3D69D8477DE4")
	apfsType      = uuid.MustParse("7C3457EF-0000-11AA-AA11-00306543ECAC")
)

type formatter func(t *testing.T, w io.WriterAt, off int64)

func formatFAT32(serial uint32, label string) formatter {
	return func(t *testing.T, w io.WriterAt, off int64) {
		t.Helper()

		sector := make([]byte, 512)

		copy(sector, []byte{0xEB, 0x58, 0x90})
		copy(sector[3:], "MSDOS5.0")
		binary.LittleEndian.PutUint32(sector[0x43:], serial)
		copy(sector[0x47:], fmt.Sprintf("%-11s", label))
		copy(sector[0x52:], "FAT32   ")
		sector[510], sector[511] = 0x55, 0xAA

		_, err := w.WriteAt(sector, off)
		require.NoError(t, err)
	}
}

func formatExt4(id uuid.UUID, label string) formatter {
	return func(t *testing.T, w io.WriterAt, off int64) {
		t.Helper()

		sb := make([]byte, 1024)

		sb[0x38], sb[0x39] = 0x53, 0xEF
		binary.LittleEndian.PutUint32(sb[0x60:], 0x40)
		copy(sb[0x68:], id[:])
		copy(sb[0x78:], label)

		_, err := w.WriteAt(sb, off+1024)
		require.NoError(t, err)
	}
}

func staticRoot(label string, files ...string) func() (firmware.Dir, error) {
	return func() (firmware.Dir, error) {
		entries := xslices.Map(files, func(name string) firmware.FileInfo {
			return firmware.FileInfo{Name: name}
		})

		return firmware.NewStaticDir(firmware.FileSystemInfo{Label: label}, entries, nil), nil
	}
}

func pciPath() efi.DevicePath {
	return efi.DevicePath{
		&efi.ACPIDevicePathNode{HID: 0x0a0341d0},
		&efi.PCIDevicePathNode{Device: 0x1f, Function: 2},
	}
}

func sataPath(port uint16) efi.DevicePath {
	return append(pciPath(), &efi.SATADevicePathNode{HBAPortNumber: port, PortMultiplierPortNumber: 0xffff})
}

func usbPath(port uint8) efi.DevicePath {
	return append(pciPath(), &efi.USBDevicePathNode{ParentPortNumber: port})
}

func nvmePath() efi.DevicePath {
	return append(pciPath(), &efi.NVMENamespaceDevicePathNode{NamespaceID: 1})
}

//nolint:govet
type partSpec struct {
	name   string
	typ    uuid.UUID
	guid   uuid.UUID
	size   uint64
	format formatter

	readable bool
	label    string
	files    []string
}

// addGPTDisk lays out a GPT disk and registers the disk and a handle per partition.
func addGPTDisk(t *testing.T, fw *memfw.Firmware, path efi.DevicePath, parts ...partSpec) (firmware.Handle, []firmware.Handle) {
	t.Helper()

	disk := memdisk.New(32*MiB, 512)

	table, err := gpt.New(disk, gpt.WithAlignment(MiB))
	require.NoError(t, err)

	for _, p := range parts {
		var opts []gpt.PartitionOption

		if p.guid != uuid.Nil {
			opts = append(opts, gpt.WithUniqueGUID(p.guid))
		}

		_, _, err = table.AllocatePartition(p.size, p.name, p.typ, opts...)
		require.NoError(t, err)
	}

	require.NoError(t, table.Write())

	diskHandle := fw.Add(&memfw.Device{Path: path, BlockIO: disk})

	handles := make([]firmware.Handle, 0, len(parts))

	for i, entry := range table.Partitions() {
		p := parts[i]

		if p.format != nil {
			p.format(t, disk, int64(entry.FirstLBA)*512)
		}

		dev := &memfw.Device{
			Path: append(slices.Clone(path), &efi.HardDriveDevicePathNode{
				PartitionNumber: uint32(i + 1),
				PartitionStart:  entry.FirstLBA,
				PartitionSize:   entry.LastLBA - entry.FirstLBA + 1,
				Signature:       efi.GUIDHardDriveSignature(gptutil.ToEFIGUID(entry.PartGUID)),
				MBRType:         efi.GPT,
			}),
			BlockIO: disk.Partition(entry.FirstLBA, entry.LastLBA),
		}

		if p.readable {
			dev.OpenRoot = staticRoot(p.label, p.files...)
		}

		handles = append(handles, fw.Add(dev))
	}

	return diskHandle, handles
}

// addAPFSVolume registers a volume of an APFS container.
func addAPFSVolume(fw *memfw.Firmware, disk *memdisk.Disk, containerGUID uuid.UUID, name string, info container.Info) firmware.Handle {
	info.ContainerGUID = containerGUID

	return fw.Add(&memfw.Device{
		Path: append(nvmePath(), &efi.HardDriveDevicePathNode{
			PartitionNumber: 2,
			PartitionStart:  256,
			PartitionSize:   768,
			Signature:       efi.GUIDHardDriveSignature(gptutil.ToEFIGUID(containerGUID)),
			MBRType:         efi.GPT,
		}),
		BlockIO:  disk.Partition(256, 1023),
		OpenRoot: staticRoot(name),
		APFS:     &info,
	})
}
