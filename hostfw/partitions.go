// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package hostfw

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	efi "github.com/canonical/go-efilib"
	"github.com/canonical/go-efilib/mbr"
	"github.com/google/uuid"

	"github.com/siderolabs/go-volscan/firmware"
	"github.com/siderolabs/go-volscan/gptcache"
	"github.com/siderolabs/go-volscan/internal/gptutil"
	"github.com/siderolabs/go-volscan/internal/ioutil"
	"github.com/siderolabs/go-volscan/partitioning"
)

// partition is a child handle the firmware exposes for a disk.
type partition struct {
	number   int
	firstLBA uint64
	lastLBA  uint64
	guid     uuid.UUID
	node     efi.DevicePathNode
}

// findPartitions lists the partitions firmware would expose: GPT entries, primary MBR
// entries or the El Torito boot image of optical media.
//
// Logical partitions are not exposed, they are found by walking the extended partition.
func findPartitions(bio *blockIO) ([]partition, error) {
	media := bio.Media()
	if !media.MediaPresent {
		return nil, nil
	}

	r := firmware.NewBlockReader(bio, 0)

	if media.BlockSize == opticalBlockSize {
		p, ok, err := elTorito(r)
		if err != nil || !ok {
			return nil, err
		}

		return []partition{p}, nil
	}

	table, err := gptcache.Read(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read GPT: %w", err)
	}

	if table != nil {
		parts := make([]partition, 0, len(table.Entries))

		for _, e := range table.Entries {
			parts = append(parts, partition{
				number:   int(e.Index),
				firstLBA: e.FirstLBA,
				lastLBA:  e.LastLBA,
				guid:     e.PartGUID,
				node: &efi.HardDriveDevicePathNode{
					PartitionNumber: uint32(e.Index),
					PartitionStart:  e.FirstLBA,
					PartitionSize:   e.LastLBA - e.FirstLBA + 1,
					Signature:       efi.GUIDHardDriveSignature(gptutil.ToEFIGUID(e.PartGUID)),
					MBRType:         efi.GPT,
				},
			})
		}

		return parts, nil
	}

	return mbrPartitions(r)
}

func mbrPartitions(r io.ReaderAt) ([]partition, error) {
	sector := make([]byte, 512)

	if err := ioutil.ReadFullAt(r, sector, 0); err != nil {
		return nil, fmt.Errorf("failed to read MBR: %w", err)
	}

	if sector[510] != 0x55 || sector[511] != 0xAA {
		return nil, nil
	}

	record, err := mbr.ReadRecord(bytes.NewReader(sector))
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	var parts []partition

	for i, e := range record.Partitions {
		if e.Type == partitioning.TypeEmpty || e.Type == partitioning.TypeGPTProtective || partitioning.IsExtended(e.Type) || e.NumberOfSectors == 0 {
			continue
		}

		parts = append(parts, partition{
			number:   i + 1,
			firstLBA: uint64(e.StartingLBA),
			lastLBA:  uint64(e.StartingLBA) + uint64(e.NumberOfSectors) - 1,
			node: &efi.HardDriveDevicePathNode{
				PartitionNumber: uint32(i + 1),
				PartitionStart:  uint64(e.StartingLBA),
				PartitionSize:   uint64(e.NumberOfSectors),
				Signature:       efi.MBRHardDriveSignature(record.UniqueSignature),
				MBRType:         efi.LegacyMBR,
			},
		})
	}

	return parts, nil
}

// El Torito boot record volume descriptor.
const (
	opticalBlockSize = 2048
	bootRecordLBA    = 17
	bootCatalogField = 0x47
	virtualSector    = 512
)

var elToritoID = []byte("EL TORITO SPECIFICATION")

// elTorito finds the default boot image of the boot catalog.
func elTorito(r io.ReaderAt) (partition, bool, error) {
	desc := make([]byte, opticalBlockSize)

	if err := ioutil.ReadFullAt(r, desc, bootRecordLBA*opticalBlockSize); err != nil {
		return partition{}, false, nil //nolint:nilerr
	}

	if desc[0] != 0 || string(desc[1:6]) != "CD001" || !bytes.HasPrefix(desc[7:], elToritoID) {
		return partition{}, false, nil
	}

	catalog := make([]byte, 64)

	if err := ioutil.ReadFullAt(r, catalog, int64(binary.LittleEndian.Uint32(desc[bootCatalogField:]))*opticalBlockSize); err != nil {
		return partition{}, false, fmt.Errorf("failed to read boot catalog: %w", err)
	}

	// validation entry, then the initial entry
	if catalog[0] != 0x01 || catalog[30] != 0x55 || catalog[31] != 0xAA || catalog[32] != 0x88 {
		return partition{}, false, nil
	}

	sectors := uint64(binary.LittleEndian.Uint16(catalog[32+6:]))
	start := uint64(binary.LittleEndian.Uint32(catalog[32+8:]))

	size := max((sectors*virtualSector+opticalBlockSize-1)/opticalBlockSize, 1)

	return partition{
		number:   1,
		firstLBA: start,
		lastLBA:  start + size - 1,
		node: &efi.CDROMDevicePathNode{
			PartitionStart: start,
			PartitionSize:  size,
		},
	}, true, nil
}
