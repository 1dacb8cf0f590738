// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package scan

import (
	"bytes"
	"fmt"

	"go.uber.org/zap"

	"github.com/siderolabs/go-volscan/extpart"
	"github.com/siderolabs/go-volscan/firmware"
	"github.com/siderolabs/go-volscan/partitioning"
	"github.com/siderolabs/go-volscan/volume"
)

// minSectorSum rejects blank sectors when matching partitions to MBR entries.
const minSectorSum = 1000

// scanExtended catalogs logical partitions found in the extended partitions of whole disks.
func (s *scanner) scanExtended() {
	for _, id := range s.state.Volumes.IDs() {
		disk := s.state.Arena.Get(id)
		if disk == nil || !disk.IsWholeDisk() || disk.MBRTable == nil {
			continue
		}

		reader := extpart.NewBlockReader(disk.WholeDiskBlockIO)
		next := len(disk.MBRTable)

		for _, entry := range disk.MBRTable {
			if !partitioning.IsExtended(entry.Type) {
				continue
			}

			logicals, err := extpart.Walk(reader, entry, next)
			if err != nil {
				s.defect(disk.Handle, fmt.Errorf("extended partition chain: %w", err))
			}

			for _, logical := range logicals {
				s.addLogical(disk, logical)
			}

			next += len(logicals)
		}
	}
}

func (s *scanner) addLogical(disk *volume.Volume, logical extpart.Logical) {
	id := s.state.Arena.Allocate()
	s.state.Volumes.Append(id)

	if err := s.state.Arena.Release(id); err != nil {
		s.defect(disk.Handle, err)
	}

	v := s.state.Arena.Get(id)

	media := disk.WholeDiskBlockIO.Media()

	v.DevicePath = disk.DevicePath
	v.WholeDiskDevicePath = disk.WholeDiskDevicePath
	v.BlockIO = disk.WholeDiskBlockIO
	v.BlockIOHandle = disk.WholeDiskHandle
	v.BlockIOOffset = logical.Offset
	v.WholeDiskBlockIO = disk.WholeDiskBlockIO
	v.WholeDiskHandle = disk.WholeDiskHandle
	v.DiskKind = disk.DiskKind
	v.IsMBRPartition = true
	v.MBRPartitionIndex = logical.Index
	v.Size = uint64(logical.Entry.NumberOfSectors) * uint64(media.BlockSize)

	sniff := s.sniff(v, true)

	v.HasBootCode = sniff.HasBootCode

	switch {
	case v.FSLabel != "":
		v.DisplayName = v.FSLabel
	default:
		v.DisplayName = logical.Name()
	}

	s.logger.Debug("logical partition",
		zap.String("name", v.Name()),
		zap.Uint64("offset", v.BlockIOOffset),
		zap.Stringer("fs", v.FSType),
	)
}

// correlate matches partitions to the MBR entries of their whole disk by comparing first sectors.
func (s *scanner) correlate() {
	disks := map[firmware.Handle]*volume.Volume{}

	for _, v := range s.state.Volumes.Volumes() {
		if v.IsWholeDisk() {
			disks[v.BlockIOHandle] = v
		}
	}

	for _, v := range s.state.Volumes.Volumes() {
		if !v.IsPartition() {
			continue
		}

		disk := disks[v.WholeDiskHandle]
		if disk == nil || disk.MBRTable == nil {
			continue
		}

		media := v.BlockIO.Media()
		if !media.MediaPresent || media.BlockSize == 0 {
			continue
		}

		for i, entry := range disk.MBRTable {
			if uint64(entry.NumberOfSectors) != media.LastBlock+1 {
				continue
			}

			if !s.sameFirstSector(v, disk, uint64(entry.StartingLBA)) {
				continue
			}

			v.IsMBRPartition = true
			v.MBRPartitionIndex = i

			if v.DisplayName == "" {
				v.DisplayName = fmt.Sprintf("Partition %d", i+1)
			}

			break
		}
	}
}

func (s *scanner) sameFirstSector(v, disk *volume.Volume, lba uint64) bool {
	media := v.BlockIO.Media()
	diskMedia := disk.BlockIO.Media()

	if media.BlockSize != diskMedia.BlockSize {
		return false
	}

	partSector := make([]byte, media.BlockSize)
	diskSector := make([]byte, diskMedia.BlockSize)

	if err := v.BlockIO.ReadBlocks(media.MediaID, v.BlockIOOffset, partSector); err != nil {
		return false
	}

	if err := disk.BlockIO.ReadBlocks(diskMedia.MediaID, lba, diskSector); err != nil {
		return false
	}

	if !bytes.Equal(partSector, diskSector) {
		return false
	}

	sum := 0

	for _, b := range partSector {
		sum += int(b)
	}

	return sum >= minSectorSum
}
