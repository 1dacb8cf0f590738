// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package extpart walks the chain of extended boot records of an MBR extended partition.
package extpart

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/canonical/go-efilib/mbr"

	"github.com/siderolabs/go-volscan/firmware"
	"github.com/siderolabs/go-volscan/partitioning"
)

// MaxChainLength bounds the number of distinct EBR sectors visited in one chain.
const MaxChainLength = 128

const sectorSize = 512

// Chain errors.
var (
	ErrBadSignature = errors.New("extended boot record has no 0x55AA signature")
	ErrChainTooLong = errors.New("extended partition chain is too long")
)

// SectorReader reads whole sectors from the disk hosting the extended partition.
type SectorReader interface {
	// ReadSector reads the 512-byte sector at lba.
	ReadSector(lba uint64, buf []byte) error
}

// Logical is a logical partition found in the chain.
type Logical struct {
	// Index is 0-based, the first logical partition gets firstIndex.
	Index int
	// Offset is the absolute LBA of the partition start.
	Offset uint64
	Entry  mbr.PartitionEntry
}

// Walk follows the chain starting at the extended partition entry.
//
// Links to the next EBR are relative to the start of the extended partition,
// logical partition starts are relative to their own EBR. Results found before
// a failure are returned along with the error.
func Walk(r SectorReader, entry mbr.PartitionEntry, firstIndex int) ([]Logical, error) {
	base := uint64(entry.StartingLBA)
	if base == 0 {
		return nil, nil
	}

	var (
		logicals []Logical
		queue    = []uint64{base}
		visited  = map[uint64]struct{}{}
		buf      = make([]byte, sectorSize)
		index    = firstIndex
	)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if _, seen := visited[current]; seen {
			continue
		}

		if len(visited) >= MaxChainLength {
			return logicals, fmt.Errorf("%w: more than %d records", ErrChainTooLong, MaxChainLength)
		}

		visited[current] = struct{}{}

		if err := r.ReadSector(current, buf); err != nil {
			return logicals, fmt.Errorf("failed to read EBR at LBA %d: %w", current, err)
		}

		if buf[510] != 0x55 || buf[511] != 0xAA {
			return logicals, fmt.Errorf("%w: LBA %d", ErrBadSignature, current)
		}

		record, err := mbr.ReadRecord(bytes.NewReader(buf))
		if err != nil {
			return logicals, fmt.Errorf("failed to decode EBR at LBA %d: %w", current, err)
		}

		for _, e := range record.Partitions {
			if (e.BootIndicator != 0x00 && e.BootIndicator != 0x80) || e.StartingLBA == 0 || e.NumberOfSectors == 0 {
				break
			}

			if partitioning.IsExtended(e.Type) {
				queue = append(queue, base+uint64(e.StartingLBA))

				continue
			}

			logicals = append(logicals, Logical{
				Index:  index,
				Offset: current + uint64(e.StartingLBA),
				Entry:  e,
			})

			index++
		}
	}

	return logicals, nil
}

// Name returns the display name of the logical partition, numbered from 1.
func (l Logical) Name() string {
	return fmt.Sprintf("Partition %d", l.Index+1)
}

// BlockReader reads EBR sectors through block I/O.
type BlockReader struct {
	bio firmware.BlockIO
}

// NewBlockReader wraps bio, which must be the whole disk block I/O.
func NewBlockReader(bio firmware.BlockIO) *BlockReader {
	return &BlockReader{bio: bio}
}

// ReadSector implements SectorReader.
//
// On media with blocks larger than 512 bytes, the record is the head of the block.
func (r *BlockReader) ReadSector(lba uint64, buf []byte) error {
	media := r.bio.Media()

	if media.BlockSize < sectorSize {
		return fmt.Errorf("%w: block size %d", firmware.ErrBadBufferSize, media.BlockSize)
	}

	block := make([]byte, media.BlockSize)

	if err := r.bio.ReadBlocks(media.MediaID, lba, block); err != nil {
		return err
	}

	copy(buf, block[:sectorSize])

	return nil
}
