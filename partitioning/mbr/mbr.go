// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package mbr lays out legacy MBR partition tables, with logical partitions in an extended chain.
package mbr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/siderolabs/go-volscan/internal/ioutil"
	"github.com/siderolabs/go-volscan/partitioning"
)

const (
	tableOffset = 446
	entrySize   = 16
	maxPrimary  = 4

	// BootIndicator marks an active partition.
	BootIndicator = 0x80
)

// Partition is a primary or logical partition.
type Partition struct {
	Type     uint8
	Bootable bool

	// FirstLBA is absolute, LBA count is the partition size in sectors.
	FirstLBA uint64
	Sectors  uint64
}

// Table is a legacy partition table being laid out.
type Table struct {
	dev partitioning.Device

	signature uint32

	primary []Partition
	logical []Partition
}

// New creates an empty table for the device.
func New(dev partitioning.Device, signature uint32) *Table {
	return &Table{
		dev:       dev,
		signature: signature,
	}
}

// AddPrimary adds a primary partition.
func (t *Table) AddPrimary(p Partition) error {
	if partitioning.IsExtended(p.Type) {
		return errors.New("extended partitions are created from logical partitions")
	}

	if len(t.primary) >= maxPrimary-1 && len(t.logical) > 0 || len(t.primary) >= maxPrimary {
		return errors.New("no free primary slots")
	}

	t.primary = append(t.primary, p)

	return nil
}

// AddLogical adds a logical partition. Each logical partition is preceded by its EBR sector,
// so FirstLBA must leave one free sector before it.
func (t *Table) AddLogical(p Partition) error {
	if len(t.primary) >= maxPrimary {
		return errors.New("no free primary slot for the extended partition")
	}

	if p.FirstLBA == 0 {
		return errors.New("logical partition can't start at sector 0")
	}

	t.logical = append(t.logical, p)

	return nil
}

func putEntry(b []byte, p Partition, start, sectors uint64) error {
	if start > math.MaxUint32 || sectors > math.MaxUint32 {
		return fmt.Errorf("partition at %d doesn't fit into MBR", start)
	}

	if p.Bootable {
		b[0] = BootIndicator
	}

	b[4] = p.Type
	binary.LittleEndian.PutUint32(b[8:12], uint32(start))
	binary.LittleEndian.PutUint32(b[12:16], uint32(sectors))

	return nil
}

// Write writes the MBR and the EBR chain to the device.
func (t *Table) Write() error {
	sectorSize := int64(t.dev.GetSectorSize())

	sector := make([]byte, sectorSize)

	// preserve the boot code area
	if err := ioutil.ReadFullAt(t.dev, sector, 0); err != nil {
		return fmt.Errorf("failed to read MBR: %w", err)
	}

	clear(sector[tableOffset:512])
	binary.LittleEndian.PutUint32(sector[440:444], t.signature)

	for i, p := range t.primary {
		if err := putEntry(sector[tableOffset+i*entrySize:], p, p.FirstLBA, p.Sectors); err != nil {
			return err
		}
	}

	if len(t.logical) > 0 {
		extStart := t.logical[0].FirstLBA - 1
		last := t.logical[len(t.logical)-1]
		extEnd := last.FirstLBA + last.Sectors

		ext := Partition{Type: partitioning.TypeExtendedLBA}

		if err := putEntry(sector[tableOffset+len(t.primary)*entrySize:], ext, extStart, extEnd-extStart); err != nil {
			return err
		}

		if err := t.writeChain(extStart, sectorSize); err != nil {
			return err
		}
	}

	sector[510], sector[511] = 0x55, 0xAA

	if _, err := t.dev.WriteAt(sector, 0); err != nil {
		return fmt.Errorf("failed to write MBR: %w", err)
	}

	return nil
}

// writeChain writes one EBR before each logical partition.
//
// Logical partition starts are relative to their EBR, links to the next EBR are relative to the extended partition start.
func (t *Table) writeChain(extStart uint64, sectorSize int64) error {
	for i, p := range t.logical {
		ebrLBA := p.FirstLBA - 1

		if i > 0 && ebrLBA <= t.logical[i-1].FirstLBA+t.logical[i-1].Sectors-1 {
			return fmt.Errorf("logical partition %d overlaps the previous one", i+5)
		}

		ebr := make([]byte, sectorSize)

		if err := putEntry(ebr[tableOffset:], p, p.FirstLBA-ebrLBA, p.Sectors); err != nil {
			return err
		}

		if i+1 < len(t.logical) {
			next := t.logical[i+1]
			nextEBR := next.FirstLBA - 1

			link := Partition{Type: partitioning.TypeExtendedCHS}

			if err := putEntry(ebr[tableOffset+entrySize:], link, nextEBR-extStart, next.Sectors+1); err != nil {
				return err
			}
		}

		ebr[510], ebr[511] = 0x55, 0xAA

		if _, err := t.dev.WriteAt(ebr, int64(ebrLBA)*sectorSize); err != nil {
			return fmt.Errorf("failed to write EBR at %d: %w", ebrLBA, err)
		}
	}

	return nil
}
