// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package gpt lays out GPT partition tables on disk images.
package gpt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"

	"github.com/siderolabs/go-volscan/internal/gptstructs"
	"github.com/siderolabs/go-volscan/internal/gptutil"
	"github.com/siderolabs/go-volscan/internal/ioutil"
	"github.com/siderolabs/go-volscan/partitioning"
)

// Layout errors.
var (
	ErrDeviceTooSmall = errors.New("device too small for GPT")
	ErrTableFull      = errors.New("partition table is full")
	ErrNoSpace        = errors.New("not enough free space")
)

const (
	revision = 0x00010000

	// a partition name is 36 UTF-16 code units
	maxNameBytes = 72
)

// Partition is an allocated partition.
type Partition struct {
	Name string

	TypeGUID uuid.UUID
	PartGUID uuid.UUID

	FirstLBA   uint64
	LastLBA    uint64
	Attributes uint64
}

// Table is a GPT being laid out.
//
// Partitions are allocated back to back in the order they are added.
type Table struct {
	dev     partitioning.Device
	options Options

	sectorSize uint64
	lastLBA    uint64
	// sectors taken by each copy of the entry array
	entrySectors uint64
	// partition start alignment in sectors
	alignment uint64

	partitions []Partition
}

// New starts an empty table for the device. Nothing is written until Write.
func New(dev partitioning.Device, opts ...Option) (*Table, error) {
	var options Options

	for _, o := range opts {
		o(&options)
	}

	if options.DiskGUID == uuid.Nil {
		options.DiskGUID = uuid.New()
	}

	sectorSize := uint64(dev.GetSectorSize())
	entrySectors := (gptstructs.NumEntries*gptstructs.ENTRY_SIZE + sectorSize - 1) / sectorSize

	lastLBA, ok := gptutil.LastLBA(dev)
	if !ok || lastLBA < 2*(entrySectors+1)+1 {
		return nil, ErrDeviceTooSmall
	}

	return &Table{
		dev:          dev,
		options:      options,
		sectorSize:   sectorSize,
		lastLBA:      lastLBA,
		entrySectors: entrySectors,
		alignment:    max((uint64(options.Alignment)+sectorSize-1)/sectorSize, 1),
	}, nil
}

// DiskGUID returns the disk GUID.
func (t *Table) DiskGUID() uuid.UUID {
	return t.options.DiskGUID
}

func (t *Table) firstUsableLBA() uint64 {
	return gptstructs.PrimaryLBA + 1 + t.entrySectors
}

func (t *Table) lastUsableLBA() uint64 {
	return t.lastLBA - t.entrySectors - 1
}

// AllocatePartition appends a partition of size bytes, rounded down to whole sectors.
//
// Size 0 takes the rest of the disk. It returns the 1-based partition number and the entry.
func (t *Table) AllocatePartition(size uint64, name string, partType uuid.UUID, opts ...PartitionOption) (int, Partition, error) {
	var options PartitionOptions

	for _, o := range opts {
		o(&options)
	}

	if len(t.partitions) >= gptstructs.NumEntries {
		return 0, Partition{}, ErrTableFull
	}

	if _, err := encodeName(name); err != nil {
		return 0, Partition{}, err
	}

	first := t.firstUsableLBA()
	if n := len(t.partitions); n > 0 {
		first = t.partitions[n-1].LastLBA + 1
	}

	first = (first + t.alignment - 1) / t.alignment * t.alignment

	if first > t.lastUsableLBA() {
		return 0, Partition{}, fmt.Errorf("partition %q: %w", name, ErrNoSpace)
	}

	available := t.lastUsableLBA() - first + 1
	sectors := available

	if size != 0 {
		sectors = size / t.sectorSize

		if sectors == 0 {
			return 0, Partition{}, fmt.Errorf("partition %q: size %d is smaller than a sector", name, size)
		}

		if sectors > available {
			return 0, Partition{}, fmt.Errorf("partition %q: %w: %d sectors requested, %d available", name, ErrNoSpace, sectors, available)
		}
	}

	if options.UniqueGUID == uuid.Nil {
		options.UniqueGUID = uuid.New()
	}

	p := Partition{
		Name:       name,
		TypeGUID:   partType,
		PartGUID:   options.UniqueGUID,
		FirstLBA:   first,
		LastLBA:    first + sectors - 1,
		Attributes: options.Attributes,
	}

	t.partitions = append(t.partitions, p)

	return len(t.partitions), p, nil
}

// Partitions returns the allocated partitions.
func (t *Table) Partitions() []Partition {
	return append([]Partition(nil), t.partitions...)
}

var utf16 = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func encodeName(name string) ([]byte, error) {
	b, err := utf16.NewEncoder().Bytes([]byte(name))
	if err != nil {
		return nil, fmt.Errorf("failed to encode partition name %q: %w", name, err)
	}

	if len(b) > maxNameBytes {
		return nil, fmt.Errorf("partition name %q is too long", name)
	}

	return b, nil
}

func (t *Table) encodeEntries() ([]byte, error) {
	buf := make([]byte, gptstructs.NumEntries*gptstructs.ENTRY_SIZE)

	for i, p := range t.partitions {
		name, err := encodeName(p.Name)
		if err != nil {
			return nil, err
		}

		entry := gptstructs.Entry(buf[i*gptstructs.ENTRY_SIZE:][:gptstructs.ENTRY_SIZE])
		entry.Put_partition_type_guid(gptutil.UUIDToGUID(p.TypeGUID[:]))
		entry.Put_unique_partition_guid(gptutil.UUIDToGUID(p.PartGUID[:]))
		entry.Put_starting_lba(p.FirstLBA)
		entry.Put_ending_lba(p.LastLBA)
		entry.Put_attributes(p.Attributes)
		entry.Put_partition_name(name)
	}

	return buf, nil
}

// header builds the header stored at lba, describing entries stored at entriesLBA.
func (t *Table) header(lba, alternateLBA, entriesLBA uint64, entriesCRC uint32) gptstructs.Header {
	h := gptstructs.Header(make([]byte, t.sectorSize))

	h.Put_signature(gptstructs.HeaderSignature)
	h.Put_revision(revision)
	h.Put_header_size(gptstructs.HEADER_SIZE)
	h.Put_my_lba(lba)
	h.Put_alternate_lba(alternateLBA)
	h.Put_first_usable_lba(t.firstUsableLBA())
	h.Put_last_usable_lba(t.lastUsableLBA())
	h.Put_disk_guid(gptutil.UUIDToGUID(t.options.DiskGUID[:]))
	h.Put_partition_entries_lba(entriesLBA)
	h.Put_num_partition_entries(gptstructs.NumEntries)
	h.Put_sizeof_partition_entry(gptstructs.ENTRY_SIZE)
	h.Put_partition_entry_array_crc32(entriesCRC)
	h.Put_header_crc32(h.CalculateChecksum())

	return h
}

// Write writes the protective MBR, both headers and both copies of the entry array.
func (t *Table) Write() error {
	entries, err := t.encodeEntries()
	if err != nil {
		return err
	}

	entriesCRC := crc32.ChecksumIEEE(entries)
	backupEntriesLBA := t.lastLBA - t.entrySectors

	if err = t.writeProtectiveMBR(); err != nil {
		return err
	}

	for _, w := range []struct {
		what string
		lba  uint64
		buf  []byte
	}{
		{"primary entries", gptstructs.PrimaryLBA + 1, entries},
		{"primary header", gptstructs.PrimaryLBA, t.header(gptstructs.PrimaryLBA, t.lastLBA, gptstructs.PrimaryLBA+1, entriesCRC)},
		{"backup entries", backupEntriesLBA, entries},
		{"backup header", t.lastLBA, t.header(t.lastLBA, gptstructs.PrimaryLBA, backupEntriesLBA, entriesCRC)},
	} {
		if _, err = t.dev.WriteAt(w.buf, int64(w.lba*t.sectorSize)); err != nil {
			return fmt.Errorf("failed to write %s: %w", w.what, err)
		}
	}

	return nil
}

// writeProtectiveMBR replaces the MBR partition table with a single entry covering the disk,
// the boot code is kept.
func (t *Table) writeProtectiveMBR() error {
	sector := make([]byte, 512)

	if err := ioutil.ReadFullAt(t.dev, sector, 0); err != nil {
		return fmt.Errorf("failed to read MBR: %w", err)
	}

	clear(sector[446:510])

	entry := sector[446:462]

	if t.options.BootablePMBR {
		entry[0] = 0x80
	}

	// CHS start 0/0/2, end saturated
	copy(entry[1:4], []byte{0x00, 0x02, 0x00})
	entry[4] = partitioning.TypeGPTProtective
	copy(entry[5:8], []byte{0xff, 0xff, 0xff})

	binary.LittleEndian.PutUint32(entry[8:], 1)
	binary.LittleEndian.PutUint32(entry[12:], uint32(min(t.lastLBA, math.MaxUint32)))

	sector[510], sector[511] = 0x55, 0xAA

	if _, err := t.dev.WriteAt(sector, 0); err != nil {
		return fmt.Errorf("failed to write protective MBR: %w", err)
	}

	return nil
}
