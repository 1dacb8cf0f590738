// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package gptcache reads GPT partition tables and keeps their entries indexed by unique partition GUID.
package gptcache

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siderolabs/go-volscan/firmware"
	"github.com/siderolabs/go-volscan/internal/gptstructs"
	"github.com/siderolabs/go-volscan/internal/gptutil"
)

// Entry is a used GPT partition entry.
type Entry struct {
	// Index is 1-based.
	Index uint

	PartGUID uuid.UUID
	TypeGUID uuid.UUID
	Name     string

	FirstLBA   uint64
	LastLBA    uint64
	Attributes uint64
}

// Table is a decoded partition table.
type Table struct {
	DiskGUID uuid.UUID
	Entries  []Entry
}

// Reader is a device the table is read from.
type Reader interface {
	gptstructs.HeaderReader
	GetSize() uint64
}

// Read decodes the partition table of the device.
//
// If there is no valid primary or backup header, nil is returned without an error.
func Read(r Reader) (*Table, error) {
	lastLBA, ok := gptutil.LastLBA(r)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	hdr, entries, err := gptstructs.ReadPrimaryOrBackup(r, lastLBA)
	if err != nil {
		var invalid *gptstructs.InvalidHeaderError

		if errors.As(err, &invalid) {
			return nil, nil //nolint:nilnil
		}

		return nil, err
	}

	table := &Table{}

	copy(table.DiskGUID[:], gptutil.GUIDToUUID(hdr.Get_disk_guid()))

	firstUsableLBA := hdr.Get_first_usable_lba()
	lastUsableLBA := hdr.Get_last_usable_lba()

	for i, entry := range entries {
		if entry.IsUnused() {
			continue
		}

		if entry.Get_starting_lba() < firstUsableLBA || entry.Get_ending_lba() > lastUsableLBA {
			continue
		}

		name, err := entry.Name()
		if err != nil {
			return nil, fmt.Errorf("failed to decode name of partition %d: %w", i+1, err)
		}

		e := Entry{
			Index:      uint(i + 1),
			Name:       name,
			FirstLBA:   entry.Get_starting_lba(),
			LastLBA:    entry.Get_ending_lba(),
			Attributes: entry.Get_attributes(),
		}

		copy(e.PartGUID[:], gptutil.GUIDToUUID(entry.Get_unique_partition_guid()))
		copy(e.TypeGUID[:], gptutil.GUIDToUUID(entry.Get_partition_type_guid()))

		table.Entries = append(table.Entries, e)
	}

	return table, nil
}

// Option configures the cache.
type Option func(*Options)

// Options holds cache options.
type Options struct {
	Logger *zap.Logger
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Cache indexes the entries of every partition table added to it.
type Cache struct {
	logger *zap.Logger

	entries map[uuid.UUID]Entry
	tables  int
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	options := Options{
		Logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	return &Cache{
		logger:  options.Logger,
		entries: map[uuid.UUID]Entry{},
	}
}

// Add reads the partition table of the device and indexes its entries.
//
// Devices without a GPT are ignored.
func (c *Cache) Add(bio firmware.BlockIO) error {
	media := bio.Media()
	if !media.MediaPresent || media.BlockSize == 0 {
		return nil
	}

	table, err := Read(firmware.NewBlockReader(bio, 0))
	if err != nil {
		return fmt.Errorf("failed to read partition table: %w", err)
	}

	if table == nil {
		return nil
	}

	c.AddTable(table)

	return nil
}

// AddTable indexes the entries of a decoded table.
func (c *Cache) AddTable(table *Table) {
	c.tables++

	for _, entry := range table.Entries {
		if prev, ok := c.entries[entry.PartGUID]; ok {
			c.logger.Warn("duplicate partition GUID",
				zap.Stringer("part_guid", entry.PartGUID),
				zap.Uint("index", entry.Index),
				zap.Uint("previous_index", prev.Index),
			)
		}

		c.entries[entry.PartGUID] = entry
	}

	c.logger.Debug("partition table cached",
		zap.Stringer("disk_guid", table.DiskGUID),
		zap.Int("partitions", len(table.Entries)),
	)
}

// Lookup returns the entry with the unique partition GUID.
func (c *Cache) Lookup(partGUID uuid.UUID) (Entry, bool) {
	entry, ok := c.entries[partGUID]

	return entry, ok
}

// Forget drops all cached entries.
func (c *Cache) Forget() {
	clear(c.entries)
	c.tables = 0
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Tables returns the number of tables added since the last Forget.
func (c *Cache) Tables() int {
	return c.tables
}
