// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package bootcode detects legacy (BIOS) boot code and MBR partition tables in the first sectors of a volume.
package bootcode

import (
	"bytes"
	"fmt"

	"github.com/canonical/go-efilib/mbr"

	"github.com/siderolabs/go-volscan/firmware"
	"github.com/siderolabs/go-volscan/volume"
)

// SectorSize is the size of a legacy boot sector.
const SectorSize = 512

// Mode selects how legacy bootability is decided.
type Mode int

const (
	// ModeBootSector trusts boot sector sniffing (NTFS volumes are re-verified by boot files).
	ModeBootSector Mode = iota
	// ModeBootFiles decides only by the presence of boot files in the root directory.
	ModeBootFiles
)

// DefaultBootFiles are the files checked by HasBootFiles when no list is configured.
var DefaultBootFiles = []string{"bootmgr", "ntldr", "io.sys"}

// Result of boot sector sniffing.
type Result struct {
	HasBootCode bool
	OSName      string
	OSIcon      string

	// Table is set when the sector carries a plausible MBR partition table.
	Table *[4]mbr.PartitionEntry
}

// Sniff inspects the leading bytes of a volume.
//
// The buffer should contain at least two sectors, as some loaders are detected past the first one.
func Sniff(buf []byte) Result {
	var res Result

	if len(buf) < SectorSize {
		return res
	}

	sector := buf[:SectorSize]

	if bootSignature.Matches(sector) && sector[0] != 0 && !bytes.Contains(sector, []byte("EXFAT")) {
		res.HasBootCode = true
	}

	if res.HasBootCode {
		for i := range Catalogue {
			if Catalogue[i].Matches(buf) {
				res.OSName = Catalogue[i].OSName
				res.OSIcon = Catalogue[i].Icon

				break
			}
		}

		for i := range Placeholders {
			if Placeholders[i].Matches(sector) {
				res = Result{}

				break
			}
		}
	}

	res.Table = ReadTable(sector)

	return res
}

// ReadTable returns the MBR partition table of the sector, or nil if there is none.
//
// A table is valid when every boot flag is 0x00 or 0x80 and at least one entry has a non-zero start and size.
func ReadTable(sector []byte) *[4]mbr.PartitionEntry {
	if len(sector) < SectorSize || !bootSignature.Matches(sector) {
		return nil
	}

	record, err := mbr.ReadRecord(bytes.NewReader(sector[:SectorSize]))
	if err != nil {
		return nil
	}

	var found bool

	for _, entry := range record.Partitions {
		if entry.BootIndicator != 0x00 && entry.BootIndicator != 0x80 {
			return nil
		}

		if entry.StartingLBA != 0 && entry.NumberOfSectors != 0 {
			found = true
		}
	}

	if !found {
		return nil
	}

	table := record.Partitions

	return &table
}

// HasBootFiles returns true if any of the named files is present in the root directory.
func HasBootFiles(dir firmware.Dir, names []string) bool {
	if dir == nil {
		return false
	}

	if len(names) == 0 {
		names = DefaultBootFiles
	}

	found, err := firmware.HasFile(dir, names...)

	return err == nil && found
}

// Decide combines the sniffing result with the boot file check according to the mode.
func (m Mode) Decide(sniffed bool, fsType volume.FSType, root firmware.Dir, names []string) bool {
	switch m {
	case ModeBootFiles:
		return HasBootFiles(root, names)
	case ModeBootSector:
		if sniffed && fsType == volume.FSNTFS {
			return HasBootFiles(root, names)
		}

		return sniffed
	default:
		return sniffed
	}
}

func (m Mode) String() string {
	switch m {
	case ModeBootSector:
		return "bootsector"
	case ModeBootFiles:
		return "bootfiles"
	default:
		return "unknown"
	}
}

// ParseMode converts the mode name back to the Mode.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "bootsector", "":
		return ModeBootSector, nil
	case "bootfiles":
		return ModeBootFiles, nil
	default:
		return ModeBootSector, fmt.Errorf("unknown legacy mode %q", name)
	}
}
