// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package hostfw

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/siderolabs/go-volscan/volume"
)

// Bus is the transport a disk is attached to.
type Bus string

// Supported buses.
const (
	BusSATA     Bus = "sata"
	BusNVMe     Bus = "nvme"
	BusUSB      Bus = "usb"
	BusFirewire Bus = "firewire"
	BusCDROM    Bus = "cdrom"
)

// Machine describes the storage of an emulated machine.
type Machine struct {
	Disks []Disk `yaml:"disks"`
}

// Disk is a disk backed by an image file or a host block device.
//
//nolint:govet
type Disk struct {
	// Image is a raw disk image, compressed with zstd if the name ends with .zst.
	Image string `yaml:"image,omitempty"`
	// Device is a host block device.
	Device string `yaml:"device,omitempty"`

	Bus        Bus  `yaml:"bus"`
	SectorSize uint `yaml:"sectorSize,omitempty"`
	Removable  bool `yaml:"removable,omitempty"`

	// Root is a host directory served as the filesystem of the whole disk.
	Root  string `yaml:"root,omitempty"`
	Label string `yaml:"label,omitempty"`

	Partitions []Partition `yaml:"partitions,omitempty"`
}

// Partition attaches filesystems to a partition found on the disk.
type Partition struct {
	Number int    `yaml:"number"`
	Root   string `yaml:"root,omitempty"`
	Label  string `yaml:"label,omitempty"`

	// APFS volumes of the container stored in the partition.
	APFS []APFSVolume `yaml:"apfs,omitempty"`
}

// APFSVolume is a volume of an APFS container.
type APFSVolume struct {
	Name string `yaml:"name"`
	Role string `yaml:"role"`
	UUID string `yaml:"uuid,omitempty"`
	Root string `yaml:"root,omitempty"`
}

// Load reads the machine description, resolving relative paths against its directory.
func Load(path string) (*Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.resolve(filepath.Dir(path))

	return m, nil
}

// Parse decodes and validates a machine description.
func Parse(data []byte) (*Machine, error) {
	var m Machine

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode machine: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate the machine description.
func (m *Machine) Validate() error {
	var errs error

	for i, d := range m.Disks {
		if err := d.validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("disk %d: %w", i, err))
		}
	}

	return errs
}

func (d *Disk) validate() error {
	if (d.Image == "") == (d.Device == "") {
		return errors.New("exactly one of image and device is required")
	}

	switch d.Bus {
	case BusSATA, BusNVMe, BusUSB, BusFirewire, BusCDROM:
	default:
		return fmt.Errorf("unsupported bus %q", d.Bus)
	}

	if d.SectorSize != 0 && (d.SectorSize < 512 || d.SectorSize&(d.SectorSize-1) != 0) {
		return fmt.Errorf("invalid sector size %d", d.SectorSize)
	}

	seen := map[int]struct{}{}

	for _, p := range d.Partitions {
		if p.Number <= 0 {
			return fmt.Errorf("invalid partition number %d", p.Number)
		}

		if _, dup := seen[p.Number]; dup {
			return fmt.Errorf("duplicate partition %d", p.Number)
		}

		seen[p.Number] = struct{}{}

		if p.Root != "" && len(p.APFS) > 0 {
			return fmt.Errorf("partition %d: root and apfs are mutually exclusive", p.Number)
		}

		for _, v := range p.APFS {
			if _, err := volume.ParseRole(v.Role); err != nil {
				return fmt.Errorf("partition %d: volume %q: %w", p.Number, v.Name, err)
			}

			if v.UUID != "" {
				if _, err := uuid.Parse(v.UUID); err != nil {
					return fmt.Errorf("partition %d: volume %q: %w", p.Number, v.Name, err)
				}
			}
		}
	}

	return nil
}

func (d *Disk) sectorSize() uint {
	switch {
	case d.SectorSize != 0:
		return d.SectorSize
	case d.Bus == BusCDROM:
		return 2048
	default:
		return 512
	}
}

func (d *Disk) partition(number int) Partition {
	for _, p := range d.Partitions {
		if p.Number == number {
			return p
		}
	}

	return Partition{Number: number}
}

func (m *Machine) resolve(dir string) {
	abs := func(path string) string {
		if path == "" || filepath.IsAbs(path) || strings.HasPrefix(path, "/dev/") {
			return path
		}

		return filepath.Join(dir, path)
	}

	for i := range m.Disks {
		d := &m.Disks[i]

		d.Image = abs(d.Image)
		d.Root = abs(d.Root)

		for j := range d.Partitions {
			p := &d.Partitions[j]

			p.Root = abs(p.Root)

			for k := range p.APFS {
				p.APFS[k].Root = abs(p.APFS[k].Root)
			}
		}
	}
}
