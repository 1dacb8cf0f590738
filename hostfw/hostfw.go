// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package hostfw emulates firmware boot services over disk images and host block devices.
package hostfw

import (
	"fmt"
	"io"

	efi "github.com/canonical/go-efilib"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/siderolabs/go-volscan/container"
	"github.com/siderolabs/go-volscan/firmware"
	"github.com/siderolabs/go-volscan/internal/memfw"
	"github.com/siderolabs/go-volscan/volume"
)

// Options for New.
type Options struct {
	Logger *zap.Logger
}

// Option to control New.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Firmware implements firmware.Firmware for a Machine.
//
// Handles are assigned disk by disk: the disk first, then its partitions
// and the APFS volumes of each partition.
type Firmware struct {
	*memfw.Firmware

	closers []io.Closer
	logger  *zap.Logger
}

// New opens the disks of the machine.
func New(m *Machine, opts ...Option) (*Firmware, error) {
	options := Options{
		Logger: zap.NewNop(),
	}

	for _, o := range opts {
		o(&options)
	}

	fw := &Firmware{
		Firmware: memfw.New(),
		logger:   options.Logger,
	}

	for i := range m.Disks {
		if err := fw.addDisk(&m.Disks[i], i); err != nil {
			return nil, multierr.Append(fmt.Errorf("disk %d: %w", i, err), fw.Close())
		}
	}

	return fw, nil
}

func (fw *Firmware) addDisk(d *Disk, index int) error {
	b, err := openBackend(d)
	if err != nil {
		return err
	}

	fw.closers = append(fw.closers, b)

	bio := b.blockIO(uint32(index + 1))
	path := diskPath(d.Bus, index)

	dev := &memfw.Device{
		Path:    path,
		BlockIO: bio,
	}

	switch {
	case d.Root != "":
		dev.OpenRoot = hostDirRoot(d.Root, d.Label)
	case bio.Media().BlockSize == opticalBlockSize && bio.Media().MediaPresent:
		dev.OpenRoot = isoRoot(b.r)
	}

	h := fw.Add(dev)

	fw.logger.Debug("added disk",
		zap.Uintptr("handle", uintptr(h)),
		zap.Stringer("path", path),
		zap.Uint64("size", bio.Media().Size()),
	)

	parts, err := findPartitions(bio)
	if err != nil {
		return err
	}

	for _, p := range parts {
		cfg := d.partition(p.number)

		partIO := bio.window(p.firstLBA, p.lastLBA)
		partPath := childPath(path, p.node)

		partDev := &memfw.Device{
			Path:    partPath,
			BlockIO: partIO,
		}

		if cfg.Root != "" {
			partDev.OpenRoot = hostDirRoot(cfg.Root, cfg.Label)
		}

		fw.Add(partDev)

		for _, apfs := range cfg.APFS {
			if err = fw.addAPFSVolume(partPath, partIO, p.guid, apfs); err != nil {
				return fmt.Errorf("partition %d: %w", p.number, err)
			}
		}
	}

	return nil
}

func (fw *Firmware) addAPFSVolume(partPath efi.DevicePath, bio firmware.BlockIO, containerGUID uuid.UUID, v APFSVolume) error {
	role, err := volume.ParseRole(v.Role)
	if err != nil {
		return err
	}

	volumeGUID := uuid.NewSHA1(containerGUID, []byte(v.Name))

	if v.UUID != "" {
		if volumeGUID, err = uuid.Parse(v.UUID); err != nil {
			return err
		}
	}

	openRoot := hostDirRoot(v.Root, v.Name)

	if v.Root == "" {
		openRoot = func() (firmware.Dir, error) {
			return firmware.NewStaticDir(firmware.FileSystemInfo{Label: v.Name, ReadOnly: true}, nil, nil), nil
		}
	}

	fw.Add(&memfw.Device{
		Path:     childPath(partPath, efi.FilePathDevicePathNode(`\`+v.Name)),
		BlockIO:  bio,
		OpenRoot: openRoot,
		APFS: &container.Info{
			ContainerGUID: containerGUID,
			VolumeGUID:    volumeGUID,
			Role:          role,
		},
	})

	return nil
}

// Close releases the disks.
func (fw *Firmware) Close() error {
	var errs error

	for _, c := range fw.closers {
		errs = multierr.Append(errs, c.Close())
	}

	fw.closers = nil

	return errs
}
