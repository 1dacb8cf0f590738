// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// ioctls of the CD-ROM driver.
const (
	cdromDriveStatus  = 0x5326
	cdromGetCapablity = 0x5331

	cdsNoDisc   = 1
	cdsTrayOpen = 2
)

// NewFromPath opens the block device at path.
//
// Partitions are refused with ErrNotWholeDisk.
func NewFromPath(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}

	d := &Device{
		f:         f,
		ownedFile: true,
	}

	whole, err := d.IsWholeDisk()
	if err != nil {
		return nil, multierr.Combine(fmt.Errorf("%s: %w", path, err), f.Close())
	}

	if !whole {
		return nil, multierr.Combine(fmt.Errorf("%s: %w", path, ErrNotWholeDisk), f.Close())
	}

	return d, nil
}

// Media probes the medium currently in the device.
//
// Drives without a disc report NoMedia and a zero size.
func (d *Device) Media() (Media, error) {
	var (
		m   Media
		err error
	)

	m.Optical = d.ioctl(cdromGetCapablity, 0) == nil

	if m.Optical {
		status, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), cdromDriveStatus, 0)
		m.NoMedia = errno == 0 && (status == cdsNoDisc || status == cdsTrayOpen)
		m.Removable = true
	}

	m.SectorSize = d.sectorSize()

	if !m.NoMedia {
		if err = d.ioctl(unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&m.Size))); err != nil {
			return Media{}, fmt.Errorf("failed to get size: %w", err)
		}
	}

	if m.ReadOnly, err = d.readOnly(); err != nil {
		return Media{}, err
	}

	removable, err := d.sysfsFlag("removable")
	if err != nil {
		return Media{}, err
	}

	m.Removable = m.Removable || removable

	return m, nil
}

func (d *Device) ioctl(req, arg uintptr) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), req, arg); errno != 0 {
		return errno
	}

	return nil
}

func (d *Device) sectorSize() uint {
	var size uint

	if err := d.ioctl(unix.BLKSSZGET, uintptr(unsafe.Pointer(&size))); err != nil {
		return DefaultSectorSize
	}

	if size == 0 || size&(size-1) != 0 {
		return DefaultSectorSize
	}

	return size
}

func (d *Device) readOnly() (bool, error) {
	ro, err := d.sysfsFlag("ro")
	if err != nil || ro {
		return ro, err
	}

	var flags int

	if err = d.ioctl(unix.BLKROGET, uintptr(unsafe.Pointer(&flags))); err != nil {
		return false, fmt.Errorf("failed to get read-only flag: %w", err)
	}

	return flags != 0, nil
}

func (d *Device) sysfsPath() (string, error) {
	if d.devNo == 0 {
		var st unix.Stat_t

		if err := unix.Fstat(int(d.f.Fd()), &st); err != nil {
			return "", err
		}

		d.devNo = st.Rdev
	}

	return fmt.Sprintf("/sys/dev/block/%d:%d", unix.Major(d.devNo), unix.Minor(d.devNo)), nil
}

// sysfsFlag reads a boolean sysfs attribute, missing attributes read as false.
func (d *Device) sysfsFlag(name string) (bool, error) {
	path, err := d.sysfsPath()
	if err != nil {
		return false, err
	}

	contents, err := os.ReadFile(filepath.Join(path, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, err
	}

	return len(contents) > 0 && contents[0] == '1', nil
}

// IsWholeDisk returns false for partitions, including device-mapper partitions.
func (d *Device) IsWholeDisk() (bool, error) {
	path, err := d.sysfsPath()
	if err != nil {
		return false, err
	}

	if _, err = os.Stat(filepath.Join(path, "partition")); err == nil {
		return false, nil
	}

	contents, err := os.ReadFile(filepath.Join(path, "dm", "uuid"))
	if err != nil {
		return true, nil //nolint:nilerr
	}

	return !bytes.HasPrefix(contents, []byte("part-")), nil
}

// TryLockShared takes a shared lock without blocking, so partitioning tools holding
// an exclusive lock make it fail.
func (d *Device) TryLockShared() error {
	for {
		if err := unix.Flock(int(d.f.Fd()), unix.LOCK_SH|unix.LOCK_NB); !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

// Unlock releases the lock.
func (d *Device) Unlock() error {
	for {
		if err := unix.Flock(int(d.f.Fd()), unix.LOCK_UN); !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
