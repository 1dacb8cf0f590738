// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package memfw implements firmware.Firmware over a table of devices held in memory.
package memfw

import (
	"bytes"
	"fmt"

	efi "github.com/canonical/go-efilib"

	"github.com/siderolabs/go-volscan/container"
	"github.com/siderolabs/go-volscan/firmware"
)

// Device is a firmware handle with the protocols it supports.
//
//nolint:govet
type Device struct {
	Path efi.DevicePath

	// BlockIO is nil if the handle doesn't support block I/O, BlockIOErr overrides it.
	BlockIO    firmware.BlockIO
	BlockIOErr error

	// OpenRoot is nil if the handle doesn't support the simple file system protocol.
	OpenRoot func() (firmware.Dir, error)

	// APFS is set for APFS volumes.
	APFS *container.Info
}

// Firmware is an in-memory firmware.
//
// Handles are assigned in order of Add starting from 1.
type Firmware struct {
	devices []*Device

	// EnumerationErr is returned by LocateBlockDevices.
	EnumerationErr error
}

// New creates an empty firmware.
func New() *Firmware {
	return &Firmware{}
}

// Add registers the device and returns its handle.
func (f *Firmware) Add(d *Device) firmware.Handle {
	f.devices = append(f.devices, d)

	return firmware.Handle(len(f.devices))
}

// Device returns the device registered under the handle.
func (f *Firmware) Device(h firmware.Handle) (*Device, error) {
	if h == 0 || int(h) > len(f.devices) {
		return nil, fmt.Errorf("handle %d: %w", h, firmware.ErrNotFound)
	}

	return f.devices[h-1], nil
}

// Devices returns the registered devices in handle order.
func (f *Firmware) Devices() []*Device {
	return f.devices
}

// LocateBlockDevices implements firmware.Firmware.
//
// Every registered handle is returned, including handles whose block I/O fails to open.
func (f *Firmware) LocateBlockDevices() ([]firmware.Handle, error) {
	if f.EnumerationErr != nil {
		return nil, f.EnumerationErr
	}

	handles := make([]firmware.Handle, 0, len(f.devices))

	for i, d := range f.devices {
		if d.BlockIO == nil && d.BlockIOErr == nil {
			continue
		}

		handles = append(handles, firmware.Handle(i+1))
	}

	return handles, nil
}

// BlockIO implements firmware.Firmware.
func (f *Firmware) BlockIO(h firmware.Handle) (firmware.BlockIO, error) {
	d, err := f.Device(h)
	if err != nil {
		return nil, err
	}

	if d.BlockIOErr != nil {
		return nil, d.BlockIOErr
	}

	if d.BlockIO == nil {
		return nil, firmware.ErrUnsupported
	}

	return d.BlockIO, nil
}

// DevicePath implements firmware.Firmware.
func (f *Firmware) DevicePath(h firmware.Handle) (efi.DevicePath, error) {
	d, err := f.Device(h)
	if err != nil {
		return nil, err
	}

	if d.Path == nil {
		return nil, firmware.ErrUnsupported
	}

	return d.Path, nil
}

// LocateDevicePath implements firmware.Firmware.
//
// The handle with block I/O whose device path is the longest prefix of path wins.
func (f *Firmware) LocateDevicePath(path efi.DevicePath) (firmware.Handle, efi.DevicePath, error) {
	var (
		best    firmware.Handle
		bestLen = -1
	)

	for i, d := range f.devices {
		if d.BlockIO == nil || d.BlockIOErr != nil || len(d.Path) <= bestLen {
			continue
		}

		if !HasPrefix(path, d.Path) {
			continue
		}

		best = firmware.Handle(i + 1)
		bestLen = len(d.Path)
	}

	if best == 0 {
		return 0, nil, fmt.Errorf("device path %s: %w", path, firmware.ErrNotFound)
	}

	return best, path[bestLen:], nil
}

// OpenRoot implements firmware.Firmware.
func (f *Firmware) OpenRoot(h firmware.Handle) (firmware.Dir, error) {
	d, err := f.Device(h)
	if err != nil {
		return nil, err
	}

	if d.OpenRoot == nil {
		return nil, firmware.ErrUnsupported
	}

	return d.OpenRoot()
}

// VolumeInfo implements container.Provider.
func (f *Firmware) VolumeInfo(h firmware.Handle) (container.Info, error) {
	d, err := f.Device(h)
	if err != nil {
		return container.Info{}, err
	}

	if d.APFS == nil {
		return container.Info{}, firmware.ErrUnsupported
	}

	return *d.APFS, nil
}

// HasPrefix returns true if prefix matches the leading nodes of path.
func HasPrefix(path, prefix efi.DevicePath) bool {
	if len(prefix) > len(path) {
		return false
	}

	want, err := prefix.Bytes()
	if err != nil {
		return false
	}

	got, err := path[:len(prefix)].Bytes()
	if err != nil {
		return false
	}

	return bytes.Equal(want, got)
}
