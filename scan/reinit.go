// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package scan

import (
	"fmt"

	efi "github.com/canonical/go-efilib"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/multierr"

	"github.com/siderolabs/go-volscan/firmware"
	"github.com/siderolabs/go-volscan/volume"
)

// Reinit re-resolves the firmware handles of cataloged volumes by their device paths.
//
// Handles are not stable across firmware events such as driver reconnection, device paths are.
// Volumes whose device path no longer resolves lose their block I/O and become unreadable.
func Reinit(fw firmware.Firmware, state *DiscoveryState) error {
	var errs *multierror.Error

	for _, v := range state.Volumes.Volumes() {
		if err := reinitVolume(fw, v); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", v.Name(), err))
		}
	}

	return errs.ErrorOrNil()
}

func reinitVolume(fw firmware.Firmware, v *volume.Volume) error {
	var errs error

	if v.WholeDiskDevicePath != nil {
		h, bio, err := locate(fw, v.WholeDiskDevicePath)
		if err != nil {
			v.WholeDiskBlockIO = nil

			errs = multierr.Append(errs, fmt.Errorf("whole disk: %w", err))
		} else {
			v.WholeDiskHandle = h
			v.WholeDiskBlockIO = bio
		}
	}

	// logical partitions are read through the whole disk
	if v.Handle == 0 && v.IsMBRPartition {
		v.BlockIO = v.WholeDiskBlockIO
		v.BlockIOHandle = v.WholeDiskHandle

		return errs
	}

	if v.DevicePath == nil {
		return errs
	}

	h, bio, err := locate(fw, v.DevicePath)
	if err != nil {
		v.BlockIO = nil

		return multierr.Append(errs, dropRoot(v, err))
	}

	v.Handle = h
	v.BlockIOHandle = h
	v.BlockIO = bio

	if v.RootDir == nil {
		return errs
	}

	if err = v.RootDir.Close(); err != nil {
		v.RootDir = nil

		return multierr.Append(errs, dropRoot(v, fmt.Errorf("failed to close root directory: %w", err)))
	}

	v.RootDir, err = fw.OpenRoot(h)
	if err != nil {
		v.RootDir = nil
		v.IsReadable = false

		return multierr.Append(errs, fmt.Errorf("failed to reopen root directory: %w", err))
	}

	return errs
}

// dropRoot makes the volume unreadable.
func dropRoot(v *volume.Volume, err error) error {
	if v.RootDir != nil {
		err = multierr.Append(err, v.RootDir.Close())
	}

	v.RootDir = nil
	v.IsReadable = false

	return err
}

func locate(fw firmware.Firmware, path efi.DevicePath) (firmware.Handle, firmware.BlockIO, error) {
	h, rest, err := fw.LocateDevicePath(path)
	if err != nil {
		return 0, nil, err
	}

	if len(rest) > 0 {
		return 0, nil, fmt.Errorf("device path %s: %w", path, firmware.ErrNotFound)
	}

	bio, err := fw.BlockIO(h)
	if err != nil {
		return 0, nil, err
	}

	return h, bio, nil
}
