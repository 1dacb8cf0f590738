// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package hostfw

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/siderolabs/go-volscan/block"
)

type lockedDevice struct {
	*block.Device
}

func (d lockedDevice) Close() error {
	return multierr.Append(d.Unlock(), d.Device.Close())
}

func openDevice(d *Disk) (*backend, error) {
	dev, err := block.NewFromPath(d.Device)
	if err != nil {
		return nil, err
	}

	// keep partitioning tools away while the device is being scanned
	if err = dev.TryLockShared(); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to lock %s: %w", d.Device, err), dev.Close())
	}

	b := &backend{
		r:      dev,
		closer: lockedDevice{dev},
	}

	media, err := dev.Media()
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("%s: %w", d.Device, err), b.Close())
	}

	b.size = media.Size
	b.sectorSize = media.SectorSize
	b.readOnly = media.ReadOnly
	b.removable = media.Removable || d.Removable
	b.noMedia = media.NoMedia

	switch {
	case media.Optical:
		b.sectorSize = 2048
	case d.SectorSize != 0:
		b.sectorSize = d.SectorSize
	}

	return b, nil
}
