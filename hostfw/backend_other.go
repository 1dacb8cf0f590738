// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build !linux

package hostfw

import (
	"fmt"

	"github.com/siderolabs/go-volscan/firmware"
)

func openDevice(d *Disk) (*backend, error) {
	return nil, fmt.Errorf("host block device %s: %w", d.Device, firmware.ErrUnsupported)
}
