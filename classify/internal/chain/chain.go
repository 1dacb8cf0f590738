// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package chain provides the ordered list of filesystem descriptors.
package chain

import (
	"github.com/siderolabs/go-volscan/classify/internal/filesystems/btrfs"
	"github.com/siderolabs/go-volscan/classify/internal/filesystems/ext"
	"github.com/siderolabs/go-volscan/classify/internal/filesystems/hfsplus"
	"github.com/siderolabs/go-volscan/classify/internal/filesystems/jfs"
	"github.com/siderolabs/go-volscan/classify/internal/filesystems/msdos"
	"github.com/siderolabs/go-volscan/classify/internal/filesystems/reiserfs"
	"github.com/siderolabs/go-volscan/classify/internal/filesystems/typehint"
	"github.com/siderolabs/go-volscan/classify/internal/filesystems/xfs"
	"github.com/siderolabs/go-volscan/classify/internal/probe"
)

// Chain is a list of descriptors, the first match wins.
type Chain []*probe.Descriptor

// MaxMagicSize returns the maximum number of bytes any descriptor in the chain inspects.
func (chain Chain) MaxMagicSize() int {
	max := 0

	for _, d := range chain {
		if size := d.BlockSize(); size >= max {
			max = size
		}
	}

	return max
}

// Match returns the result of the first matching descriptor.
func (chain Chain) Match(buf []byte, in probe.Input) (probe.Result, bool) {
	for _, d := range chain {
		if res, ok := d.Match(buf, in); ok {
			return res, true
		}
	}

	return probe.Result{}, false
}

// Names returns the descriptor names in precedence order.
func (chain Chain) Names() []string {
	names := make([]string, 0, len(chain))

	for _, d := range chain {
		names = append(names, d.Name)
	}

	return names
}

// Default returns the descriptors in precedence order.
func Default() Chain {
	return Chain{
		&ext.Descriptor,
		&reiserfs.Descriptor,
		&btrfs.Descriptor,
		&xfs.Descriptor,
		&jfs.Descriptor,
		&hfsplus.Descriptor,
		&msdos.NTFS,
		&msdos.FAT,
		&msdos.FAT32,
		&msdos.WholeDisk,
		&typehint.ISO9660,
		&typehint.APFS,
		&typehint.HFSPlus,
	}
}
