// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package magic implements the magic number detection for sectors read from block devices.
package magic

import "bytes"

// Magic defines a filesystem/boot loader magic value.
type Magic struct {
	// Value to search for.
	Value []byte

	// Offset in the buffer where the magic value is located.
	Offset int

	// Window, if set, makes the magic match anywhere within Window bytes starting at Offset.
	Window int
}

// Matches returns true if the magic value is found at the specified offset in the buffer.
func (magic *Magic) Matches(buf []byte) bool {
	if magic.Window > 0 {
		end := min(len(buf), magic.Offset+magic.Window)

		if end < magic.Offset+len(magic.Value) {
			return false
		}

		return bytes.Contains(buf[magic.Offset:end], magic.Value)
	}

	if len(buf) < magic.Offset+len(magic.Value) {
		return false
	}

	return bytes.Equal(buf[magic.Offset:magic.Offset+len(magic.Value)], magic.Value)
}

// BlockSize returns the size of the buffer that needs to be read from the disk to detect the magic value.
func (magic *Magic) BlockSize() int {
	if magic.Window > 0 {
		return magic.Offset + max(magic.Window, len(magic.Value))
	}

	return magic.Offset + len(magic.Value)
}

// All is a set of magic values which must all match.
type All []Magic

// Matches returns true if every magic matches.
func (all All) Matches(buf []byte) bool {
	for i := range all {
		if !all[i].Matches(buf) {
			return false
		}
	}

	return len(all) > 0
}

// BlockSize returns the largest block size of the set.
func (all All) BlockSize() int {
	size := 0

	for i := range all {
		size = max(size, all[i].BlockSize())
	}

	return size
}
