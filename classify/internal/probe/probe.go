// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package probe defines filesystem signature descriptors and the generic matcher.
package probe

import (
	"bytes"

	"github.com/google/uuid"
	"github.com/siderolabs/go-pointer"

	"github.com/siderolabs/go-volscan/internal/magic"
	"github.com/siderolabs/go-volscan/volume"
)

// Input carries the context a descriptor may consult besides the sample buffer.
type Input struct {
	SectorSize       uint32
	LogicalPartition bool
	PartTypeGUID     uuid.UUID
}

// Result is a probe result.
type Result struct {
	Type  volume.FSType
	UUID  uuid.UUID
	Label *string
}

// Descriptor declares how a filesystem family is recognized.
//
// A descriptor matches when any of Magics matches (or Magics is empty) and Require,
// if set, returns true. Descriptors with neither never match.
type Descriptor struct {
	// Name of the filesystem family.
	Name string
	// Type reported on match, unless Refine is set.
	Type volume.FSType

	// Magics is a list of alternatives, each alternative is a set of magic values which must all match.
	Magics []magic.All
	// Extent is the end offset of the furthest field read by UUID or Label.
	Extent int

	Require func(buf []byte, in Input) bool
	Refine  func(buf []byte) volume.FSType
	UUID    func(buf []byte) uuid.UUID
	Label   func(buf []byte) *string
}

// Match runs the descriptor against the buffer.
func (d *Descriptor) Match(buf []byte, in Input) (Result, bool) {
	if len(d.Magics) == 0 && d.Require == nil {
		return Result{}, false
	}

	if len(d.Magics) > 0 && !d.magicMatches(buf) {
		return Result{}, false
	}

	if d.Require != nil && !d.Require(buf, in) {
		return Result{}, false
	}

	res := Result{Type: d.Type}

	if d.Refine != nil {
		res.Type = d.Refine(buf)
	}

	if d.UUID != nil {
		res.UUID = d.UUID(buf)
	}

	if d.Label != nil {
		res.Label = d.Label(buf)
	}

	return res, true
}

// BlockSize returns the number of bytes the descriptor may inspect.
func (d *Descriptor) BlockSize() int {
	size := d.Extent

	for _, all := range d.Magics {
		size = max(size, all.BlockSize())
	}

	return size
}

func (d *Descriptor) magicMatches(buf []byte) bool {
	for _, all := range d.Magics {
		if all.Matches(buf) {
			return true
		}
	}

	return false
}

// Field returns buf[offset:offset+size], or nil if the buffer is too short.
func Field(buf []byte, offset, size int) []byte {
	if offset < 0 || len(buf) < offset+size {
		return nil
	}

	return buf[offset : offset+size]
}

// UUIDAt reads a 16-byte identifier stored as-is.
func UUIDAt(offset int) func([]byte) uuid.UUID {
	return func(buf []byte) uuid.UUID {
		var u uuid.UUID

		copy(u[:], Field(buf, offset, len(u)))

		return u
	}
}

// SerialAt reads a short volume serial of size bytes into the leading bytes of an identifier.
func SerialAt(offset, size int) func([]byte) uuid.UUID {
	return func(buf []byte) uuid.UUID {
		var u uuid.UUID

		copy(u[:], Field(buf, offset, size))

		return u
	}
}

// CStringLabel reads a NUL terminated label of at most size bytes.
func CStringLabel(offset, size int) func([]byte) *string {
	return func(buf []byte) *string {
		lbl := Field(buf, offset, size)
		if len(lbl) == 0 || lbl[0] == 0 {
			return nil
		}

		if idx := bytes.IndexByte(lbl, 0); idx != -1 {
			lbl = lbl[:idx]
		}

		return pointer.To(string(lbl))
	}
}
