// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package gptstructs reads and validates GPT headers and entry arrays.
//
// Header and Entry are byte slices with generated field accessors, fields are little-endian.
package gptstructs

const (
	// HeaderSignature is "EFI PART".
	HeaderSignature = 0x5452415020494645

	// PrimaryLBA is the location of the primary header, the backup lives on the last LBA.
	PrimaryLBA = 1

	// NumEntries is the number of entries the writer emits and the most the reader accepts.
	NumEntries = 128
)
