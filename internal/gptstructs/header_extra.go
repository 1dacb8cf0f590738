// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gptstructs

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/siderolabs/go-volscan/internal/ioutil"
)

// InvalidHeaderError is returned for a header which fails validation.
type InvalidHeaderError struct {
	LBA    uint64
	Reason string
}

func (e *InvalidHeaderError) Error() string {
	return fmt.Sprintf("invalid GPT header at LBA %d: %s", e.LBA, e.Reason)
}

// CalculateChecksum returns the CRC32 of the header with the checksum field zeroed.
func (h Header) CalculateChecksum() uint32 {
	crc := crc32.ChecksumIEEE(h[:16])
	crc = crc32.Update(crc, crc32.IEEETable, []byte{0, 0, 0, 0})

	return crc32.Update(crc, crc32.IEEETable, h[20:HEADER_SIZE])
}

// validate checks the header read from lba on a device with sectors up to lastLBA.
func (h Header) validate(lba, lastLBA uint64, sectorSize uint) string {
	first, last := h.Get_first_usable_lba(), h.Get_last_usable_lba()

	switch {
	case h.Get_signature() != HeaderSignature:
		return "no signature"
	case h.Get_header_size() < HEADER_SIZE || uint(h.Get_header_size()) > sectorSize:
		return fmt.Sprintf("header size %d", h.Get_header_size())
	case h.Get_header_crc32() != h.CalculateChecksum():
		return "header checksum mismatch"
	case h.Get_my_lba() != lba:
		return fmt.Sprintf("header claims LBA %d", h.Get_my_lba())
	case last < first || last > lastLBA:
		return fmt.Sprintf("usable range %d-%d", first, last)
	case first <= lba && lba <= last:
		return "header inside the usable range"
	case h.Get_sizeof_partition_entry() != ENTRY_SIZE:
		return fmt.Sprintf("entry size %d", h.Get_sizeof_partition_entry())
	case h.Get_num_partition_entries() == 0 || h.Get_num_partition_entries() > NumEntries:
		return fmt.Sprintf("%d entries", h.Get_num_partition_entries())
	}

	return ""
}

// HeaderReader reads sectors of a device.
type HeaderReader interface {
	io.ReaderAt
	GetSectorSize() uint
}

// ReadHeader reads and validates the header at lba and its entry array.
//
// Headers failing validation are reported with *InvalidHeaderError.
func ReadHeader(r HeaderReader, lba, lastLBA uint64) (*Header, []Entry, error) {
	sectorSize := r.GetSectorSize()

	hdr := Header(make([]byte, sectorSize))

	if err := ioutil.ReadFullAt(r, hdr, int64(lba)*int64(sectorSize)); err != nil {
		return nil, nil, err
	}

	if reason := hdr.validate(lba, lastLBA, sectorSize); reason != "" {
		return nil, nil, &InvalidHeaderError{LBA: lba, Reason: reason}
	}

	buf := make([]byte, hdr.Get_num_partition_entries()*ENTRY_SIZE)

	if err := ioutil.ReadFullAt(r, buf, int64(hdr.Get_partition_entries_lba())*int64(sectorSize)); err != nil {
		return nil, nil, err
	}

	if crc32.ChecksumIEEE(buf) != hdr.Get_partition_entry_array_crc32() {
		return nil, nil, &InvalidHeaderError{LBA: lba, Reason: "entry array checksum mismatch"}
	}

	entries := make([]Entry, 0, hdr.Get_num_partition_entries())

	for off := 0; off < len(buf); off += ENTRY_SIZE {
		entries = append(entries, Entry(buf[off:off+ENTRY_SIZE]))
	}

	return &hdr, entries, nil
}

// ReadPrimaryOrBackup reads the primary header, falling back to the backup header at lastLBA.
//
// If both are invalid, the returned error joins both *InvalidHeaderError.
func ReadPrimaryOrBackup(r HeaderReader, lastLBA uint64) (*Header, []Entry, error) {
	hdr, entries, err := ReadHeader(r, PrimaryLBA, lastLBA)

	var invalid *InvalidHeaderError

	if !errors.As(err, &invalid) {
		return hdr, entries, err
	}

	hdr, entries, backupErr := ReadHeader(r, lastLBA, lastLBA)

	switch {
	case errors.As(backupErr, &invalid):
		return nil, nil, errors.Join(err, backupErr)
	case backupErr != nil:
		return nil, nil, backupErr
	}

	return hdr, entries, nil
}
