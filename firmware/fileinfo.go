// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package firmware

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// File attributes.
const (
	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrSystem    = 0x04
	AttrDirectory = 0x10
	AttrArchive   = 0x20
)

const (
	fileInfoHeaderSize = 80
	efiTimeSize        = 16
)

// FileInfo mirrors EFI_FILE_INFO.
type FileInfo struct {
	Name         string
	FileSize     uint64
	PhysicalSize uint64
	ModTime      time.Time
	Attribute    uint64
}

// IsDir returns true for directories.
func (fi FileInfo) IsDir() bool {
	return fi.Attribute&AttrDirectory != 0
}

var utf16 = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodedSize returns the size of the EFI_FILE_INFO encoding.
func (fi FileInfo) EncodedSize() int {
	name, err := utf16.NewEncoder().String(fi.Name)
	if err != nil {
		return fileInfoHeaderSize + 2*len(fi.Name) + 2
	}

	return fileInfoHeaderSize + len(name) + 2
}

// MarshalBinary encodes the file info as EFI_FILE_INFO.
func (fi FileInfo) MarshalBinary() ([]byte, error) {
	name, err := utf16.NewEncoder().Bytes([]byte(fi.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to encode file name: %w", err)
	}

	buf := make([]byte, fileInfoHeaderSize+len(name)+2)

	binary.LittleEndian.PutUint64(buf[0:], uint64(len(buf)))
	binary.LittleEndian.PutUint64(buf[8:], fi.FileSize)
	binary.LittleEndian.PutUint64(buf[16:], fi.PhysicalSize)

	for _, off := range []int{24, 40, 56} {
		putEFITime(buf[off:off+efiTimeSize], fi.ModTime)
	}

	binary.LittleEndian.PutUint64(buf[72:], fi.Attribute)
	copy(buf[fileInfoHeaderSize:], name)

	return buf, nil
}

// ParseFileInfo decodes EFI_FILE_INFO.
func ParseFileInfo(buf []byte) (FileInfo, error) {
	if len(buf) < fileInfoHeaderSize {
		return FileInfo{}, fmt.Errorf("file info too short: %d bytes", len(buf))
	}

	size := binary.LittleEndian.Uint64(buf[0:])
	if size < fileInfoHeaderSize || size > uint64(len(buf)) {
		return FileInfo{}, fmt.Errorf("invalid file info size %d", size)
	}

	rawName := buf[fileInfoHeaderSize:size]

	// cut at the NUL terminator, aligned to UTF-16 code units
	for i := 0; i+1 < len(rawName); i += 2 {
		if rawName[i] == 0 && rawName[i+1] == 0 {
			rawName = rawName[:i]

			break
		}
	}

	name, err := utf16.NewDecoder().Bytes(rawName)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to decode file name: %w", err)
	}

	return FileInfo{
		Name:         string(bytes.TrimRight(name, "\x00")),
		FileSize:     binary.LittleEndian.Uint64(buf[8:]),
		PhysicalSize: binary.LittleEndian.Uint64(buf[16:]),
		ModTime:      getEFITime(buf[56 : 56+efiTimeSize]),
		Attribute:    binary.LittleEndian.Uint64(buf[72:]),
	}, nil
}

func putEFITime(b []byte, t time.Time) {
	if t.IsZero() {
		return
	}

	t = t.UTC()

	binary.LittleEndian.PutUint16(b[0:], uint16(t.Year()))
	b[2] = uint8(t.Month())
	b[3] = uint8(t.Day())
	b[4] = uint8(t.Hour())
	b[5] = uint8(t.Minute())
	b[6] = uint8(t.Second())
	binary.LittleEndian.PutUint32(b[8:], uint32(t.Nanosecond()))
}

func getEFITime(b []byte) time.Time {
	year := binary.LittleEndian.Uint16(b[0:])
	if year == 0 {
		return time.Time{}
	}

	return time.Date(
		int(year), time.Month(b[2]), int(b[3]),
		int(b[4]), int(b[5]), int(b[6]),
		int(binary.LittleEndian.Uint32(b[8:])),
		time.UTC,
	)
}
