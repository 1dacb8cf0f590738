// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package firmware

import (
	"errors"
	"io"
)

// ErrClosed is returned by operations on a closed directory.
var ErrClosed = errors.New("directory is closed")

// Opener opens a file by path.
type Opener func(path string) (File, error)

// StaticDir is a Dir over a fixed list of entries.
type StaticDir struct {
	info    FileSystemInfo
	entries []FileInfo
	open    Opener

	pos    int
	closed bool
}

// NewStaticDir returns a directory serving entries; open may be nil.
func NewStaticDir(info FileSystemInfo, entries []FileInfo, open Opener) *StaticDir {
	return &StaticDir{
		info:    info,
		entries: entries,
		open:    open,
	}
}

// ReadEntry implements Dir.
func (d *StaticDir) ReadEntry(buf []byte) (int, error) {
	if d.closed {
		return 0, ErrClosed
	}

	if d.pos >= len(d.entries) {
		return 0, io.EOF
	}

	entry := d.entries[d.pos]

	if size := entry.EncodedSize(); len(buf) < size {
		return 0, &BufferTooSmallError{Size: size}
	}

	encoded, err := entry.MarshalBinary()
	if err != nil {
		return 0, err
	}

	d.pos++

	return copy(buf, encoded), nil
}

// Rewind implements Dir.
func (d *StaticDir) Rewind() error {
	if d.closed {
		return ErrClosed
	}

	d.pos = 0

	return nil
}

// Open implements Dir.
func (d *StaticDir) Open(path string) (File, error) {
	if d.closed {
		return nil, ErrClosed
	}

	if d.open == nil {
		return nil, ErrNotFound
	}

	return d.open(path)
}

// Info implements Dir.
func (d *StaticDir) Info() (FileSystemInfo, error) {
	if d.closed {
		return FileSystemInfo{}, ErrClosed
	}

	return d.info, nil
}

// Close implements Dir.
func (d *StaticDir) Close() error {
	if d.closed {
		return ErrClosed
	}

	d.closed = true

	return nil
}

// Closed reports whether Close was called.
func (d *StaticDir) Closed() bool {
	return d.closed
}
