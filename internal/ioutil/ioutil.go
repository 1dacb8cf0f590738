// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package ioutil provides IO utility functions.
package ioutil

import (
	"errors"
	"io"
)

// ReadFullAt is io.ReadFull for io.ReaderAt.
func ReadFullAt(r io.ReaderAt, buf []byte, offset int64) error {
	n, err := readAt(r, buf, offset)
	if err == nil {
		return nil
	}

	if errors.Is(err, io.EOF) {
		if n == len(buf) {
			return nil
		}

		return io.ErrUnexpectedEOF
	}

	return err
}

// ReadPrefix reads up to size bytes from offset zero.
//
// A device shorter than size yields a shorter buffer, not an error.
func ReadPrefix(r io.ReaderAt, size int) ([]byte, error) {
	buf := make([]byte, size)

	n, err := readAt(r, buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return buf[:n], nil
}

func readAt(r io.ReaderAt, buf []byte, offset int64) (int, error) {
	for n := 0; n < len(buf); {
		m, err := r.ReadAt(buf[n:], offset)

		n += m
		offset += int64(m)

		if err != nil {
			return n, err
		}

		if m == 0 {
			return n, io.ErrNoProgress
		}
	}

	return len(buf), nil
}
