// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package firmware

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	initialEntryBufferSize = 256

	// MaxEntryReadAttempts caps the buffer grow-and-retry negotiation of a single directory read.
	MaxEntryReadAttempts = 4
)

// NextEntry reads the next entry of the directory.
//
// If the firmware reports the buffer is too small, the buffer is grown and the
// read is retried, up to MaxEntryReadAttempts times.
func NextEntry(dir Dir) (FileInfo, error) {
	size := initialEntryBufferSize

	for attempt := 1; ; attempt++ {
		buf := make([]byte, size)

		n, err := dir.ReadEntry(buf)
		if err == nil {
			return ParseFileInfo(buf[:n])
		}

		var tooSmall *BufferTooSmallError

		if !errors.As(err, &tooSmall) || attempt >= MaxEntryReadAttempts {
			return FileInfo{}, err
		}

		if tooSmall.Size > size {
			size = tooSmall.Size
		} else {
			size *= 2
		}
	}
}

// ReadDir returns all entries of the directory from the start.
func ReadDir(dir Dir) ([]FileInfo, error) {
	if err := dir.Rewind(); err != nil {
		return nil, fmt.Errorf("failed to rewind directory: %w", err)
	}

	var entries []FileInfo

	for {
		entry, err := NextEntry(dir)
		if errors.Is(err, io.EOF) {
			return entries, nil
		}

		if err != nil {
			return entries, err
		}

		entries = append(entries, entry)
	}
}

// HasFile returns true if any of the names is a regular file in the directory.
//
// Names are compared case-insensitively, as FAT does.
func HasFile(dir Dir, names ...string) (bool, error) {
	entries, err := ReadDir(dir)
	if err != nil {
		return false, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		for _, name := range names {
			if strings.EqualFold(entry.Name, name) {
				return true, nil
			}
		}
	}

	return false, nil
}
