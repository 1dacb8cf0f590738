// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package firmware

import (
	"fmt"
	"io"
)

// BlockReader adapts BlockIO to io.ReaderAt, starting at a block offset.
type BlockReader struct {
	bio   BlockIO
	media Media
	start uint64
}

// NewBlockReader returns a reader over the blocks of bio starting at startLBA.
func NewBlockReader(bio BlockIO, startLBA uint64) *BlockReader {
	return &BlockReader{
		bio:   bio,
		media: bio.Media(),
		start: startLBA,
	}
}

// GetSectorSize returns the block size.
func (r *BlockReader) GetSectorSize() uint {
	return uint(r.media.BlockSize)
}

// GetSize returns the size in bytes visible through the reader.
func (r *BlockReader) GetSize() uint64 {
	size := r.media.Size()
	skip := r.start * uint64(r.media.BlockSize)

	if skip > size {
		return 0
	}

	return size - skip
}

// ReadAt implements io.ReaderAt, reading whole blocks around the requested range.
func (r *BlockReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}

	blockSize := uint64(r.media.BlockSize)
	if blockSize == 0 {
		return 0, ErrNoMedia
	}

	size := r.GetSize()
	if uint64(off) >= size {
		return 0, io.EOF
	}

	want := uint64(len(p))

	var short bool

	if uint64(off)+want > size {
		want = size - uint64(off)
		short = true
	}

	first := uint64(off) / blockSize
	last := (uint64(off) + want + blockSize - 1) / blockSize

	buf := make([]byte, (last-first)*blockSize)

	if err := r.bio.ReadBlocks(r.media.MediaID, r.start+first, buf); err != nil {
		return 0, err
	}

	n := copy(p, buf[uint64(off)-first*blockSize:][:want])

	if short {
		return n, io.EOF
	}

	return n, nil
}
