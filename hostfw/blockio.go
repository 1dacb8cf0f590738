// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package hostfw

import (
	"fmt"
	"io"

	"github.com/siderolabs/go-volscan/firmware"
	"github.com/siderolabs/go-volscan/internal/ioutil"
)

// blockIO serves block reads from an io.ReaderAt.
type blockIO struct {
	r      io.ReaderAt
	media  firmware.Media
	offset uint64
}

func newBlockIO(r io.ReaderAt, size uint64, blockSize uint, media firmware.Media) *blockIO {
	if blockSize == 0 {
		blockSize = 512
	}

	media.BlockSize = uint32(blockSize)
	media.LastBlock = size/uint64(blockSize) - 1

	if size < uint64(blockSize) {
		media.LastBlock = 0
		media.MediaPresent = false
	}

	return &blockIO{
		r:     r,
		media: media,
	}
}

// window returns the block I/O of the LBA range, as firmware exposes partitions.
func (b *blockIO) window(firstLBA, lastLBA uint64) *blockIO {
	media := b.media
	media.LastBlock = lastLBA - firstLBA
	media.LogicalPartition = true

	return &blockIO{
		r:      b.r,
		media:  media,
		offset: b.offset + firstLBA*uint64(b.media.BlockSize),
	}
}

func (b *blockIO) Media() firmware.Media {
	return b.media
}

func (b *blockIO) ReadBlocks(mediaID uint32, lba uint64, buf []byte) error {
	if !b.media.MediaPresent {
		return firmware.ErrNoMedia
	}

	if mediaID != b.media.MediaID {
		return firmware.ErrMediaChanged
	}

	blockSize := uint64(b.media.BlockSize)

	if uint64(len(buf))%blockSize != 0 {
		return firmware.ErrBadBufferSize
	}

	if lba+uint64(len(buf))/blockSize > b.media.LastBlock+1 {
		return fmt.Errorf("%w: read past the end of the media at LBA %d", firmware.ErrDeviceError, lba)
	}

	if err := ioutil.ReadFullAt(b.r, buf, int64(b.offset+lba*blockSize)); err != nil {
		return fmt.Errorf("%w: %w", firmware.ErrDeviceError, err)
	}

	return nil
}
