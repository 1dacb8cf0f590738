// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package hostfw

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/siderolabs/go-volscan/firmware"
)

// backend is the opened storage of a disk.
type backend struct {
	r      io.ReaderAt
	closer io.Closer

	size       uint64
	sectorSize uint
	readOnly   bool
	removable  bool
	noMedia    bool
}

func openBackend(d *Disk) (*backend, error) {
	if d.Device != "" {
		return openDevice(d)
	}

	if strings.HasSuffix(d.Image, ".zst") {
		return openCompressed(d)
	}

	f, err := os.Open(d.Image)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck

		return nil, err
	}

	return &backend{
		r:          f,
		closer:     f,
		size:       uint64(st.Size()),
		sectorSize: d.sectorSize(),
		readOnly:   true,
		removable:  d.Removable,
	}, nil
}

// openCompressed decompresses the whole image into memory.
func openCompressed(d *Disk) (*backend, error) {
	f, err := os.Open(d.Image)
	if err != nil {
		return nil, err
	}

	defer f.Close() //nolint:errcheck

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open zstd stream: %w", err)
	}

	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress image: %w", err)
	}

	return &backend{
		r:          bytes.NewReader(data),
		size:       uint64(len(data)),
		sectorSize: d.sectorSize(),
		readOnly:   true,
		removable:  d.Removable,
	}, nil
}

func (b *backend) blockIO(mediaID uint32) *blockIO {
	return newBlockIO(b.r, b.size, b.sectorSize, firmware.Media{
		MediaID:        mediaID,
		MediaPresent:   !b.noMedia,
		RemovableMedia: b.removable,
		ReadOnly:       b.readOnly,
	})
}

func (b *backend) Close() error {
	if b.closer == nil {
		return nil
	}

	return b.closer.Close()
}
