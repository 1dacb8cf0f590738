// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package firmware_test

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-volscan/firmware"
)

// sliceDir serves entries, demanding a minimum buffer size for each read.
type sliceDir struct {
	entries []firmware.FileInfo
	pos     int

	// stubborn forces BufferTooSmall on every read.
	stubborn bool
	reads    int
}

func (d *sliceDir) ReadEntry(buf []byte) (int, error) {
	d.reads++

	if d.pos >= len(d.entries) {
		return 0, io.EOF
	}

	encoded, err := d.entries[d.pos].MarshalBinary()
	if err != nil {
		return 0, err
	}

	if d.stubborn || len(buf) < len(encoded) {
		return 0, &firmware.BufferTooSmallError{Size: len(encoded)}
	}

	d.pos++

	return copy(buf, encoded), nil
}

func (d *sliceDir) Rewind() error {
	d.pos = 0

	return nil
}

func (d *sliceDir) Open(string) (firmware.File, error)     { return nil, firmware.ErrNotFound }
func (d *sliceDir) Info() (firmware.FileSystemInfo, error) { return firmware.FileSystemInfo{}, nil }
func (d *sliceDir) Close() error                           { return nil }

func TestFileInfoEncoding(t *testing.T) {
	t.Parallel()

	fi := firmware.FileInfo{
		Name:      "BOOTMGR",
		FileSize:  398356,
		ModTime:   time.Date(2021, time.March, 4, 5, 6, 7, 0, time.UTC),
		Attribute: firmware.AttrReadOnly | firmware.AttrSystem,
	}

	buf, err := fi.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, buf, fi.EncodedSize())

	decoded, err := firmware.ParseFileInfo(buf)
	require.NoError(t, err)
	assert.Equal(t, fi, decoded)
	assert.False(t, decoded.IsDir())

	_, err = firmware.ParseFileInfo(buf[:40])
	require.Error(t, err)
}

func TestReadDirGrowsBuffer(t *testing.T) {
	t.Parallel()

	dir := &sliceDir{
		entries: []firmware.FileInfo{
			{Name: "EFI", Attribute: firmware.AttrDirectory},
			{Name: string(bytes.Repeat([]byte("a"), 300)) + ".efi"},
			{Name: "ntldr"},
		},
	}

	entries, err := firmware.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].IsDir())
	assert.Len(t, entries[1].Name, 304)

	ok, err := firmware.HasFile(dir, "NTLDR", "bootmgr")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = firmware.HasFile(dir, "efi")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNextEntryBounded(t *testing.T) {
	t.Parallel()

	dir := &sliceDir{
		entries:  []firmware.FileInfo{{Name: "kernel"}},
		stubborn: true,
	}

	_, err := firmware.NextEntry(dir)
	require.ErrorIs(t, err, firmware.ErrBufferTooSmall)
	assert.Equal(t, firmware.MaxEntryReadAttempts, dir.reads)
}

type memBlockIO struct {
	media firmware.Media
	data  []byte
}

func (m *memBlockIO) Media() firmware.Media { return m.media }

func (m *memBlockIO) ReadBlocks(mediaID uint32, lba uint64, buf []byte) error {
	if mediaID != m.media.MediaID {
		return firmware.ErrMediaChanged
	}

	off := lba * uint64(m.media.BlockSize)
	if off+uint64(len(buf)) > uint64(len(m.data)) {
		return firmware.ErrDeviceError
	}

	copy(buf, m.data[off:])

	return nil
}

func TestBlockReader(t *testing.T) {
	t.Parallel()

	data := make([]byte, 8*512)
	for i := range data {
		data[i] = byte(i / 512)
	}

	bio := &memBlockIO{
		media: firmware.Media{MediaID: 7, BlockSize: 512, LastBlock: 7, MediaPresent: true},
		data:  data,
	}

	r := firmware.NewBlockReader(bio, 2)
	assert.EqualValues(t, 512, r.GetSectorSize())
	assert.EqualValues(t, 6*512, r.GetSize())

	buf := make([]byte, 600)

	n, err := r.ReadAt(buf, 500)
	require.NoError(t, err)
	assert.Equal(t, 600, n)
	assert.Equal(t, byte(2), buf[0])
	assert.Equal(t, byte(3), buf[12])
	assert.Equal(t, byte(4), buf[599])

	n, err = r.ReadAt(buf, 6*512-100)
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 100, n)

	_, err = r.ReadAt(buf, 6*512)
	require.ErrorIs(t, err, io.EOF)
}

func TestStaticDir(t *testing.T) {
	t.Parallel()

	dir := firmware.NewStaticDir(
		firmware.FileSystemInfo{Label: "ESP", BlockSize: 512},
		[]firmware.FileInfo{
			{Name: "EFI", Attribute: firmware.AttrDirectory},
			{Name: "IO.SYS"},
		},
		nil,
	)

	ok, err := firmware.HasFile(dir, "io.sys")
	require.NoError(t, err)
	assert.True(t, ok)

	info, err := dir.Info()
	require.NoError(t, err)
	assert.Equal(t, "ESP", info.Label)

	_, err = dir.Open("EFI/BOOT/BOOTX64.EFI")
	require.ErrorIs(t, err, firmware.ErrNotFound)

	require.NoError(t, dir.Close())
	assert.True(t, dir.Closed())
	require.ErrorIs(t, dir.Close(), firmware.ErrClosed)

	_, err = firmware.ReadDir(dir)
	require.ErrorIs(t, err, firmware.ErrClosed)
}
