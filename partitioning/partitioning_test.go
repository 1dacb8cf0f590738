// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partitioning_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-volscan/partitioning"
)

func TestDevName(t *testing.T) {
	t.Parallel()

	for _, test := range []struct { //nolint:govet
		devname   string
		partition uint

		expected string
	}{
		{
			devname:   "/dev/sda",
			partition: 1,

			expected: "/dev/sda1",
		},
		{
			devname:   "/dev/nvme0n1",
			partition: 2,

			expected: "/dev/nvme0n1p2",
		},
	} {
		t.Run(test.devname, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, test.expected, partitioning.DevName(test.devname, test.partition))
		})
	}
}

func TestIsExtended(t *testing.T) {
	t.Parallel()

	for _, typ := range []uint8{0x05, 0x0F, 0x85} {
		assert.True(t, partitioning.IsExtended(typ))
	}

	for _, typ := range []uint8{0x00, 0x07, 0x83, 0xEE, 0xEF} {
		assert.False(t, partitioning.IsExtended(typ))
	}
}

func TestNewFileDevice(t *testing.T) {
	t.Parallel()

	f, err := os.Create(filepath.Join(t.TempDir(), "disk.img"))
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, f.Close())
	})

	require.NoError(t, f.Truncate(1024*1024))

	dev, err := partitioning.NewFileDevice(f, 4096)
	require.NoError(t, err)

	assert.EqualValues(t, 4096, dev.GetSectorSize())
	assert.EqualValues(t, 1024*1024, dev.GetSize())

	_, err = partitioning.NewFileDevice(f, 1000)
	require.Error(t, err)

	_, err = partitioning.NewFileDevice(f, 0)
	require.Error(t, err)
}
