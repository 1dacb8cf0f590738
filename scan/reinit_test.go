// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package scan_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/go-volscan/container"
	"github.com/siderolabs/go-volscan/firmware"
	"github.com/siderolabs/go-volscan/internal/memdisk"
	"github.com/siderolabs/go-volscan/internal/memfw"
	"github.com/siderolabs/go-volscan/scan"
)

func discoverESP(t *testing.T) (*memfw.Firmware, *scan.DiscoveryState) {
	t.Helper()

	fw := memfw.New()

	addGPTDisk(t, fw, usbPath(1), partSpec{
		name: "EFI System", typ: container.ESPType, size: 4 * MiB,
		format:   formatFAT32(0xCAFEBABE, "EFI"),
		readable: true, label: "EFI",
	})

	state, err := scan.Discover(fw, scan.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.Equal(t, 2, state.Volumes.Len())

	return fw, state
}

func TestReinit(t *testing.T) {
	t.Parallel()

	fw, state := discoverESP(t)

	esp := state.Volumes.At(1)
	oldRoot, ok := esp.RootDir.(*firmware.StaticDir)
	require.True(t, ok)

	// the same devices, enumerated after an unrelated one
	moved := memfw.New()
	moved.Add(&memfw.Device{Path: sataPath(7), BlockIO: memdisk.New(MiB, 512)})

	for _, dev := range fw.Devices() {
		moved.Add(dev)
	}

	require.NoError(t, scan.Reinit(moved, state))

	disk := state.Volumes.At(0)
	assert.Equal(t, firmware.Handle(2), disk.Handle)
	assert.Equal(t, firmware.Handle(2), disk.WholeDiskHandle)
	assert.True(t, disk.IsWholeDisk())

	assert.Equal(t, firmware.Handle(3), esp.Handle)
	assert.Equal(t, firmware.Handle(3), esp.BlockIOHandle)
	assert.Equal(t, firmware.Handle(2), esp.WholeDiskHandle)
	assert.True(t, esp.IsPartition())
	assert.True(t, esp.IsReadable)

	assert.True(t, oldRoot.Closed())

	newRoot, ok := esp.RootDir.(*firmware.StaticDir)
	require.True(t, ok)
	assert.NotSame(t, oldRoot, newRoot)

	require.NoError(t, state.Close())
	assert.True(t, newRoot.Closed())
	assert.Zero(t, state.Arena.Len())
}

func TestReinitMissing(t *testing.T) {
	t.Parallel()

	_, state := discoverESP(t)

	esp := state.Volumes.At(1)
	oldRoot, ok := esp.RootDir.(*firmware.StaticDir)
	require.True(t, ok)

	err := scan.Reinit(memfw.New(), state)
	require.ErrorIs(t, err, firmware.ErrNotFound)

	for _, v := range state.Volumes.Volumes() {
		assert.Nil(t, v.BlockIO)
		assert.Nil(t, v.WholeDiskBlockIO)
		assert.False(t, v.IsReadable)
	}

	assert.True(t, oldRoot.Closed())
	assert.Nil(t, esp.RootDir)

	require.NoError(t, state.Close())
}

type stuckDir struct {
	*firmware.StaticDir
}

func (stuckDir) Close() error {
	return errors.New("device busy")
}

func TestReinitCloseFailure(t *testing.T) {
	t.Parallel()

	fw, state := discoverESP(t)

	esp := state.Volumes.At(1)
	staticRoot, ok := esp.RootDir.(*firmware.StaticDir)
	require.True(t, ok)

	esp.RootDir = stuckDir{staticRoot}

	err := scan.Reinit(fw, state)
	require.ErrorContains(t, err, "failed to close root directory: device busy")

	// handles are still re-resolved, only the root is dropped
	assert.Equal(t, firmware.Handle(2), esp.Handle)
	assert.NotNil(t, esp.BlockIO)
	assert.Nil(t, esp.RootDir)
	assert.False(t, esp.IsReadable)

	require.NoError(t, state.Close())
}
