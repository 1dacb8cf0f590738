// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package scan discovers and catalogs the volumes visible through firmware.
package scan

import (
	"errors"
	"fmt"
	"strings"

	efi "github.com/canonical/go-efilib"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/siderolabs/go-volscan/bootcode"
	"github.com/siderolabs/go-volscan/classify"
	"github.com/siderolabs/go-volscan/container"
	"github.com/siderolabs/go-volscan/firmware"
	"github.com/siderolabs/go-volscan/identity"
	"github.com/siderolabs/go-volscan/internal/ioutil"
	"github.com/siderolabs/go-volscan/volume"
)

// ErrEnumeration is returned when the block devices can't be enumerated.
var ErrEnumeration = errors.New("failed to enumerate block devices")

// Populator is a partition cache which can be rebuilt from block devices.
type Populator interface {
	Forget()
	Add(firmware.BlockIO) error
}

// Messaging device path subtypes go-efilib decodes as generic nodes.
const (
	subTypeFibreChannel efi.DevicePathSubType = 0x03
	subTypeIEEE1394     efi.DevicePathSubType = 0x04
)

// genericPartNames are partition names set by partitioning tools rather than by users.
var genericPartNames = []string{
	"Basic data partition",
	"Microsoft basic data",
	"Linux filesystem",
	"Linux",
	"Apple HFS/HFS+",
	"Apple APFS",
	"EFI System",
	"EFI System Partition",
	"Microsoft reserved partition",
}

type scanner struct {
	fw      firmware.Firmware
	options Options
	logger  *zap.Logger

	state   *DiscoveryState
	buckets container.Buckets
	defects *multierror.Error

	seen map[uuid.UUID]struct{}
}

// Discover scans every block device and returns the volume catalogue.
//
// Failures of individual devices are recorded in DiscoveryState.Defects; only a failure
// to enumerate devices aborts the scan.
func Discover(fw firmware.Firmware, opts ...Option) (*DiscoveryState, error) {
	options := Options{
		Logger:    zap.NewNop(),
		BootFiles: bootcode.DefaultBootFiles,
	}

	for _, opt := range opts {
		opt(&options)
	}

	handles, err := fw.LocateBlockDevices()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}

	state := newState(options.Logger)

	s := &scanner{
		fw:      fw,
		options: options,
		logger:  options.Logger,
		state:   state,
		buckets: state.buckets(),
		seen:    map[uuid.UUID]struct{}{},
	}

	s.populateCache(handles)

	for _, h := range handles {
		s.addVolume(h)
	}

	if options.HasSelfHandle && state.Self == volume.Nil {
		s.logger.Warn("boot volume not found among block devices", zap.Uintptr("handle", uintptr(options.SelfHandle)))
	}

	s.scanExtended()
	s.correlate()
	s.syncNames()

	state.Defects = s.defects.ErrorOrNil()

	s.logger.Debug("discovery finished",
		zap.Int("volumes", state.Volumes.Len()),
		zap.Int("preboot", state.PreBoot.Len()),
		zap.Int("system", state.System.Len()),
		zap.Int("data", state.Data.Len()),
		zap.Int("recovery", state.Recovery.Len()),
	)

	return state, nil
}

func (s *scanner) defect(h firmware.Handle, err error) {
	s.logger.Debug("volume defect", zap.Uintptr("handle", uintptr(h)), zap.Error(err))

	s.defects = multierror.Append(s.defects, fmt.Errorf("handle %d: %w", h, err))
}

func (s *scanner) populateCache(handles []firmware.Handle) {
	populator, ok := s.options.PartitionCache.(Populator)
	if !ok {
		return
	}

	populator.Forget()

	for _, h := range handles {
		bio, err := s.fw.BlockIO(h)
		if err != nil {
			continue
		}

		if err = populator.Add(bio); err != nil {
			s.logger.Debug("failed to cache partition table", zap.Uintptr("handle", uintptr(h)), zap.Error(err))
		}
	}
}

// addVolume scans a single handle and catalogs it.
func (s *scanner) addVolume(h firmware.Handle) {
	id := s.state.Arena.Allocate()
	s.state.Volumes.Append(id)

	// the list holds the only reference from now on
	if err := s.state.Arena.Release(id); err != nil {
		s.defect(h, err)
	}

	v := s.state.Arena.Get(id)

	isRoot := s.scanVolume(h, v)

	if isRoot {
		if err := s.state.Arena.Assign(&s.state.DiscoveredRoot, id); err != nil {
			s.defect(h, err)
		}
	}

	if v.VolUUID != uuid.Nil {
		if _, dup := s.seen[v.VolUUID]; dup && !(s.options.ExemptESP && v.PartTypeGUID == container.ESPType) {
			s.logger.Debug("duplicate volume UUID", zap.Stringer("uuid", v.VolUUID), zap.String("name", v.Name()))

			v.IsReadable = false
		}

		s.seen[v.VolUUID] = struct{}{}
	}

	if !container.KnownLabel(v.Name(), v.PartTypeGUID) {
		ok, err := container.Resolve(s.options.RoleProvider, v)

		switch {
		case err != nil:
			s.defect(h, err)
		case ok:
			s.buckets.Add(id, v.Role)
		}
	}

	if s.options.HasSelfHandle && h == s.options.SelfHandle {
		if err := s.state.Arena.Assign(&s.state.Self, id); err != nil {
			s.defect(h, err)
		}
	}
}

// scanVolume fills the volume record for the handle.
//
// It returns true if the volume is a discoverable root partition.
func (s *scanner) scanVolume(h firmware.Handle, v *volume.Volume) bool {
	v.Handle = h
	v.BlockIOHandle = h

	var err error

	v.DevicePath, err = s.fw.DevicePath(h)
	if err != nil {
		s.defect(h, fmt.Errorf("failed to get device path: %w", err))
	}

	v.BlockIO, err = s.fw.BlockIO(h)
	if err != nil {
		s.defect(h, fmt.Errorf("failed to get block I/O: %w", err))

		v.BlockIO = nil
		v.IsReadable = false

		return false
	}

	media := v.BlockIO.Media()

	if media.BlockSize == classify.OpticalBlockSize {
		v.DiskKind = volume.DiskOptical
	}

	v.Size = media.Size()

	bootable, isRoot := s.walkDevicePath(v)

	sniff := s.sniff(v, media.LogicalPartition)

	bootable = bootable && (sniff.HasBootCode || s.options.LegacyMode == bootcode.ModeBootFiles)

	v.RootDir, err = s.fw.OpenRoot(h)
	if err != nil {
		v.RootDir = nil

		if !errors.Is(err, firmware.ErrUnsupported) {
			s.defect(h, fmt.Errorf("failed to open root directory: %w", err))
		}
	}

	v.IsReadable = v.RootDir != nil

	v.HasBootCode = s.options.LegacyMode.Decide(sniff.HasBootCode, v.FSType, v.RootDir, s.options.BootFiles) && bootable

	s.nameVolume(v)

	return isRoot
}

// walkDevicePath inspects the device path nodes of the volume.
//
// It returns false if the volume can't be legacy bootable, which only the Apple legacy media node decides,
// and true if it is a discoverable root partition.
func (s *scanner) walkDevicePath(v *volume.Volume) (bootable, isRoot bool) {
	bootable = true

	for i, node := range v.DevicePath {
		switch n := node.(type) {
		case *efi.HardDriveDevicePathNode:
			isRoot = identity.Resolve(v, n, s.options.PartitionCache)
		case *efi.CDROMDevicePathNode:
			v.DiskKind = volume.DiskOptical
		case *efi.VendorDevicePathNode:
			if n.Type == efi.MediaDevicePath {
				v.IsAppleLegacy = true
				bootable = false
			}
		}

		switch node.CompoundType() {
		case efi.DevicePathNodeUSBType, efi.DevicePathNodeUSBClassType, efi.DevicePathNodeUSBWWIDType:
			v.DiskKind = volume.DiskExternal
		case efi.DevicePathNodeMACAddrType, efi.DevicePathNodeIPv4Type, efi.DevicePathNodeIPv6Type:
			v.DiskKind = volume.DiskNetwork
		}

		if node.CompoundType().Type() != efi.MessagingDevicePath {
			continue
		}

		if sub := node.CompoundType().SubType(); sub == subTypeFibreChannel || sub == subTypeIEEE1394 {
			v.DiskKind = volume.DiskExternal
		}

		s.locateWholeDisk(v, v.DevicePath[:i+1])
	}

	return bootable, isRoot
}

// locateWholeDisk resolves the whole disk behind a messaging device path prefix.
func (s *scanner) locateWholeDisk(v *volume.Volume, prefix efi.DevicePath) {
	h, _, err := s.fw.LocateDevicePath(prefix)
	if err != nil {
		return
	}

	bio, err := s.fw.BlockIO(h)
	if err != nil {
		return
	}

	wholePath, err := s.fw.DevicePath(h)
	if err != nil {
		wholePath = prefix
	}

	v.WholeDiskHandle = h
	v.WholeDiskBlockIO = bio
	v.WholeDiskDevicePath = wholePath

	if bio.Media().BlockSize == classify.OpticalBlockSize {
		v.DiskKind = volume.DiskOptical
	}
}

// sniff reads the head of the volume, classifies the filesystem and looks for boot code.
func (s *scanner) sniff(v *volume.Volume, logicalPartition bool) bootcode.Result {
	media := v.BlockIO.Media()
	if !media.MediaPresent || media.BlockSize == 0 {
		return bootcode.Result{}
	}

	buf, err := ioutil.ReadPrefix(firmware.NewBlockReader(v.BlockIO, v.BlockIOOffset), classify.SampleSize(media.BlockSize))
	if err != nil {
		s.defect(v.Handle, fmt.Errorf("failed to read volume: %w", err))

		return bootcode.Result{}
	}

	sniff := bootcode.Sniff(buf)

	v.OSName = sniff.OSName
	v.OSIcon = sniff.OSIcon
	v.MBRTable = sniff.Table

	res := classify.Classify(buf, classify.Input{
		SectorSize:       media.BlockSize,
		LogicalPartition: logicalPartition,
		PartTypeGUID:     v.PartTypeGUID,
	})

	v.FSType = res.Type

	if res.UUID != uuid.Nil {
		v.VolUUID = res.UUID
	}

	if res.Label != nil {
		v.FSLabel = *res.Label
	}

	return sniff
}

// nameVolume picks the display name: filesystem label, then partition name.
func (s *scanner) nameVolume(v *volume.Volume) {
	if v.RootDir != nil {
		info, err := v.RootDir.Info()
		if err == nil && info.Label != "" {
			v.FSLabel = info.Label
		}
	}

	switch {
	case v.FSLabel != "":
		v.DisplayName = v.FSLabel
	case v.PartName != "" && !genericPartName(v.PartName):
		v.DisplayName = v.PartName
	}
}

func genericPartName(name string) bool {
	for _, generic := range genericPartNames {
		if strings.EqualFold(name, generic) {
			return true
		}
	}

	return false
}

func (s *scanner) syncNames() {
	if !s.options.SyncAPFS || s.state.PreBoot.Len() == 0 {
		s.state.SyncEnabled = false

		return
	}

	s.state.SyncEnabled = true

	renamed := container.SyncNames(s.state.System.Volumes(), s.state.Data.Volumes())

	s.logger.Debug("synchronized APFS volume names", zap.Int("renamed", renamed))
}
