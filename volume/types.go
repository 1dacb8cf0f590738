// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package volume

import (
	"fmt"
	"strings"
)

// FSType is the filesystem type detected on a volume.
type FSType int

// Filesystem types.
const (
	FSUnknown FSType = iota
	FSWholeDisk
	FSFAT
	FSNTFS
	FSExt2
	FSExt3
	FSExt4
	FSHFSPlus
	FSAPFS
	FSBtrfs
	FSXFS
	FSJFS
	FSReiserFS
	FSISO9660
)

var fsTypeNames = map[FSType]string{
	FSUnknown:   "unknown",
	FSWholeDisk: "whole disk",
	FSFAT:       "FAT",
	FSNTFS:      "NTFS",
	FSExt2:      "ext2",
	FSExt3:      "ext3",
	FSExt4:      "ext4",
	FSHFSPlus:   "HFS+",
	FSAPFS:      "APFS",
	FSBtrfs:     "Btrfs",
	FSXFS:       "XFS",
	FSJFS:       "JFS",
	FSReiserFS:  "ReiserFS",
	FSISO9660:   "ISO-9660",
}

func (t FSType) String() string {
	if name, ok := fsTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("FSType(%d)", int(t))
}

// ParseFSType converts a filesystem name back to the FSType.
func ParseFSType(name string) (FSType, error) {
	for t, n := range fsTypeNames {
		if strings.EqualFold(n, name) {
			return t, nil
		}
	}

	return FSUnknown, fmt.Errorf("unknown filesystem type %q", name)
}

// IsExt returns true for the ext2/3/4 family.
func (t FSType) IsExt() bool {
	return t == FSExt2 || t == FSExt3 || t == FSExt4
}

// DiskKind is a coarse classification of the transport a volume lives on.
type DiskKind int

const (
	// DiskInternal is a fixed internal disk.
	DiskInternal DiskKind = iota
	// DiskExternal is a removable disk on USB, 1394 or Fibre Channel.
	DiskExternal
	// DiskOptical is a CD/DVD drive or El Torito image.
	DiskOptical
	// DiskNetwork is a network boot device.
	DiskNetwork
)

func (k DiskKind) String() string {
	//nolint:exhaustive
	switch k {
	case DiskExternal:
		return "external"
	case DiskOptical:
		return "optical"
	case DiskNetwork:
		return "network"
	default:
		return "internal"
	}
}

// ParseDiskKind converts string id to the disk kind.
func ParseDiskKind(id string) (DiskKind, error) {
	switch strings.ToLower(id) {
	case "internal":
		return DiskInternal, nil
	case "external":
		return DiskExternal, nil
	case "optical":
		return DiskOptical, nil
	case "network":
		return DiskNetwork, nil
	}

	return 0, fmt.Errorf("unknown disk kind %v", id)
}

// Role is the role of an APFS volume within its container.
type Role uint16

// APFS volume roles.
const (
	RoleUndefined Role = 0x00
	RoleSystem    Role = 0x01
	RoleUser      Role = 0x02
	RoleRecovery  Role = 0x04
	RoleVM        Role = 0x08
	RolePreBoot   Role = 0x10
	RoleInstaller Role = 0x20
	RoleData      Role = 0x40
	RoleUpdate    Role = 0xC0
)

var roleNames = map[Role]string{
	RoleUndefined: "Undefined",
	RoleSystem:    "System",
	RoleUser:      "User",
	RoleRecovery:  "Recovery",
	RoleVM:        "VM",
	RolePreBoot:   "PreBoot",
	RoleInstaller: "Installer",
	RoleData:      "Data",
	RoleUpdate:    "Update",
}

// Known returns true if the role is one of the enumerated roles.
func (r Role) Known() bool {
	_, ok := roleNames[r]

	return ok
}

// String formats the role as "0xNN - Name", with "Unknown" for roles not enumerated.
func (r Role) String() string {
	name, ok := roleNames[r]
	if !ok {
		name = "Unknown"
	}

	return fmt.Sprintf("0x%02X - %s", uint16(r), name)
}

// ParseRole converts a role name back to the Role.
func ParseRole(name string) (Role, error) {
	for r, n := range roleNames {
		if strings.EqualFold(n, name) {
			return r, nil
		}
	}

	return RoleUndefined, fmt.Errorf("unknown volume role %q", name)
}
