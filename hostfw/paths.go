// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package hostfw

import (
	"encoding/binary"
	"slices"

	efi "github.com/canonical/go-efilib"
)

// PNP0A03, the PCI root bridge.
const pciRootHID = 0x0a0341d0

// PCI device numbers of the emulated controllers.
const (
	pciSATA     = 0x1f
	pciUSB      = 0x14
	pciFirewire = 0x1e
	pciNVMeBase = 0x04
)

const subTypeIEEE1394 efi.DevicePathSubType = 0x04

func pciRoot(device, function uint8) efi.DevicePath {
	return efi.DevicePath{
		&efi.ACPIDevicePathNode{HID: pciRootHID},
		&efi.PCIDevicePathNode{Device: device, Function: function},
	}
}

// diskPath synthesizes the device path of the index-th disk on the bus.
func diskPath(bus Bus, index int) efi.DevicePath {
	switch bus {
	case BusNVMe:
		return append(pciRoot(pciNVMeBase+uint8(index), 0), &efi.NVMENamespaceDevicePathNode{NamespaceID: 1})
	case BusUSB:
		return append(pciRoot(pciUSB, 0), &efi.USBDevicePathNode{ParentPortNumber: uint8(index)})
	case BusFirewire:
		data := make([]byte, 12)
		binary.LittleEndian.PutUint64(data[4:], 0x0800460000000000|uint64(index))

		return append(pciRoot(pciFirewire, 0), &efi.GenericDevicePathNode{
			Type:    efi.MessagingDevicePath,
			SubType: subTypeIEEE1394,
			Data:    data,
		})
	case BusSATA, BusCDROM:
		fallthrough
	default:
		return append(pciRoot(pciSATA, 2), &efi.SATADevicePathNode{
			HBAPortNumber:            uint16(index),
			PortMultiplierPortNumber: 0xffff,
		})
	}
}

func childPath(parent efi.DevicePath, node efi.DevicePathNode) efi.DevicePath {
	return append(slices.Clone(parent), node)
}
