// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package bootcode

import "github.com/siderolabs/go-volscan/internal/magic"

// Loader is a known legacy boot loader.
type Loader struct {
	OSName string
	// Icon is a comma separated list of icon tags, most specific first.
	Icon string

	// Rules are alternatives, the loader is detected if any of them matches.
	Rules []magic.All
}

// Matches returns true if any rule matches.
func (l *Loader) Matches(buf []byte) bool {
	for _, rule := range l.Rules {
		if rule.Matches(buf) {
			return true
		}
	}

	return false
}

func anywhere(value string) magic.All {
	return magic.All{{Window: SectorSize, Value: []byte(value)}}
}

func at(offset int, value string) magic.All {
	return magic.All{{Offset: offset, Value: []byte(value)}}
}

var bootSignature = magic.Magic{Offset: 510, Value: []byte{0x55, 0xAA}}

// Catalogue of boot loaders in detection order.
var Catalogue = []Loader{
	{
		OSName: "Linux",
		Icon:   "linux",
		Rules: []magic.All{
			at(2, "LILO"),
			at(6, "LILO"),
			at(3, "SYSLINUX"),
			anywhere("ISOLINUX"),
		},
	},
	{
		OSName: "Linux",
		Icon:   "grub,linux",
		Rules:  []magic.All{anywhere("Geom\x00Hard Disk\x00Read\x00 Error")},
	},
	{
		OSName: "FreeBSD",
		Icon:   "freebsd",
		Rules: []magic.All{
			{
				{Offset: 502, Value: []byte{0x00, 0x00, 0x00, 0x00}},
				{Offset: 506, Value: []byte{0x50, 0xC3, 0x00, 0x00}}, // 50000
				bootSignature,
			},
			anywhere("Boot loader too large"),
			anywhere("I/O error loading boot loader"),
			anywhere("Starting the BTX loader"),
		},
	},
	{
		OSName: "OpenBSD",
		Icon:   "openbsd",
		Rules: []magic.All{
			anywhere("!Loading"),
			anywhere("/cdboot\x00/CDBOOT\x00"),
		},
	},
	{
		OSName: "NetBSD",
		Icon:   "netbsd",
		Rules: []magic.All{
			anywhere("Not a bootxx image"),
			{{Offset: 1028, Value: []byte{0xD1, 0xB6, 0x86, 0x78}}},
		},
	},
	{
		OSName: "Windows",
		Icon:   "win",
		Rules:  []magic.All{anywhere("NTLDR")},
	},
	{
		OSName: "Windows",
		Icon:   "win8,win",
		Rules:  []magic.All{anywhere("BOOTMGR")},
	},
	{
		OSName: "FreeDOS",
		Icon:   "freedos",
		Rules: []magic.All{
			anywhere("CPUBOOT SYS"),
			anywhere("KERNEL  SYS"),
		},
	},
	{
		OSName: "eComStation",
		Icon:   "ecomstation",
		Rules: []magic.All{
			anywhere("OS2LDR"),
			anywhere("OS2BOOT"),
		},
	},
	{
		OSName: "BeOS",
		Icon:   "beos",
		Rules:  []magic.All{anywhere("Be Boot Loader")},
	},
	{
		OSName: "ZETA",
		Icon:   "zeta,beos",
		Rules:  []magic.All{anywhere("yT Boot Loader")},
	},
	{
		OSName: "Haiku",
		Icon:   "haiku,beos",
		Rules: []magic.All{
			anywhere("\x04beos\x06system\x05zbeos"),
			anywhere("\x06system\x0chaiku_loader"),
		},
	},
}

// Placeholders are messages of dummy boot sectors written by filesystem formatters.
var Placeholders = []magic.Magic{
	{Window: SectorSize, Value: []byte("Non-system disk")},
	{Window: SectorSize, Value: []byte("This is not a bootable disk")},
	{Window: SectorSize, Value: []byte("Press any key to restart")},
}
