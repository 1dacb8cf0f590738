// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/siderolabs/go-volscan/partitioning"
	"github.com/siderolabs/go-volscan/partitioning/gpt"
	"github.com/siderolabs/go-volscan/partitioning/mbr"
)

// Partitioning schemes.
const (
	schemeGPT = "gpt"
	schemeMBR = "mbr"
)

// layout describes a disk image.
//
//nolint:govet
type layout struct {
	Scheme     string            `yaml:"scheme,omitempty"`
	Size       datasize.ByteSize `yaml:"size"`
	SectorSize uint              `yaml:"sectorSize,omitempty"`
	Alignment  datasize.ByteSize `yaml:"alignment,omitempty"`

	DiskGUID      string `yaml:"diskGUID,omitempty"`
	DiskSignature uint32 `yaml:"diskSignature,omitempty"`

	Partitions []layoutPartition `yaml:"partitions"`
}

//nolint:govet
type layoutPartition struct {
	Name string            `yaml:"name"`
	Type string            `yaml:"type"`
	Size datasize.ByteSize `yaml:"size"`
	GUID string            `yaml:"guid,omitempty"`

	LegacyBIOSBootable bool `yaml:"legacyBIOSBootable,omitempty"`

	// MBR only.
	Bootable bool `yaml:"bootable,omitempty"`
	Logical  bool `yaml:"logical,omitempty"`
}

// partitionTypes are the aliases accepted in place of type GUIDs.
var partitionTypes = map[string]uuid.UUID{
	"esp":       uuid.MustParse("C12A7328-F81F-11D2-BA4B-00A0C93EC93B"),
	"bios":      uuid.MustParse("21686148-6449-6E6F-744E-656564454649"),
	"linux":     uuid.MustParse("0FC63DAF-8483-4772-8E79-3D69D8477DE4"),
	"root":      uuid.MustParse("4F68BCE3-E8CD-4DB1-96E7-FBCAF984B709"),
	"basicdata": uuid.MustParse("EBD0A0A2-B9E5-4433-87C0-68B6B72699C7"),
	"msr":       uuid.MustParse("E3C9E316-0B5C-4DB8-817D-F92DF00215AE"),
	"apfs":      uuid.MustParse("7C3457EF-0000-11AA-AA11-00306543ECAC"),
	"hfs":       uuid.MustParse("48465300-0000-11AA-AA11-00306543ECAC"),
}

// mbrPartitionTypes are the aliases accepted in place of MBR type bytes.
var mbrPartitionTypes = map[string]uint8{
	"fat12": partitioning.TypeFAT12,
	"fat16": partitioning.TypeFAT16,
	"fat32": partitioning.TypeFAT32LBA,
	"ntfs":  partitioning.TypeNTFS,
	"linux": partitioning.TypeLinux,
	"esp":   partitioning.TypeEFISystem,
	"hfs":   partitioning.TypeHFSPlus,
}

func parsePartitionType(s string) (uuid.UUID, error) {
	if t, ok := partitionTypes[strings.ToLower(s)]; ok {
		return t, nil
	}

	return uuid.Parse(s)
}

func parseMBRPartitionType(s string) (uint8, error) {
	if t, ok := mbrPartitionTypes[strings.ToLower(s)]; ok {
		return t, nil
	}

	t, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, err
	}

	return uint8(t), nil
}

func parseLayout(data []byte) (*layout, error) {
	var l layout

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&l); err != nil {
		return nil, fmt.Errorf("failed to decode layout: %w", err)
	}

	if l.Size == 0 {
		return nil, errors.New("image size is required")
	}

	switch l.Scheme {
	case "":
		l.Scheme = schemeGPT
	case schemeGPT, schemeMBR:
	default:
		return nil, fmt.Errorf("unknown partitioning scheme %q", l.Scheme)
	}

	if l.SectorSize == 0 {
		l.SectorSize = 512
	}

	if l.Alignment == 0 {
		l.Alignment = datasize.MB
	}

	return &l, nil
}

func newMkimageCmd(c *cli) *cobra.Command {
	mkimageCmd := &cobra.Command{
		Use:   "mkimage <layout.yaml> <image>",
		Short: "Create a GPT or MBR disk image, compressed with zstd if the name ends with .zst",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			l, err := parseLayout(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			return c.mkimage(l, args[1], c.config.GetBool("force"))
		},
	}

	mkimageCmd.Flags().BoolP("force", "f", false, "overwrite an existing image")

	return mkimageCmd
}

func (c *cli) mkimage(l *layout, path string, force bool) error {
	compress := strings.HasSuffix(path, ".zst")

	rawPath := path
	if compress {
		rawPath = strings.TrimSuffix(path, ".zst")
	}

	flags := os.O_RDWR | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(rawPath, flags, 0o644)
	if err != nil {
		return err
	}

	if err = writeLayout(f, l); err != nil {
		return multierr.Combine(err, f.Close())
	}

	c.logger.Info("image created", zap.String("path", rawPath), zap.String("size", l.Size.HR()))

	if !compress {
		return f.Close()
	}

	if err = compressFile(f, path, flags); err != nil {
		return multierr.Combine(err, f.Close(), os.Remove(rawPath))
	}

	if err = f.Close(); err != nil {
		return err
	}

	return os.Remove(rawPath)
}

func writeLayout(f *os.File, l *layout) error {
	if err := f.Truncate(int64(l.Size.Bytes())); err != nil {
		return err
	}

	dev, err := partitioning.NewFileDevice(f, l.SectorSize)
	if err != nil {
		return err
	}

	if l.Scheme == schemeMBR {
		return writeMBR(dev, l)
	}

	return writeGPT(dev, l)
}

func writeGPT(dev *partitioning.FileDevice, l *layout) error {
	opts := []gpt.Option{gpt.WithAlignment(uint(l.Alignment.Bytes()))}

	if l.DiskGUID != "" {
		diskGUID, err := uuid.Parse(l.DiskGUID)
		if err != nil {
			return fmt.Errorf("invalid disk GUID: %w", err)
		}

		opts = append(opts, gpt.WithDiskGUID(diskGUID))
	}

	table, err := gpt.New(dev, opts...)
	if err != nil {
		return err
	}

	for i, p := range l.Partitions {
		partType, err := parsePartitionType(p.Type)
		if err != nil {
			return fmt.Errorf("partition %d: invalid type %q: %w", i+1, p.Type, err)
		}

		partOpts := []gpt.PartitionOption{gpt.WithLegacyBIOSBootableAttribute(p.LegacyBIOSBootable)}

		if p.GUID != "" {
			guid, err := uuid.Parse(p.GUID)
			if err != nil {
				return fmt.Errorf("partition %d: invalid GUID: %w", i+1, err)
			}

			partOpts = append(partOpts, gpt.WithUniqueGUID(guid))
		}

		if _, _, err = table.AllocatePartition(p.Size.Bytes(), p.Name, partType, partOpts...); err != nil {
			return fmt.Errorf("partition %d: %w", i+1, err)
		}
	}

	return table.Write()
}

// writeMBR places partitions back to back on alignment boundaries, logical partitions
// get their EBR in the sector before.
func writeMBR(dev *partitioning.FileDevice, l *layout) error {
	table := mbr.New(dev, l.DiskSignature)

	sectorSize := uint64(l.SectorSize)
	alignment := max(l.Alignment.Bytes()/sectorSize, 1)
	totalSectors := dev.GetSize() / sectorSize
	cursor := alignment
	logical := false

	for i, p := range l.Partitions {
		partType, err := parseMBRPartitionType(p.Type)
		if err != nil {
			return fmt.Errorf("partition %d: invalid type %q: %w", i+1, p.Type, err)
		}

		if logical && !p.Logical {
			return fmt.Errorf("partition %d: primary partitions must precede logical ones", i+1)
		}

		logical = p.Logical

		first := (cursor + alignment - 1) / alignment * alignment
		if logical {
			first++
		}

		if first >= totalSectors {
			return fmt.Errorf("partition %d: %w", i+1, gpt.ErrNoSpace)
		}

		sectors := totalSectors - first
		if p.Size != 0 {
			sectors = p.Size.Bytes() / sectorSize
		}

		if sectors == 0 || first+sectors > totalSectors {
			return fmt.Errorf("partition %d: %w", i+1, gpt.ErrNoSpace)
		}

		part := mbr.Partition{Type: partType, Bootable: p.Bootable, FirstLBA: first, Sectors: sectors}

		if logical {
			err = table.AddLogical(part)
		} else {
			err = table.AddPrimary(part)
		}

		if err != nil {
			return fmt.Errorf("partition %d: %w", i+1, err)
		}

		cursor = first + sectors
	}

	return table.Write()
}

func compressFile(src *os.File, path string, flags int) error {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return err
	}

	out, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return err
	}

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return multierr.Combine(err, out.Close())
	}

	if _, err = io.Copy(zw, src); err != nil {
		return multierr.Combine(err, zw.Close(), out.Close())
	}

	return multierr.Combine(zw.Close(), out.Close())
}
