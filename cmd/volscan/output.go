// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/siderolabs/gen/xslices"
	"gopkg.in/yaml.v3"

	"github.com/siderolabs/go-volscan/scan"
	"github.com/siderolabs/go-volscan/volume"
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(s)); f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("invalid output format %q", s)
	}
}

//nolint:govet
type volumeReport struct {
	Handle     uint              `json:"handle" yaml:"handle"`
	Name       string            `json:"name" yaml:"name"`
	Kind       string            `json:"kind" yaml:"kind"`
	FS         string            `json:"fs" yaml:"fs"`
	Size       datasize.ByteSize `json:"size" yaml:"size"`
	VolUUID    string            `json:"volUUID,omitempty" yaml:"volUUID,omitempty"`
	PartGUID   string            `json:"partGUID,omitempty" yaml:"partGUID,omitempty"`
	PartType   string            `json:"partType,omitempty" yaml:"partType,omitempty"`
	PartName   string            `json:"partName,omitempty" yaml:"partName,omitempty"`
	Container  string            `json:"container,omitempty" yaml:"container,omitempty"`
	Role       string            `json:"role,omitempty" yaml:"role,omitempty"`
	OS         string            `json:"os,omitempty" yaml:"os,omitempty"`
	Flags      []string          `json:"flags,omitempty" yaml:"flags,omitempty"`
	DevicePath string            `json:"devicePath,omitempty" yaml:"devicePath,omitempty"`
}

//nolint:govet
type report struct {
	Volumes  []volumeReport `json:"volumes" yaml:"volumes"`
	Root     string         `json:"root,omitempty" yaml:"root,omitempty"`
	Self     string         `json:"self,omitempty" yaml:"self,omitempty"`
	PreBoot  []string       `json:"preboot,omitempty" yaml:"preboot,omitempty"`
	System   []string       `json:"system,omitempty" yaml:"system,omitempty"`
	Data     []string       `json:"data,omitempty" yaml:"data,omitempty"`
	Recovery []string       `json:"recovery,omitempty" yaml:"recovery,omitempty"`
	Synced   bool           `json:"synced,omitempty" yaml:"synced,omitempty"`
}

func formatUUID(u uuid.UUID) string {
	if u == uuid.Nil {
		return ""
	}

	return u.String()
}

func volumeFlags(v *volume.Volume) []string {
	var flags []string

	for _, f := range []struct {
		set  bool
		name string
	}{
		{v.IsReadable, "readable"},
		{v.HasBootCode, "bootcode"},
		{v.IsMBRPartition, fmt.Sprintf("mbr%d", v.MBRPartitionIndex+1)},
		{v.Handle == 0, "logical"},
		{v.IsAppleLegacy, "apple-legacy"},
		{v.IsMarkedReadOnly, "read-only"},
	} {
		if f.set {
			flags = append(flags, f.name)
		}
	}

	return flags
}

func newVolumeReport(v *volume.Volume) volumeReport {
	r := volumeReport{
		Handle:    uint(v.Handle),
		Name:      v.Name(),
		Kind:      v.DiskKind.String(),
		FS:        v.FSType.String(),
		Size:      datasize.ByteSize(v.Size),
		VolUUID:   formatUUID(v.VolUUID),
		PartGUID:  formatUUID(v.PartGUID),
		PartType:  formatUUID(v.PartTypeGUID),
		PartName:  v.PartName,
		Container: formatUUID(v.ContainerGUID),
		OS:        v.OSName,
		Flags:     volumeFlags(v),
	}

	if v.Role != volume.RoleUndefined {
		r.Role = v.Role.String()
	}

	if v.DevicePath != nil {
		r.DevicePath = v.DevicePath.String()
	}

	return r
}

func newReport(state *scan.DiscoveryState) report {
	names := func(l *volume.List) []string {
		return xslices.Map(l.Volumes(), (*volume.Volume).Name)
	}

	r := report{
		Volumes:  xslices.Map(state.Volumes.Volumes(), newVolumeReport),
		PreBoot:  names(state.PreBoot),
		System:   names(state.System),
		Data:     names(state.Data),
		Recovery: names(state.Recovery),
		Synced:   state.SyncEnabled,
	}

	if root := state.Root(); root != nil {
		r.Root = root.Name()
	}

	if self := state.SelfVolume(); self != nil {
		r.Self = self.Name()
	}

	return r
}

func writeReport(w io.Writer, format outputFormat, r report) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(r)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(r); err != nil {
			return err
		}

		return enc.Close()
	case formatTable:
		writeTable(w, r)

		return nil
	default:
		return fmt.Errorf("invalid output format %q", format)
	}
}

func writeTable(w io.Writer, r report) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)

	tw.AppendHeader(table.Row{"Handle", "Name", "Kind", "FS", "Size", "Role", "Flags", "Device Path"})

	for _, v := range r.Volumes {
		handle := "-"
		if v.Handle != 0 {
			handle = fmt.Sprint(v.Handle)
		}

		tw.AppendRow(table.Row{handle, v.Name, v.Kind, v.FS, v.Size.HR(), v.Role, strings.Join(v.Flags, ","), v.DevicePath})
	}

	tw.Render()

	if r.Root != "" {
		fmt.Fprintf(w, "root: %s\n", r.Root)
	}

	if r.Self != "" {
		fmt.Fprintf(w, "self: %s\n", r.Self)
	}
}
