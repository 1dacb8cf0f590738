// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package container resolves APFS container membership and volume roles.
package container

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/siderolabs/go-volscan/firmware"
	"github.com/siderolabs/go-volscan/volume"
)

// ESPType is the EFI System Partition type GUID.
var ESPType = uuid.MustParse("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")

// Info describes an APFS volume.
type Info struct {
	ContainerGUID uuid.UUID
	VolumeGUID    uuid.UUID
	Role          volume.Role
}

// Provider answers APFS volume queries.
//
// VolumeInfo returns an error wrapping firmware.ErrUnsupported for handles which are not APFS volumes.
type Provider interface {
	VolumeInfo(h firmware.Handle) (Info, error)
}

// knownLabels are partition and volume names which identify the volume without an APFS query.
var knownLabels = []string{
	"EFI",
	"EFI System Partition",
	"EFI system partition",
	"Recovery HD",
	"Microsoft reserved partition",
	"Basic data partition",
	"Windows Recovery Environment",
	"Microsoft basic data",
}

// KnownLabel returns true if the name or partition type identifies the volume as a well-known non-APFS volume.
func KnownLabel(name string, typeGUID uuid.UUID) bool {
	if typeGUID == ESPType {
		return true
	}

	for _, label := range knownLabels {
		if strings.EqualFold(name, label) {
			return true
		}
	}

	return false
}

// Resolve queries the provider and records container membership, volume UUID and role.
//
// It returns false if the handle is not an APFS volume.
func Resolve(p Provider, v *volume.Volume) (bool, error) {
	if p == nil {
		return false, nil
	}

	info, err := p.VolumeInfo(v.Handle)
	if err != nil {
		if errors.Is(err, firmware.ErrUnsupported) || errors.Is(err, firmware.ErrNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("failed to query APFS volume info: %w", err)
	}

	v.ContainerGUID = info.ContainerGUID
	v.VolUUID = info.VolumeGUID
	v.Role = info.Role

	return true, nil
}

// Buckets are the role lists, views over the master list.
type Buckets struct {
	PreBoot  *volume.List
	System   *volume.List
	Data     *volume.List
	Recovery *volume.List
}

// NewBuckets creates empty role lists in the arena.
func NewBuckets(arena *volume.Arena) Buckets {
	return Buckets{
		PreBoot:  arena.NewList(),
		System:   arena.NewList(),
		Data:     arena.NewList(),
		Recovery: arena.NewList(),
	}
}

// Add appends the volume to the list of its role, and returns false for roles without a list.
func (b Buckets) Add(id volume.ID, role volume.Role) bool {
	//nolint:exhaustive
	switch role {
	case volume.RolePreBoot:
		b.PreBoot.Append(id)
	case volume.RoleSystem:
		b.System.Append(id)
	case volume.RoleData:
		b.Data.Append(id)
	case volume.RoleRecovery:
		b.Recovery.Append(id)
	default:
		return false
	}

	return true
}

// dataTags are the suffixes macOS appends to the name of the Data volume of a System volume.
var dataTags = []string{" - Data", " -Data", "- Data", "-Data", " \u2013 Data", " \u2014 Data"}

// StripDataTag removes the Data volume suffix, returning false if there is none.
func StripDataTag(name string) (string, bool) {
	name = normalize(name)

	for _, tag := range dataTags {
		if stripped, ok := strings.CutSuffix(name, tag); ok {
			return normalize(stripped), true
		}
	}

	return name, false
}

// normalize converts APFS (decomposed) names to NFC and collapses whitespace.
func normalize(name string) string {
	return strings.Join(strings.Fields(norm.NFC.String(name)), " ")
}

// SyncNames renames each Data volume carrying a Data tag to the name of the System volume it belongs to.
//
// It returns the number of renamed volumes.
func SyncNames(system, data []*volume.Volume) int {
	renamed := 0

	for _, dv := range data {
		stripped, ok := StripDataTag(dv.Name())
		if !ok {
			continue
		}

		for _, sv := range system {
			if normalize(sv.Name()) == stripped {
				dv.DisplayName = sv.Name()
				renamed++

				break
			}
		}
	}

	return renamed
}
