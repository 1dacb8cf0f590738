// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package scan

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/siderolabs/go-volscan/container"
	"github.com/siderolabs/go-volscan/volume"
)

// DiscoveryState is the catalogue built by a scan.
//
// Role lists are views over the master list, sharing its records.
type DiscoveryState struct {
	Arena *volume.Arena

	Volumes  *volume.List
	PreBoot  *volume.List
	System   *volume.List
	Data     *volume.List
	Recovery *volume.List

	// DiscoveredRoot is the last discoverable root partition candidate found.
	DiscoveredRoot volume.ID
	// Self is the volume the boot manager was loaded from.
	Self volume.ID

	SyncEnabled bool

	// Defects collects per-device failures which didn't stop the scan.
	Defects error
}

func newState(logger *zap.Logger) *DiscoveryState {
	arena := volume.NewArena(volume.WithLogger(logger))
	buckets := container.NewBuckets(arena)

	return &DiscoveryState{
		Arena:    arena,
		Volumes:  arena.NewList(),
		PreBoot:  buckets.PreBoot,
		System:   buckets.System,
		Data:     buckets.Data,
		Recovery: buckets.Recovery,
	}
}

func (s *DiscoveryState) buckets() container.Buckets {
	return container.Buckets{
		PreBoot:  s.PreBoot,
		System:   s.System,
		Data:     s.Data,
		Recovery: s.Recovery,
	}
}

// Root returns the discovered root volume, or nil.
func (s *DiscoveryState) Root() *volume.Volume {
	return s.Arena.Get(s.DiscoveredRoot)
}

// SelfVolume returns the volume the boot manager was loaded from, or nil.
func (s *DiscoveryState) SelfVolume() *volume.Volume {
	return s.Arena.Get(s.Self)
}

// Close releases every volume of the state.
//
// After Close every record is freed, so the arena is empty unless references leaked.
func (s *DiscoveryState) Close() error {
	var err error

	for _, l := range []*volume.List{s.PreBoot, s.System, s.Data, s.Recovery} {
		err = multierr.Append(err, l.Reset())
	}

	err = multierr.Append(err, s.Arena.Assign(&s.DiscoveredRoot, volume.Nil))
	err = multierr.Append(err, s.Arena.Assign(&s.Self, volume.Nil))
	err = multierr.Append(err, s.Volumes.Reset())

	return err
}
