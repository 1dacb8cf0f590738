// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package scan

import (
	"go.uber.org/zap"

	"github.com/siderolabs/go-volscan/bootcode"
	"github.com/siderolabs/go-volscan/container"
	"github.com/siderolabs/go-volscan/firmware"
	"github.com/siderolabs/go-volscan/identity"
)

// Option configures discovery.
type Option func(*Options)

// Options for discovery.
type Options struct {
	Logger *zap.Logger

	PartitionCache identity.Lookup
	RoleProvider   container.Provider

	// ExemptESP keeps EFI System Partitions readable when their UUID duplicates an earlier volume.
	ExemptESP bool
	// SyncAPFS enables renaming of APFS Data volumes after their System volumes.
	SyncAPFS bool

	LegacyMode bootcode.Mode
	BootFiles  []string

	SelfHandle    firmware.Handle
	HasSelfHandle bool
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithPartitionCache sets the GPT partition cache.
//
// If the cache implements Populator, it is repopulated from every block device before the scan.
func WithPartitionCache(cache identity.Lookup) Option {
	return func(o *Options) {
		o.PartitionCache = cache
	}
}

// WithRoleProvider sets the APFS volume role provider.
func WithRoleProvider(provider container.Provider) Option {
	return func(o *Options) {
		o.RoleProvider = provider
	}
}

// WithExemptESP exempts EFI System Partitions from UUID deduplication.
func WithExemptESP(exempt bool) Option {
	return func(o *Options) {
		o.ExemptESP = exempt
	}
}

// WithSyncAPFS enables APFS Data volume name synchronization.
func WithSyncAPFS(sync bool) Option {
	return func(o *Options) {
		o.SyncAPFS = sync
	}
}

// WithLegacyMode sets how legacy bootability is decided.
func WithLegacyMode(mode bootcode.Mode) Option {
	return func(o *Options) {
		o.LegacyMode = mode
	}
}

// WithBootFiles sets the file names checked for legacy bootability.
func WithBootFiles(names []string) Option {
	return func(o *Options) {
		o.BootFiles = names
	}
}

// WithSelfHandle sets the handle of the device the boot manager was loaded from.
func WithSelfHandle(h firmware.Handle) Option {
	return func(o *Options) {
		o.SelfHandle = h
		o.HasSelfHandle = true
	}
}
