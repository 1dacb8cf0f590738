// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package volume

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ID is a stable handle of a volume in an Arena.
type ID uint32

// Nil is the null volume reference.
const Nil ID = 0

// Lifecycle errors.
var (
	ErrRefcountUnderflow = errors.New("volume reference count underflow")
	ErrInvalidID         = errors.New("invalid volume id")
)

// Option configures the arena.
type Option func(*Options)

// Options holds arena options.
type Options struct {
	Logger *zap.Logger
}

// WithLogger sets the logger used to report lifecycle defects.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Arena owns volume records and their reference counts.
//
// IDs are never reused within an arena, so a stale ID is detected instead of aliasing a new record.
type Arena struct {
	logger *zap.Logger

	records []*Volume
	refs    []int
	live    int
}

// NewArena creates an empty arena.
func NewArena(opts ...Option) *Arena {
	options := Options{
		Logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	return &Arena{
		logger: options.Logger,
	}
}

func (a *Arena) index(id ID) (int, bool) {
	idx := int(id) - 1

	if id == Nil || idx >= len(a.records) {
		return 0, false
	}

	return idx, true
}

// Allocate creates a zero-initialized volume with reference count 1.
func (a *Arena) Allocate() ID {
	a.records = append(a.records, &Volume{})
	a.refs = append(a.refs, 1)
	a.live++

	return ID(len(a.records))
}

// Get returns the volume, or nil for Nil and freed IDs.
func (a *Arena) Get(id ID) *Volume {
	idx, ok := a.index(id)
	if !ok {
		return nil
	}

	return a.records[idx]
}

// RefCount returns the current reference count of the volume.
func (a *Arena) RefCount(id ID) int {
	idx, ok := a.index(id)
	if !ok {
		return 0
	}

	return a.refs[idx]
}

// Len returns the number of volumes not yet freed.
func (a *Arena) Len() int {
	return a.live
}

// Retain increments the reference count. Retaining Nil is a no-op.
func (a *Arena) Retain(id ID) {
	if id == Nil {
		return
	}

	idx, ok := a.index(id)
	if !ok || a.refs[idx] == 0 {
		a.logger.Error("retain of a freed volume", zap.Uint32("id", uint32(id)))

		return
	}

	a.refs[idx]++
}

// Release decrements the reference count, freeing the volume when it drops to zero.
//
// Releasing a volume which is already freed returns ErrRefcountUnderflow.
func (a *Arena) Release(id ID) error {
	if id == Nil {
		return nil
	}

	idx, ok := a.index(id)
	if !ok {
		return fmt.Errorf("volume %d: %w", id, ErrInvalidID)
	}

	if a.refs[idx] == 0 {
		a.logger.Error("release of a volume with zero reference count", zap.Uint32("id", uint32(id)))

		return fmt.Errorf("volume %d: %w", id, ErrRefcountUnderflow)
	}

	a.refs[idx]--

	if a.refs[idx] > 0 {
		return nil
	}

	v := a.records[idx]
	a.records[idx] = nil
	a.live--

	if err := v.release(); err != nil {
		return fmt.Errorf("volume %d: failed to close root directory: %w", id, err)
	}

	return nil
}

// Assign makes dest reference src, releasing the volume dest referenced before.
func (a *Arena) Assign(dest *ID, src ID) error {
	a.Retain(src)

	old := *dest
	*dest = src

	return a.Release(old)
}
