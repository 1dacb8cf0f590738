// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package volume

import (
	"slices"

	"go.uber.org/multierr"
)

// List is an ordered list of volumes; membership holds a reference.
type List struct {
	arena *Arena
	ids   []ID
}

// NewList creates an empty list over the arena.
func (a *Arena) NewList() *List {
	return &List{arena: a}
}

// Append adds the volume to the list, retaining it.
func (l *List) Append(id ID) {
	if id == Nil {
		return
	}

	l.arena.Retain(id)
	l.ids = append(l.ids, id)
}

// Len returns the list length.
func (l *List) Len() int {
	return len(l.ids)
}

// ID returns the i-th volume ID.
func (l *List) ID(i int) ID {
	return l.ids[i]
}

// At returns the i-th volume.
func (l *List) At(i int) *Volume {
	return l.arena.Get(l.ids[i])
}

// IDs returns a copy of the member IDs.
func (l *List) IDs() []ID {
	return slices.Clone(l.ids)
}

// Volumes returns the member volumes in order.
func (l *List) Volumes() []*Volume {
	volumes := make([]*Volume, 0, len(l.ids))

	for _, id := range l.ids {
		volumes = append(volumes, l.arena.Get(id))
	}

	return volumes
}

// Index returns the position of the volume in the list or -1.
func (l *List) Index(id ID) int {
	return slices.Index(l.ids, id)
}

// Reset releases every member and empties the list.
func (l *List) Reset() error {
	var err error

	for _, id := range l.ids {
		err = multierr.Append(err, l.arena.Release(id))
	}

	l.ids = nil

	return err
}
