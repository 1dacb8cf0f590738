// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package classify identifies the filesystem on a volume from a single sample of its leading bytes.
package classify

import (
	"github.com/google/uuid"

	"github.com/siderolabs/go-volscan/classify/internal/chain"
	"github.com/siderolabs/go-volscan/classify/internal/filesystems/typehint"
	"github.com/siderolabs/go-volscan/classify/internal/probe"
	"github.com/siderolabs/go-volscan/volume"
)

// OpticalBlockSize is the block size of CD/DVD media.
const OpticalBlockSize = typehint.OpticalSectorSize

// SampleBytes is the minimum sample which covers every signature the classifier inspects.
const SampleBytes = 68 * 1024

// Input is the context of a classification besides the sample itself.
type Input struct {
	// SectorSize is the block size of the media, 2048 for optical media.
	SectorSize uint32
	// LogicalPartition is set when the volume is a partition rather than a whole disk.
	LogicalPartition bool
	// PartTypeGUID is the GPT partition type, if known.
	PartTypeGUID uuid.UUID
}

// Result of the classification.
type Result struct {
	Type  volume.FSType
	UUID  uuid.UUID
	Label *string
}

var defaultChain = chain.Default()

// SampleSize returns the number of bytes to read for Classify, rounded up to whole sectors.
func SampleSize(sectorSize uint32) int {
	size := max(SampleBytes, defaultChain.MaxMagicSize())

	if sectorSize == 0 {
		return size
	}

	ss := int(sectorSize)

	return (size + ss - 1) / ss * ss
}

// Classify returns the filesystem type, identity and label found in buf.
//
// Classify never reads past len(buf): signatures located beyond a short sample do not match.
func Classify(buf []byte, in Input) Result {
	res, ok := defaultChain.Match(buf, probe.Input{
		SectorSize:       in.SectorSize,
		LogicalPartition: in.LogicalPartition,
		PartTypeGUID:     in.PartTypeGUID,
	})
	if !ok {
		return Result{Type: volume.FSUnknown}
	}

	return Result{
		Type:  res.Type,
		UUID:  res.UUID,
		Label: res.Label,
	}
}
