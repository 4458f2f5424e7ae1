// Package checkpoint loads, selects, and assembles checkpoints out of the
// container's checkpoint-descriptor ring buffer.
package checkpoint

import (
	"errors"
	"fmt"

	"apfs-inspect/internal/blockdevice"
	"apfs-inspect/internal/types"
)

// ErrNonContiguous is returned by LoadDescriptorArea when the superblock's
// checkpoint-descriptor area is B-tree-backed rather than a flat run of
// blocks. Resolving that B-tree is a known gap; callers surface this as a
// graceful, unimplemented termination rather than guessing at a layout.
var ErrNonContiguous = errors.New("checkpoint: descriptor area is non-contiguous (B-tree-backed); unimplemented")

// maxDescriptorBlocks caps how many blocks LoadDescriptorArea will ever try
// to allocate and read for the descriptor area, regardless of what
// nx_xp_desc_blocks claims. A corrupt or hostile superblock can name an
// arbitrarily large block count; this bound turns any count above 1<<20
// blocks into a reported allocation error instead of an allocation of
// whatever size the field names. Counts at or below the bound are still
// read (up to 4 GiB at a 4096-byte block size).
const maxDescriptorBlocks = 1 << 20

// ErrDescriptorAreaTooLarge is returned by LoadDescriptorArea when
// nx_xp_desc_blocks names more blocks than maxDescriptorBlocks allows.
var ErrDescriptorAreaTooLarge = errors.New("checkpoint: descriptor area block count exceeds the sanity bound")

// Descriptor is the loaded checkpoint-descriptor ring buffer: D
// block-sized slots, each either a container superblock or a
// checkpoint-map block, in on-disk order.
type Descriptor struct {
	Slots     [][]byte
	BlockSize uint32
}

// LoadDescriptorArea reads the checkpoint-descriptor area named by sb. It
// returns ErrNonContiguous unchanged if the high bit of nx_xp_desc_blocks
// is set.
func LoadDescriptorArea(dev blockdevice.Reader, sb *types.NxSuperblockT) (*Descriptor, error) {
	if !sb.DescriptorIsContiguous() {
		return nil, ErrNonContiguous
	}

	d := sb.DescriptorBlockCount()
	if d == 0 {
		return nil, fmt.Errorf("checkpoint: descriptor area has zero blocks")
	}
	if d > maxDescriptorBlocks {
		return nil, ErrDescriptorAreaTooLarge
	}

	data, n, err := dev.ReadBlocks(sb.NxXpDescBase, d)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read descriptor area: %w", err)
	}
	if n != d {
		return nil, fmt.Errorf("checkpoint: short read of descriptor area: got %d blocks, want %d", n, d)
	}

	blockSize := dev.BlockSize()
	slots := make([][]byte, d)
	for i := uint32(0); i < d; i++ {
		slots[i] = data[uint64(i)*uint64(blockSize) : uint64(i+1)*uint64(blockSize)]
	}

	return &Descriptor{Slots: slots, BlockSize: blockSize}, nil
}
