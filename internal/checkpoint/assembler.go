package checkpoint

import "fmt"

// Assembled is the checkpoint's logically contiguous sequence of blocks,
// in checkpoint order, extracted from a possibly-wrapped descriptor ring.
type Assembled struct {
	Blocks [][]byte
}

// Assemble extracts the L-block subrange of desc starting at start,
// wrapping around the ring of length D = len(desc.Slots) when necessary.
func Assemble(desc *Descriptor, start, length uint32) (*Assembled, error) {
	d := uint32(len(desc.Slots))
	if d == 0 {
		return nil, fmt.Errorf("checkpoint: empty descriptor area")
	}
	if start >= d {
		return nil, fmt.Errorf("checkpoint: start index %d out of range for descriptor area of length %d", start, d)
	}
	if length == 0 || length > d {
		return nil, fmt.Errorf("checkpoint: invalid checkpoint length %d for descriptor area of length %d", length, d)
	}

	blocks := make([][]byte, 0, length)
	if start+length <= d {
		blocks = append(blocks, desc.Slots[start:start+length]...)
	} else {
		firstSegment := d - start
		blocks = append(blocks, desc.Slots[start:d]...)
		blocks = append(blocks, desc.Slots[0:length-firstSegment]...)
	}

	return &Assembled{Blocks: blocks}, nil
}
