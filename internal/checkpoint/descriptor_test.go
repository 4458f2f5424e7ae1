package checkpoint

import (
	"errors"
	"testing"

	"apfs-inspect/internal/types"
)

type fakeDevice struct {
	blockSize uint32
	images    map[types.Paddr][]byte
}

func (f *fakeDevice) ReadBlocks(paddr types.Paddr, count uint32) ([]byte, uint32, error) {
	data, ok := f.images[paddr]
	if !ok {
		return nil, 0, nil
	}
	blocks := uint32(len(data)) / f.blockSize
	if blocks > count {
		blocks = count
	}
	return data[:uint64(blocks)*uint64(f.blockSize)], blocks, nil
}

func (f *fakeDevice) BlockSize() uint32        { return f.blockSize }
func (f *fakeDevice) SetBlockSize(size uint32) { f.blockSize = size }
func (f *fakeDevice) Close() error             { return nil }

func TestLoadDescriptorAreaContiguous(t *testing.T) {
	dev := &fakeDevice{blockSize: 64, images: map[types.Paddr][]byte{
		10: make([]byte, 64*4),
	}}
	sb := &types.NxSuperblockT{NxXpDescBase: 10, NxXpDescBlocks: 4}

	desc, err := LoadDescriptorArea(dev, sb)
	if err != nil {
		t.Fatalf("LoadDescriptorArea() error: %v", err)
	}
	if len(desc.Slots) != 4 {
		t.Fatalf("LoadDescriptorArea() returned %d slots, want 4", len(desc.Slots))
	}
}

func TestLoadDescriptorAreaNonContiguous(t *testing.T) {
	dev := &fakeDevice{blockSize: 64}
	sb := &types.NxSuperblockT{NxXpDescBase: 10, NxXpDescBlocks: 4 | types.NxXpDescBlocksFlag}

	_, err := LoadDescriptorArea(dev, sb)
	if !errors.Is(err, ErrNonContiguous) {
		t.Fatalf("LoadDescriptorArea() error = %v, want ErrNonContiguous", err)
	}
}

func TestLoadDescriptorAreaRejectsImplausibleBlockCount(t *testing.T) {
	dev := &fakeDevice{blockSize: 64}
	sb := &types.NxSuperblockT{NxXpDescBase: 10, NxXpDescBlocks: maxDescriptorBlocks + 1}

	_, err := LoadDescriptorArea(dev, sb)
	if !errors.Is(err, ErrDescriptorAreaTooLarge) {
		t.Fatalf("LoadDescriptorArea() error = %v, want ErrDescriptorAreaTooLarge", err)
	}
}
