package objectmap

import (
	"encoding/binary"
	"testing"

	"apfs-inspect/internal/checksum"
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
	return data, 1, nil
}

func (f *fakeDevice) BlockSize() uint32        { return f.blockSize }
func (f *fakeDevice) SetBlockSize(size uint32) { f.blockSize = size }
func (f *fakeDevice) Close() error             { return nil }

func buildOmapBlock(t *testing.T, treeType uint32, treeOid types.OidT, seal bool) []byte {
	t.Helper()
	block := make([]byte, 128)
	le := binary.LittleEndian
	le.PutUint32(block[24:28], types.ObjectTypeOmap)
	le.PutUint32(block[40:44], treeType)
	le.PutUint64(block[48:56], uint64(treeOid))
	if seal {
		sum := checksum.Compute(block)
		copy(block[:8], sum[:])
	}
	return block
}

func TestLoadAndBtreeRootPhysical(t *testing.T) {
	omapBlock := buildOmapBlock(t, types.ObjPhysical, 200, true)
	rootBlock := make([]byte, 64)

	dev := &fakeDevice{blockSize: 128, images: map[types.Paddr][]byte{
		5:   omapBlock,
		200: rootBlock,
	}}

	loaded, err := Load(dev, types.OidT(5))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !loaded.IsValid() {
		t.Fatal("expected omap block to validate")
	}
	if loaded.Omap.OmTreeOid != 200 {
		t.Fatalf("OmTreeOid = %d, want 200", loaded.Omap.OmTreeOid)
	}

	root, err := BtreeRoot(dev, loaded)
	if err != nil {
		t.Fatalf("BtreeRoot() error: %v", err)
	}
	if len(root) != len(rootBlock) {
		t.Fatalf("BtreeRoot() returned %d bytes, want %d", len(root), len(rootBlock))
	}
}

func TestBtreeRootRejectsNonPhysical(t *testing.T) {
	omapBlock := buildOmapBlock(t, types.ObjVirtual, 200, true)
	dev := &fakeDevice{blockSize: 128, images: map[types.Paddr][]byte{5: omapBlock}}

	loaded, err := Load(dev, types.OidT(5))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if _, err := BtreeRoot(dev, loaded); err != ErrNotPhysical {
		t.Fatalf("BtreeRoot() error = %v, want ErrNotPhysical", err)
	}
}

func TestLoadDetectsInvalidChecksum(t *testing.T) {
	omapBlock := buildOmapBlock(t, types.ObjPhysical, 200, false)
	dev := &fakeDevice{blockSize: 128, images: map[types.Paddr][]byte{5: omapBlock}}

	loaded, err := Load(dev, types.OidT(5))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.IsValid() {
		t.Fatal("expected unsealed omap block to fail validation")
	}
}
