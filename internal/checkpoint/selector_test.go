package checkpoint

import (
	"encoding/binary"
	"testing"

	"apfs-inspect/internal/checksum"
	"apfs-inspect/internal/types"
)

const testBlockSize = 1024

func sealed(block []byte) []byte {
	for i := 0; i < checksum.Size; i++ {
		block[i] = 0
	}
	sum := checksum.Compute(block)
	copy(block[:checksum.Size], sum[:])
	return block
}

func superblockSlot(t *testing.T, magic uint32, xid types.XidT) []byte {
	t.Helper()
	block := make([]byte, testBlockSize)
	le := binary.LittleEndian
	le.PutUint64(block[16:24], uint64(xid))
	le.PutUint32(block[24:28], types.ObjectTypeNxSuperblock)
	le.PutUint32(block[32:36], magic)
	le.PutUint32(block[36:40], testBlockSize)
	le.PutUint32(block[180:184], types.NxMaxFileSystems)
	return sealed(block)
}

func checkpointMapSlot(t *testing.T, xid types.XidT) []byte {
	t.Helper()
	block := make([]byte, testBlockSize)
	le := binary.LittleEndian
	le.PutUint64(block[16:24], uint64(xid))
	le.PutUint32(block[24:28], types.ObjectTypeCheckpointMap)
	return sealed(block)
}

func corruptedSlot(t *testing.T) []byte {
	t.Helper()
	block := superblockSlot(t, types.NxMagic, 50)
	block[100] ^= 0xff
	return block
}

func TestSelectPicksHighestXid(t *testing.T) {
	desc := &Descriptor{Slots: [][]byte{
		superblockSlot(t, types.NxMagic, 10),
		checkpointMapSlot(t, 10),
		superblockSlot(t, types.NxMagic, 100),
		checkpointMapSlot(t, 100),
	}}

	sel, err := Select(desc, nil)
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if sel.Index != 2 {
		t.Fatalf("Select() chose index %d, want 2", sel.Index)
	}
	if sel.Superblock.NxO.OXid != 100 {
		t.Fatalf("selected xid = %d, want 100", sel.Superblock.NxO.OXid)
	}
}

func TestSelectSkipsCorruptSlot(t *testing.T) {
	desc := &Descriptor{Slots: [][]byte{
		superblockSlot(t, types.NxMagic, 10),
		corruptedSlot(t),
		superblockSlot(t, types.NxMagic, 20),
	}}

	sel, err := Select(desc, nil)
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if sel.Index != 2 {
		t.Fatalf("Select() chose index %d, want 2 (corrupt slot skipped)", sel.Index)
	}
	if len(sel.Warnings) == 0 {
		t.Error("expected a warning for the corrupt slot")
	}
}

func TestSelectHonorsExclusionSet(t *testing.T) {
	desc := &Descriptor{Slots: [][]byte{
		superblockSlot(t, types.NxMagic, 10),
		superblockSlot(t, types.NxMagic, 100),
	}}

	sel, err := Select(desc, map[types.XidT]bool{100: true})
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if sel.Index != 0 {
		t.Fatalf("Select() chose index %d, want 0 (xid 100 excluded by rewind)", sel.Index)
	}
}

func TestSelectFailsWithNoValidSuperblock(t *testing.T) {
	desc := &Descriptor{Slots: [][]byte{
		checkpointMapSlot(t, 10),
		checkpointMapSlot(t, 20),
	}}

	sel, err := Select(desc, nil)
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if sel.Index != -1 {
		t.Fatalf("Select() chose index %d, want -1 (no superblock present)", sel.Index)
	}
}
