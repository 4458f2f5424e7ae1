package superblock

import (
	"encoding/binary"
	"testing"

	"apfs-inspect/internal/types"
)

func buildTestSuperblock(t *testing.T, magic uint32, xid types.XidT, fsOids []types.OidT) []byte {
	t.Helper()
	block := make([]byte, 4096)
	le := binary.LittleEndian

	le.PutUint64(block[8:16], 1)
	le.PutUint64(block[16:24], uint64(xid))
	le.PutUint32(block[24:28], types.ObjectTypeNxSuperblock)

	le.PutUint32(block[32:36], magic)
	le.PutUint32(block[36:40], 4096)
	le.PutUint64(block[40:48], 10000)
	le.PutUint32(block[104:108], 8)
	le.PutUint64(block[112:120], 100)
	le.PutUint32(block[136:140], 5)
	le.PutUint32(block[140:144], 3)
	le.PutUint64(block[160:168], 200)
	le.PutUint32(block[180:184], types.NxMaxFileSystems)

	offset := 184
	for i, oid := range fsOids {
		le.PutUint64(block[offset+i*8:offset+i*8+8], uint64(oid))
	}

	return block
}

func TestDecodeRoundTrip(t *testing.T) {
	block := buildTestSuperblock(t, types.NxMagic, 100, []types.OidT{111, 222})

	sb, err := Decode(block)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if sb.NxMagic != types.NxMagic {
		t.Errorf("NxMagic = 0x%x, want 0x%x", sb.NxMagic, types.NxMagic)
	}
	if sb.NxO.OXid != 100 {
		t.Errorf("OXid = %d, want 100", sb.NxO.OXid)
	}
	if sb.NxXpDescIndex != 5 || sb.NxXpDescLen != 3 {
		t.Errorf("descriptor locator = (%d, %d), want (5, 3)", sb.NxXpDescIndex, sb.NxXpDescLen)
	}
	if sb.NxOmapOid != 200 {
		t.Errorf("NxOmapOid = %d, want 200", sb.NxOmapOid)
	}
	if !IsWellFormed(sb) {
		t.Error("expected well-formed magic to be recognized")
	}
}

func TestDecodeRejectsTooSmall(t *testing.T) {
	if _, err := Decode(make([]byte, 32)); err == nil {
		t.Fatal("expected error decoding a block too small for nx_superblock_t")
	}
}

func TestVolumeOIDsStopsAtFirstZero(t *testing.T) {
	block := buildTestSuperblock(t, types.NxMagic, 1, []types.OidT{111, 222, 0, 333})
	sb, err := Decode(block)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	oids := VolumeOIDs(sb)
	if len(oids) != 2 {
		t.Fatalf("VolumeOIDs() = %v, want 2 entries", oids)
	}
	if oids[0] != 111 || oids[1] != 222 {
		t.Errorf("VolumeOIDs() = %v, want [111 222]", oids)
	}
}

func TestIsWellFormedRejectsBadMagic(t *testing.T) {
	block := buildTestSuperblock(t, 0xdeadbeef, 1, nil)
	sb, err := Decode(block)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if IsWellFormed(sb) {
		t.Error("expected bad magic to be reported as not well-formed")
	}
}
