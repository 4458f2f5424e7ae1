// Package superblock decodes the container superblock (nx_superblock_t)
// from a raw block buffer.
package superblock

import (
	"encoding/binary"
	"fmt"

	"apfs-inspect/internal/objheader"
	"apfs-inspect/internal/types"
)

// minimumSize is the encoded size of nx_superblock_t up to and including
// NxFsOid, which is the furthest field this pipeline reads; the real
// on-disk structure continues past it, but decoding further counters and
// Fusion/keybag fields is done opportunistically below when present.
const minimumSize = 184 + types.NxMaxFileSystems*8

// Decode parses a raw block buffer into a NxSuperblockT. It does not
// validate the checksum or magic; callers decide how to react to those
// separately, since block 0's mismatches are warn-only per the bootstrap
// state machine while descriptor-area mismatches are not.
func Decode(block []byte) (*types.NxSuperblockT, error) {
	if len(block) < minimumSize {
		return nil, fmt.Errorf("superblock: block too small: got %d bytes, need at least %d", len(block), minimumSize)
	}

	hdr, err := objheader.Decode(block)
	if err != nil {
		return nil, fmt.Errorf("superblock: %w", err)
	}

	le := binary.LittleEndian
	sb := &types.NxSuperblockT{NxO: hdr}

	sb.NxMagic = le.Uint32(block[32:36])
	sb.NxBlockSize = le.Uint32(block[36:40])
	sb.NxBlockCount = le.Uint64(block[40:48])
	sb.NxFeatures = le.Uint64(block[48:56])
	sb.NxReadonlyCompatibleFeatures = le.Uint64(block[56:64])
	sb.NxIncompatibleFeatures = le.Uint64(block[64:72])
	copy(sb.NxUuid[:], block[72:88])
	sb.NxNextOid = types.OidT(le.Uint64(block[88:96]))
	sb.NxNextXid = types.XidT(le.Uint64(block[96:104]))
	sb.NxXpDescBlocks = le.Uint32(block[104:108])
	sb.NxXpDataBlocks = le.Uint32(block[108:112])
	sb.NxXpDescBase = types.Paddr(le.Uint64(block[112:120]))
	sb.NxXpDataBase = types.Paddr(le.Uint64(block[120:128]))
	sb.NxXpDescNext = le.Uint32(block[128:132])
	sb.NxXpDataNext = le.Uint32(block[132:136])
	sb.NxXpDescIndex = le.Uint32(block[136:140])
	sb.NxXpDescLen = le.Uint32(block[140:144])
	sb.NxXpDataIndex = le.Uint32(block[144:148])
	sb.NxXpDataLen = le.Uint32(block[148:152])
	sb.NxSpacemanOid = types.OidT(le.Uint64(block[152:160]))
	sb.NxOmapOid = types.OidT(le.Uint64(block[160:168]))
	sb.NxReaperOid = types.OidT(le.Uint64(block[168:176]))
	sb.NxTestType = le.Uint32(block[176:180])
	sb.NxMaxFileSystems = le.Uint32(block[180:184])

	offset := 184
	for i := 0; i < types.NxMaxFileSystems; i++ {
		sb.NxFsOid[i] = types.OidT(le.Uint64(block[offset : offset+8]))
		offset += 8
	}

	// The remaining fields (counters, blocked-out range, Fusion/keybag
	// metadata) are decoded opportunistically: the container's logical
	// block size can be as small as 4096 bytes, in which case all of them
	// fit, but the pipeline never depends on them being present.
	if len(block) >= offset+types.NxNumCounters*8 {
		for i := 0; i < types.NxNumCounters; i++ {
			sb.NxCounters[i] = le.Uint64(block[offset : offset+8])
			offset += 8
		}
	}
	if remaining := len(block) - offset; remaining >= 16 {
		sb.NxBlockedOutPrange.PrStartPaddr = types.Paddr(le.Uint64(block[offset : offset+8]))
		sb.NxBlockedOutPrange.PrBlockCount = le.Uint64(block[offset+8 : offset+16])
		offset += 16
	}
	if remaining := len(block) - offset; remaining >= 24 {
		sb.NxEvictMappingTreeOid = types.OidT(le.Uint64(block[offset : offset+8]))
		sb.NxFlags = le.Uint64(block[offset+8 : offset+16])
		sb.NxEfiJumpstart = types.Paddr(le.Uint64(block[offset+16 : offset+24]))
		offset += 24
	}
	if remaining := len(block) - offset; remaining >= 16 {
		copy(sb.NxFusionUuid[:], block[offset:offset+16])
		offset += 16
	}
	if remaining := len(block) - offset; remaining >= 16 {
		sb.NxKeylocker.PrStartPaddr = types.Paddr(le.Uint64(block[offset : offset+8]))
		sb.NxKeylocker.PrBlockCount = le.Uint64(block[offset+8 : offset+16])
		offset += 16
	}
	if remaining := len(block) - offset; remaining >= types.NxEphInfoCount*8 {
		for i := 0; i < types.NxEphInfoCount; i++ {
			sb.NxEphemeralInfo[i] = le.Uint64(block[offset : offset+8])
			offset += 8
		}
	}
	if remaining := len(block) - offset; remaining >= 24 {
		sb.NxTestOid = types.OidT(le.Uint64(block[offset : offset+8]))
		sb.NxFusionMtOid = types.OidT(le.Uint64(block[offset+8 : offset+16]))
		sb.NxFusionWbcOid = types.OidT(le.Uint64(block[offset+16 : offset+24]))
		offset += 24
	}
	if remaining := len(block) - offset; remaining >= 16 {
		sb.NxFusionWbc.PrStartPaddr = types.Paddr(le.Uint64(block[offset : offset+8]))
		sb.NxFusionWbc.PrBlockCount = le.Uint64(block[offset+8 : offset+16])
		offset += 16
	}
	if remaining := len(block) - offset; remaining >= 8 {
		sb.NxNewestMountedVersion = le.Uint64(block[offset : offset+8])
		offset += 8
	}
	if remaining := len(block) - offset; remaining >= 16 {
		sb.NxMkbLocker.PrStartPaddr = types.Paddr(le.Uint64(block[offset : offset+8]))
		sb.NxMkbLocker.PrBlockCount = le.Uint64(block[offset+8 : offset+16])
	}

	return sb, nil
}

// IsWellFormed reports whether sb carries the expected magic constant.
// Callers at block 0 treat a false result as warn-only; callers scanning
// the descriptor area treat it as grounds for skipping the slot.
func IsWellFormed(sb *types.NxSuperblockT) bool {
	return sb.NxMagic == types.NxMagic
}

// VolumeOIDs returns the non-zero prefix of NxFsOid, capped at
// NxMaxFileSystems — the volumes actually listed in this superblock.
func VolumeOIDs(sb *types.NxSuperblockT) []types.OidT {
	oids := make([]types.OidT, 0, types.NxMaxFileSystems)
	for _, oid := range sb.NxFsOid {
		if oid == types.OidInvalid {
			break
		}
		oids = append(oids, oid)
	}
	return oids
}
