// Package checkpointmap decodes checkpoint-map blocks: the object that
// associates each ephemeral object id used by a checkpoint with the
// physical address at which that checkpoint stores it.
package checkpointmap

import (
	"encoding/binary"
	"fmt"

	"apfs-inspect/internal/objheader"
	"apfs-inspect/internal/types"
)

// headerSize is the encoded size of CpmFlags + CpmCount, following the
// 32-byte object header.
const headerSize = 8

// Decode parses a checkpoint-map block (cpm_o, cpm_flags, cpm_count,
// followed by cpm_count entries of CheckpointMappingT). It does not
// validate the block's checksum; callers validate separately so that a
// bad-checksum slot can be skipped without attempting to decode it.
func Decode(block []byte) (*types.CheckpointMapPhysT, error) {
	if len(block) < types.ObjPhysTSize+headerSize {
		return nil, fmt.Errorf("checkpointmap: block too small: got %d bytes, need at least %d", len(block), types.ObjPhysTSize+headerSize)
	}

	hdr, err := objheader.Decode(block)
	if err != nil {
		return nil, fmt.Errorf("checkpointmap: %w", err)
	}

	le := binary.LittleEndian
	cm := &types.CheckpointMapPhysT{CpmO: hdr}
	cm.CpmFlags = le.Uint32(block[32:36])
	cm.CpmCount = le.Uint32(block[36:40])

	offset := types.ObjPhysTSize + headerSize
	needed := offset + int(cm.CpmCount)*types.CheckpointMappingTSize
	if len(block) < needed {
		return nil, fmt.Errorf("checkpointmap: insufficient data for %d mappings: got %d bytes, need %d", cm.CpmCount, len(block), needed)
	}

	cm.CpmMap = make([]types.CheckpointMappingT, cm.CpmCount)
	for i := uint32(0); i < cm.CpmCount; i++ {
		o := offset + int(i)*types.CheckpointMappingTSize
		cm.CpmMap[i] = types.CheckpointMappingT{
			CpmType:    le.Uint32(block[o : o+4]),
			CpmSubtype: le.Uint32(block[o+4 : o+8]),
			CpmSize:    le.Uint32(block[o+8 : o+12]),
			CpmPad:     le.Uint32(block[o+12 : o+16]),
			CpmFsOid:   types.OidT(le.Uint64(block[o+16 : o+24])),
			CpmOid:     types.OidT(le.Uint64(block[o+24 : o+32])),
			CpmPaddr:   types.Paddr(le.Uint64(block[o+32 : o+40])),
		}
	}

	return cm, nil
}
