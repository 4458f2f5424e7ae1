package types

// NxMagic is the value of NxSuperblockT.NxMagic for a well-formed container
// superblock; it appears as the ASCII bytes "NXSB".
const NxMagic uint32 = 'N' | 'X'<<8 | 'S'<<16 | 'B'<<24

// NxMaxFileSystems is the maximum number of volumes a container can list.
const NxMaxFileSystems = 100

// NxEphInfoCount is the length of the NxEphemeralInfo array.
const NxEphInfoCount = 4

// NxNumCounters is the length of the NxCounters array.
const NxNumCounters = 32

// NxXpDescBlocksFlag marks the checkpoint-descriptor area as B-tree-backed
// (non-contiguous) rather than a flat, contiguous run of blocks.
const NxXpDescBlocksFlag uint32 = 1 << 31

// NxSuperblockT is a container superblock (nx_superblock_t).
type NxSuperblockT struct {
	NxO                          ObjPhysT
	NxMagic                      uint32
	NxBlockSize                  uint32
	NxBlockCount                 uint64
	NxFeatures                   uint64
	NxReadonlyCompatibleFeatures uint64
	NxIncompatibleFeatures       uint64
	NxUuid                       UUID
	NxNextOid                    OidT
	NxNextXid                    XidT
	NxXpDescBlocks               uint32
	NxXpDataBlocks               uint32
	NxXpDescBase                 Paddr
	NxXpDataBase                 Paddr
	NxXpDescNext                 uint32
	NxXpDataNext                 uint32
	NxXpDescIndex                uint32
	NxXpDescLen                  uint32
	NxXpDataIndex                uint32
	NxXpDataLen                  uint32
	NxSpacemanOid                OidT
	NxOmapOid                    OidT
	NxReaperOid                  OidT
	NxTestType                   uint32
	NxMaxFileSystems             uint32
	NxFsOid                      [NxMaxFileSystems]OidT
	NxCounters                   [NxNumCounters]uint64
	NxBlockedOutPrange           Prange
	NxEvictMappingTreeOid        OidT
	NxFlags                      uint64
	NxEfiJumpstart               Paddr
	NxFusionUuid                 UUID
	NxKeylocker                  Prange
	NxEphemeralInfo              [NxEphInfoCount]uint64
	NxTestOid                    OidT
	NxFusionMtOid                OidT
	NxFusionWbcOid               OidT
	NxFusionWbc                  Prange
	NxNewestMountedVersion       uint64
	NxMkbLocker                  Prange
}

// DescriptorBlockCount returns NxXpDescBlocks with the non-contiguous flag
// bit masked off.
func (sb *NxSuperblockT) DescriptorBlockCount() uint32 {
	return sb.NxXpDescBlocks &^ NxXpDescBlocksFlag
}

// DescriptorIsContiguous reports whether the checkpoint-descriptor area is
// a flat run of blocks (true) or a B-tree-backed, non-contiguous area
// (false).
func (sb *NxSuperblockT) DescriptorIsContiguous() bool {
	return sb.NxXpDescBlocks&NxXpDescBlocksFlag == 0
}

// NxIncompatFusion marks a container that participates in a Fusion drive.
const NxIncompatFusion uint64 = 0x0000000000000100

// IsFusion reports whether the container recognizes itself as part of a
// Fusion drive set. Recognition only — Fusion logic itself is out of scope.
func (sb *NxSuperblockT) IsFusion() bool {
	return sb.NxIncompatibleFeatures&NxIncompatFusion != 0
}

// HasKeylocker reports whether the container carries an on-disk keybag,
// i.e. uses some form of encryption. Recognition only — decryption is out
// of scope.
func (sb *NxSuperblockT) HasKeylocker() bool {
	return sb.NxKeylocker.PrBlockCount != 0
}

// CheckpointMapLast marks the last checkpoint-mapping block belonging to a
// given checkpoint.
const CheckpointMapLast uint32 = 0x00000001

// CheckpointMappingT maps one ephemeral object identifier to the physical
// address at which this checkpoint stores it.
type CheckpointMappingT struct {
	CpmType    uint32
	CpmSubtype uint32
	CpmSize    uint32
	CpmPad     uint32
	CpmFsOid   OidT
	CpmOid     OidT
	CpmPaddr   Paddr
}

// CheckpointMappingTSize is the encoded size, in bytes, of CheckpointMappingT.
const CheckpointMappingTSize = 40

// CheckpointMapPhysT is a checkpoint-mapping block: a count plus an array
// of mappings from ephemeral oid to physical address.
type CheckpointMapPhysT struct {
	CpmO     ObjPhysT
	CpmFlags uint32
	CpmCount uint32
	CpmMap   []CheckpointMappingT
}

// IsLast reports whether this is the final checkpoint-mapping block for
// its checkpoint.
func (cm *CheckpointMapPhysT) IsLast() bool {
	return cm.CpmFlags&CheckpointMapLast != 0
}
