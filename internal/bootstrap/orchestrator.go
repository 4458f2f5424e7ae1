// Package bootstrap drives the checkpoint-resolution and metadata
// bootstrap pipeline end to end: open the image, find the newest
// consistent checkpoint, load its ephemeral objects and object map, and
// report the volumes it names.
package bootstrap

import (
	"fmt"

	"apfs-inspect/internal/blockdevice"
	"apfs-inspect/internal/btree"
	"apfs-inspect/internal/checkpoint"
	"apfs-inspect/internal/checkpointmap"
	"apfs-inspect/internal/checksum"
	"apfs-inspect/internal/diagnostics"
	"apfs-inspect/internal/ephemeral"
	"apfs-inspect/internal/objectmap"
	"apfs-inspect/internal/objheader"
	"apfs-inspect/internal/superblock"
	"apfs-inspect/internal/types"
)

// ResolvedVolume pairs a listed volume oid with its physical backing
// address, when the object map's root node could resolve it directly.
type ResolvedVolume struct {
	OID   types.OidT
	Found bool
	Paddr types.Paddr
}

// Outcome is the state of a successfully resolved bootstrap attempt. A
// recognized-but-unimplemented condition is reported as a non-nil
// *UnimplementedError from Run/RunOnDevice instead, alongside a nil Outcome.
type Outcome struct {
	Superblock      *types.NxSuperblockT
	DescriptorIndex int
	CheckpointMaps  int
	Omap            *objectmap.Loaded
	BtreeRootValid  bool
	VolumeOIDs      []types.OidT
	ResolvedVolumes []ResolvedVolume
}

// Run opens path as a block device, resolves the newest consistent
// checkpoint, and reports the container's volumes. It owns the image
// handle for the duration of the attempt and releases it on every exit
// path (P6).
func Run(path string) (*Outcome, error) {
	dev, err := blockdevice.Open(path)
	if err != nil {
		return nil, &IOError{Msg: "open container image", Err: err}
	}
	defer dev.Close()

	return RunOnDevice(dev)
}

// RunOnDevice runs the pipeline against an already-open Reader, starting
// at its provisional block size. Exposed separately from Run so tests can
// drive the pipeline against an in-memory Reader without a real file.
func RunOnDevice(dev blockdevice.Reader) (*Outcome, error) {
	sb, err := openBlockZero(dev)
	if err != nil {
		return nil, err
	}
	if sb.NxBlockSize != dev.BlockSize() {
		diagnostics.Warnf(diagnostics.Warning, "provisional block size %d differs from nx_block_size %d", dev.BlockSize(), sb.NxBlockSize)
	}
	dev.SetBlockSize(sb.NxBlockSize)

	excluded := map[types.XidT]bool{}
	for {
		outcome, rewindXid, err := attempt(dev, sb, excluded)
		if err != nil {
			return nil, err
		}
		if rewindXid != nil {
			excluded[*rewindXid] = true
			diagnostics.Warnf(diagnostics.Warning, "rewinding past xid %d, retrying selection", *rewindXid)
			continue
		}
		return outcome, nil
	}
}

// unimplemented terminates the current attempt gracefully: the caller of
// Run or RunOnDevice sees a non-nil *UnimplementedError but the CLI layer
// maps it to a clean, informational exit rather than a failure.
func unimplemented(msg string) (*Outcome, *types.XidT, error) {
	return nil, nil, &UnimplementedError{Msg: msg}
}

// openBlockZero implements S0: read block 0 with the provisional block
// size and decode it as a superblock. Checksum and magic mismatches are
// warn-only, per spec: block 0 is a known-stale snapshot from container
// creation.
func openBlockZero(dev blockdevice.Reader) (*types.NxSuperblockT, error) {
	block, n, err := dev.ReadBlocks(types.Paddr(0), 1)
	if err != nil {
		return nil, &IOError{Msg: "read block 0", Err: err}
	}
	if n != 1 {
		return nil, &IOError{Msg: "short read of block 0"}
	}

	if !checksum.IsValid(block) {
		diagnostics.Warnf(diagnostics.Warning, "block 0 checksum is invalid; proceeding anyway")
	}

	cls, err := objheader.Classify(block)
	if err != nil {
		return nil, &StructuralError{Msg: fmt.Sprintf("decode block 0 object header: %v", err)}
	}
	if !cls.IsSuperblock {
		diagnostics.Warnf(diagnostics.Warning, "block 0 object type is not NX superblock; proceeding anyway")
	}

	sb, err := superblock.Decode(block)
	if err != nil {
		return nil, &StructuralError{Msg: fmt.Sprintf("decode block 0 superblock: %v", err)}
	}
	if !superblock.IsWellFormed(sb) {
		diagnostics.Warnf(diagnostics.Warning, "block 0 magic is not NXSB; proceeding anyway")
	}

	return sb, nil
}

// attempt runs S1 through S7 for one candidate checkpoint. A non-nil
// rewindXid return means the caller should exclude that xid and retry
// selection; this is the automated form of the rewind policy §4.7/§4.8
// describe (the spec also allows stopping at a graceful "unimplemented"
// terminal state instead, recorded as an explicit decision in this
// project's design notes).
func attempt(dev blockdevice.Reader, blockZeroSB *types.NxSuperblockT, excluded map[types.XidT]bool) (*Outcome, *types.XidT, error) {
	desc, err := checkpoint.LoadDescriptorArea(dev, blockZeroSB)
	if err != nil {
		if err == checkpoint.ErrNonContiguous {
			return unimplemented("checkpoint-descriptor area is non-contiguous (B-tree-backed)")
		}
		if err == checkpoint.ErrDescriptorAreaTooLarge {
			return nil, nil, &AllocationError{Msg: err.Error()}
		}
		return nil, nil, &IOError{Msg: "load checkpoint-descriptor area", Err: err}
	}

	sel, err := checkpoint.Select(desc, excluded)
	if err != nil {
		return nil, nil, &StructuralError{Msg: err.Error()}
	}
	for _, w := range sel.Warnings {
		diagnostics.Warnf(diagnostics.Warning, "descriptor slot %d: %s", w.Index, w.Reason)
	}
	if sel.Index == -1 {
		if len(excluded) > 0 {
			return unimplemented("exhausted rewind path: no remaining checkpoint candidates")
		}
		return nil, nil, &StructuralError{Msg: "no well-formed container superblock found in descriptor area"}
	}

	sb := sel.Superblock
	assembled, err := checkpoint.Assemble(desc, sb.NxXpDescIndex, sb.NxXpDescLen)
	if err != nil {
		return nil, nil, &StructuralError{Msg: err.Error()}
	}

	checkpointMaps, malformed := collectCheckpointMaps(assembled, sb)
	if malformed != "" {
		diagnostics.Errorf(diagnostics.Error, "%s", malformed)
		rewindXid := sb.NxO.OXid
		return nil, &rewindXid, nil
	}

	objects, err := ephemeral.Load(dev, checkpointMaps)
	if err != nil {
		return nil, nil, &StructuralError{Msg: err.Error()}
	}
	if failed, err := ephemeral.Validate(objects); err != nil {
		return nil, nil, &StructuralError{Msg: err.Error()}
	} else if failed != nil {
		diagnostics.Errorf(diagnostics.Error, "FAILED: ephemeral object oid=%d paddr=%d failed checksum validation", failed.CpmOid, failed.CpmPaddr)
		diagnostics.Endf("Going back to look at the previous checkpoint")
		rewindXid := sb.NxO.OXid
		return nil, &rewindXid, nil
	}

	omap, err := objectmap.Load(dev, sb.NxOmapOid)
	if err != nil {
		return nil, nil, &StructuralError{Msg: err.Error()}
	}
	if !omap.IsValid() {
		diagnostics.Errorf(diagnostics.Error, "FAILED: object map checksum validation")
		diagnostics.Endf("Going back to look at the previous checkpoint")
		rewindXid := sb.NxO.OXid
		return nil, &rewindXid, nil
	}

	outcome := &Outcome{
		Superblock:      sb,
		DescriptorIndex: sel.Index,
		CheckpointMaps:  len(checkpointMaps),
		Omap:            omap,
		VolumeOIDs:      superblock.VolumeOIDs(sb),
	}

	root, err := objectmap.BtreeRoot(dev, omap)
	if err == objectmap.ErrNotPhysical {
		return unimplemented("object map B-tree root is not physically addressable")
	}
	if err != nil {
		return nil, nil, &IOError{Msg: "read object map B-tree root", Err: err}
	}
	outcome.BtreeRootValid = checksum.IsValid(root)
	if !outcome.BtreeRootValid {
		diagnostics.Warnf(diagnostics.Warning, "object map B-tree root checksum is invalid")
	} else {
		outcome.ResolvedVolumes = resolveVolumes(root, outcome.VolumeOIDs, sb.NxO.OXid)
	}

	diagnostics.Endf("checkpoint at descriptor index %d resolved successfully", sel.Index)
	return outcome, nil, nil
}

// resolveVolumes looks up each listed volume oid directly against the
// object map's root node, per the non-recursive table-of-contents lookup
// this pipeline performs in place of a full B-tree walk. A node that
// isn't a leaf (the omap has more than one level) yields no resolutions;
// that deeper traversal is out of scope.
func resolveVolumes(rootBlock []byte, oids []types.OidT, maxXid types.XidT) []ResolvedVolume {
	node, err := btree.Decode(rootBlock)
	if err != nil {
		diagnostics.Warnf(diagnostics.Warning, "object map B-tree root: %v", err)
		return nil
	}

	resolved := make([]ResolvedVolume, len(oids))
	for i, oid := range oids {
		val, ok, err := btree.LookupOmapEntry(node, oid, maxXid)
		if err != nil {
			diagnostics.Warnf(diagnostics.Warning, "object map lookup for oid %d: %v", oid, err)
			continue
		}
		resolved[i] = ResolvedVolume{OID: oid, Found: ok, Paddr: val.Paddr}
	}
	return resolved
}

// collectCheckpointMaps decodes every checkpoint-map slot in assembled and
// checks the §4.6 invariant: exactly one slot is the superblock that named
// this checkpoint, every other slot is a checkpoint-map. Any other kind
// present means the checkpoint is malformed.
func collectCheckpointMaps(assembled *checkpoint.Assembled, chosen *types.NxSuperblockT) ([]*types.CheckpointMapPhysT, string) {
	var maps []*types.CheckpointMapPhysT
	sawSuperblock := false

	for i, block := range assembled.Blocks {
		cls, err := objheader.Classify(block)
		if err != nil {
			return nil, fmt.Sprintf("checkpoint slot %d: %v", i, err)
		}

		switch {
		case cls.IsSuperblock:
			if sawSuperblock || cls.Header.OXid != chosen.NxO.OXid {
				return nil, fmt.Sprintf("checkpoint slot %d: unexpected extra or mismatched superblock", i)
			}
			sawSuperblock = true

		case cls.IsCheckpointMap:
			cm, err := checkpointmap.Decode(block)
			if err != nil {
				return nil, fmt.Sprintf("checkpoint slot %d: %v", i, err)
			}
			maps = append(maps, cm)

		default:
			return nil, fmt.Sprintf("checkpoint slot %d: neither superblock nor checkpoint-map", i)
		}
	}

	if !sawSuperblock {
		return nil, "checkpoint does not contain the superblock that named it"
	}
	return maps, ""
}
