// Package objectmap loads a container's object map and the root node of
// its B-tree, following the one omap pointer this pipeline needs:
// nxsb.nx_omap_oid.
package objectmap

import (
	"encoding/binary"
	"errors"
	"fmt"

	"apfs-inspect/internal/blockdevice"
	"apfs-inspect/internal/checksum"
	"apfs-inspect/internal/types"
)

// ErrNotPhysical is returned when the object map's B-tree is rooted in
// virtual or ephemeral storage. This pipeline only follows physical
// pointers past the omap; resolving the tree root through another map is
// out of scope.
var ErrNotPhysical = errors.New("objectmap: tree storage class is not physical")

// Loaded is the decoded object map together with its raw block, kept so a
// failed checksum can still be reported against the bytes that produced
// the decode.
type Loaded struct {
	Omap  *types.OmapPhysT
	Block []byte
}

// Load reads the block at the container's omap oid (always physical) and
// decodes it. It does not itself validate the checksum — callers check
// IsValid on the returned Block and decide how to react, since an omap
// checksum failure triggers the same rewind policy as ephemeral objects.
func Load(dev blockdevice.Reader, omapOid types.OidT) (*Loaded, error) {
	block, n, err := dev.ReadBlocks(types.Paddr(omapOid), 1)
	if err != nil {
		return nil, fmt.Errorf("objectmap: read omap block at %d: %w", omapOid, err)
	}
	if n != 1 {
		return nil, fmt.Errorf("objectmap: short read of omap block at %d", omapOid)
	}

	om, err := decode(block)
	if err != nil {
		return nil, fmt.Errorf("objectmap: %w", err)
	}

	return &Loaded{Omap: om, Block: block}, nil
}

// IsValid reports whether the loaded omap block's checksum is correct.
func (l *Loaded) IsValid() bool {
	return checksum.IsValid(l.Block)
}

// BtreeRoot reads the block at the omap's tree oid, after confirming the
// tree is physically addressable. The returned block's checksum may be
// invalid; that failure is non-fatal at this stage per the bootstrap
// state machine, so callers decide separately whether to warn or abort.
func BtreeRoot(dev blockdevice.Reader, l *Loaded) ([]byte, error) {
	if l.Omap.TreeStorage() != types.StoragePhysical {
		return nil, ErrNotPhysical
	}

	block, n, err := dev.ReadBlocks(types.Paddr(l.Omap.OmTreeOid), 1)
	if err != nil {
		return nil, fmt.Errorf("objectmap: read B-tree root at %d: %w", l.Omap.OmTreeOid, err)
	}
	if n != 1 {
		return nil, fmt.Errorf("objectmap: short read of B-tree root at %d", l.Omap.OmTreeOid)
	}
	return block, nil
}

func decode(block []byte) (*types.OmapPhysT, error) {
	if len(block) < types.OmapPhysTSize {
		return nil, fmt.Errorf("block too small: got %d bytes, need %d", len(block), types.OmapPhysTSize)
	}

	le := binary.LittleEndian
	om := &types.OmapPhysT{}

	copy(om.OmO.OChecksum[:], block[0:8])
	om.OmO.OOid = types.OidT(le.Uint64(block[8:16]))
	om.OmO.OXid = types.XidT(le.Uint64(block[16:24]))
	om.OmO.OType = le.Uint32(block[24:28])
	om.OmO.OSubtype = le.Uint32(block[28:32])

	om.OmFlags = le.Uint32(block[32:36])
	om.OmSnapCount = le.Uint32(block[36:40])
	om.OmTreeType = le.Uint32(block[40:44])
	om.OmSnapshotTreeType = le.Uint32(block[44:48])
	om.OmTreeOid = types.OidT(le.Uint64(block[48:56]))
	om.OmSnapshotTreeOid = types.OidT(le.Uint64(block[56:64]))
	om.OmMostRecentSnap = types.XidT(le.Uint64(block[64:72]))
	om.OmPendingRevertMin = types.XidT(le.Uint64(block[72:80]))
	om.OmPendingRevertMax = types.XidT(le.Uint64(block[80:88]))

	return om, nil
}
