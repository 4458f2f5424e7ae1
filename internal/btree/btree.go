// Package btree decodes B-tree node headers and performs a single-node
// table-of-contents lookup against the container object map's root node.
// Multi-level traversal is out of scope: this pipeline stops at the root
// node the omap points to.
package btree

import (
	"encoding/binary"
	"fmt"

	"apfs-inspect/internal/objheader"
	"apfs-inspect/internal/types"
)

// Decode parses a B-tree node's fixed header out of block, leaving the
// table of contents, keys, and values as opaque bytes in BtnData.
func Decode(block []byte) (*types.BtreeNodePhysT, error) {
	if len(block) < types.BtreeNodeFixedHeaderSize {
		return nil, fmt.Errorf("btree: block too small: got %d bytes, need %d", len(block), types.BtreeNodeFixedHeaderSize)
	}

	hdr, err := objheader.Decode(block)
	if err != nil {
		return nil, fmt.Errorf("btree: %w", err)
	}

	le := binary.LittleEndian
	n := &types.BtreeNodePhysT{BtnO: hdr}
	n.BtnFlags = le.Uint16(block[32:34])
	n.BtnLevel = le.Uint16(block[34:36])
	n.BtnNkeys = le.Uint32(block[36:40])
	n.BtnTableSpace = types.NlocT{Off: le.Uint16(block[40:42]), Len: le.Uint16(block[42:44])}
	n.BtnFreeSpace = types.NlocT{Off: le.Uint16(block[44:46]), Len: le.Uint16(block[46:48])}
	n.BtnKeyFreeList = types.NlocT{Off: le.Uint16(block[48:50]), Len: le.Uint16(block[50:52])}
	n.BtnValFreeList = types.NlocT{Off: le.Uint16(block[52:54]), Len: le.Uint16(block[54:56])}
	n.BtnData = block[types.BtreeNodeFixedHeaderSize:]

	return n, nil
}

// OmapValue is the value half of an object-map entry: omap_val_t.
type OmapValue struct {
	Flags uint32
	Size  uint32
	Paddr types.Paddr
}

// omapKeySize is the encoded size of an omap_key_t: an oid and an xid.
const omapKeySize = 16

// omapValueSize is the encoded size of an omap_val_t (leaf-node value):
// ov_flags, ov_size, ov_paddr.
const omapValueSize = 16

// kvoffSize is the encoded size of a kvoff_t table-of-contents entry: two
// 16-bit offsets, used when BTNODE_FIXED_KV_SIZE is set — always true for
// an object map's B-tree, since both its keys and leaf values are fixed
// size.
const kvoffSize = 4

// btreeInfoSize is the encoded size of btree_info_t, reserved at the end
// of a root node's storage area (and thus excluded from the value area a
// root node's value offsets are counted against).
const btreeInfoSize = 40

// LookupOmapEntry scans every entry of a root-level omap B-tree node's
// table of contents, in order, for the entry with the given oid and the
// highest xid not exceeding maxXid, mirroring the composite-key ordering
// object maps use. It returns ok=false if the node is not a leaf (a
// non-leaf root would require descending further, which this pipeline
// does not do) or if no matching entry exists.
func LookupOmapEntry(n *types.BtreeNodePhysT, oid types.OidT, maxXid types.XidT) (OmapValue, bool, error) {
	if !n.IsLeaf() {
		return OmapValue{}, false, nil
	}
	if n.BtnFlags&types.BtnodeFixedKVSize == 0 {
		return OmapValue{}, false, fmt.Errorf("btree: expected fixed-size keys/values for an omap node")
	}

	le := binary.LittleEndian
	tableOffset := int(n.BtnTableSpace.Off)
	count := int(n.BtnNkeys)

	best := -1
	var bestXid types.XidT
	var bestValOff int

	for i := 0; i < count; i++ {
		entryOffset := tableOffset + i*kvoffSize
		if entryOffset+kvoffSize > len(n.BtnData) {
			return OmapValue{}, false, fmt.Errorf("btree: table-of-contents entry %d out of bounds", i)
		}
		keyOff := int(le.Uint16(n.BtnData[entryOffset : entryOffset+2]))
		valOff := int(le.Uint16(n.BtnData[entryOffset+2 : entryOffset+4]))

		if keyOff+omapKeySize > len(n.BtnData) {
			return OmapValue{}, false, fmt.Errorf("btree: key at entry %d out of bounds", i)
		}
		keyOid := types.OidT(le.Uint64(n.BtnData[keyOff : keyOff+8]))
		keyXid := types.XidT(le.Uint64(n.BtnData[keyOff+8 : keyOff+16]))

		if keyOid != oid || keyXid > maxXid {
			continue
		}
		if best == -1 || keyXid > bestXid {
			best = i
			bestXid = keyXid
			bestValOff = valOff
		}
	}

	if best == -1 {
		return OmapValue{}, false, nil
	}

	// Values grow backward from the end of the node's value area. For a
	// root node, that area ends before the trailing btree_info_t rather
	// than at the end of BtnData.
	valueAreaEnd := len(n.BtnData)
	if n.IsRoot() {
		valueAreaEnd -= btreeInfoSize
	}
	valStart := valueAreaEnd - bestValOff
	if valStart < 0 || valStart+omapValueSize > valueAreaEnd {
		return OmapValue{}, false, fmt.Errorf("btree: value for oid %d out of bounds", oid)
	}

	return OmapValue{
		Flags: le.Uint32(n.BtnData[valStart : valStart+4]),
		Size:  le.Uint32(n.BtnData[valStart+4 : valStart+8]),
		Paddr: types.Paddr(le.Uint64(n.BtnData[valStart+8 : valStart+16])),
	}, true, nil
}
