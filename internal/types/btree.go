package types

// NlocT locates a region relative to some base, as an (offset, length) pair.
type NlocT struct {
	Off uint16
	Len uint16
}

// B-Tree Node Flags.
const (
	BtnodeRoot           uint16 = 0x0001
	BtnodeLeaf           uint16 = 0x0002
	BtnodeFixedKVSize    uint16 = 0x0004
	BtnodeHashed         uint16 = 0x0008
	BtnodeNoheader       uint16 = 0x0010
	BtnodeCheckKoffInval uint16 = 0x8000
)

// BtreeNodePhysT is a B-tree node. Only the fixed-size header is decoded
// here; the variable-size table of contents, keys, and values are left as
// opaque BtnData, since a full B-tree walk is out of scope for this
// pipeline (it stops at loading and validating the root node).
type BtreeNodePhysT struct {
	BtnO           ObjPhysT
	BtnFlags       uint16
	BtnLevel       uint16
	BtnNkeys       uint32
	BtnTableSpace  NlocT
	BtnFreeSpace   NlocT
	BtnKeyFreeList NlocT
	BtnValFreeList NlocT
	BtnData        []byte
}

// BtreeNodeFixedHeaderSize is the encoded size, in bytes, of the fixed
// portion of BtreeNodePhysT preceding BtnData.
const BtreeNodeFixedHeaderSize = 56

// IsRoot reports whether this node is the root of its B-tree.
func (n *BtreeNodePhysT) IsRoot() bool {
	return n.BtnFlags&BtnodeRoot != 0
}

// IsLeaf reports whether this node is a leaf.
func (n *BtreeNodePhysT) IsLeaf() bool {
	return n.BtnFlags&BtnodeLeaf != 0
}
