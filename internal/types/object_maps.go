package types

// OmapPhysT is a container or volume object map: a structure that roots a
// B-tree mapping (virtual oid, xid) pairs to physical locations.
type OmapPhysT struct {
	OmO                ObjPhysT
	OmFlags            uint32
	OmSnapCount        uint32
	OmTreeType         uint32
	OmSnapshotTreeType uint32
	OmTreeOid          OidT
	OmSnapshotTreeOid  OidT
	OmMostRecentSnap   XidT
	OmPendingRevertMin XidT
	OmPendingRevertMax XidT
}

// OmapPhysTSize is the encoded size, in bytes, of OmapPhysT: the 32-byte
// object header plus om_flags, om_snap_count, om_tree_type,
// om_snapshot_tree_type (4 B each), om_tree_oid, om_snapshot_tree_oid,
// om_most_recent_snap, om_pending_revert_min, om_pending_revert_max
// (8 B each).
const OmapPhysTSize = 88

// OmapValidFlags is a bit mask of all flag bits an object map may set.
const OmapValidFlags uint32 = 0x0000001f

// TreeStorage returns the storage class of the object-mapping B-tree.
func (om *OmapPhysT) TreeStorage() StorageClass {
	return ClassifyStorage(om.OmTreeType)
}
