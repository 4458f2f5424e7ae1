// Package objheader decodes the 32-byte object header shared by every APFS
// object block and classifies the block it prefixes.
package objheader

import (
	"encoding/binary"
	"fmt"

	"apfs-inspect/internal/types"
)

// Decode parses the object header from the first 32 bytes of block. It
// never copies or retains block; callers that need the typed header kept
// around should copy the returned value, which is already a value type.
func Decode(block []byte) (types.ObjPhysT, error) {
	var hdr types.ObjPhysT
	if len(block) < types.ObjPhysTSize {
		return hdr, fmt.Errorf("objheader: block too small: got %d bytes, need %d", len(block), types.ObjPhysTSize)
	}

	copy(hdr.OChecksum[:], block[0:8])
	hdr.OOid = types.OidT(binary.LittleEndian.Uint64(block[8:16]))
	hdr.OXid = types.XidT(binary.LittleEndian.Uint64(block[16:24]))
	hdr.OType = binary.LittleEndian.Uint32(block[24:28])
	hdr.OSubtype = binary.LittleEndian.Uint32(block[28:32])
	return hdr, nil
}

// Classification reports everything the checkpoint-resolution pipeline
// needs to know about a block's object header without decoding the rest
// of the block.
type Classification struct {
	Header       types.ObjPhysT
	Storage      types.StorageClass
	IsSuperblock bool
	IsCheckpointMap bool
}

// Classify decodes the object header of block and reports its kind and
// storage class.
func Classify(block []byte) (Classification, error) {
	hdr, err := Decode(block)
	if err != nil {
		return Classification{}, err
	}

	return Classification{
		Header:          hdr,
		Storage:         types.ClassifyStorage(hdr.OType),
		IsSuperblock:    hdr.OType&types.ObjectTypeMask == types.ObjectTypeNxSuperblock,
		IsCheckpointMap: hdr.OType&types.ObjectTypeMask == types.ObjectTypeCheckpointMap,
	}, nil
}

// String reports type, subtype, and storage class as a single human
// readable line, for use in diagnostics and reporting only.
func (c Classification) String() string {
	return fmt.Sprintf("%s (%s), subtype=%s, storage=%s",
		types.TypeName(c.Header.OType), hexType(c.Header.OType),
		types.TypeName(c.Header.OSubtype), c.Storage)
}

func hexType(t uint32) string {
	return fmt.Sprintf("0x%08x", t&types.ObjectTypeMask)
}
