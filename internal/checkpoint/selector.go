package checkpoint

import (
	"apfs-inspect/internal/checksum"
	"apfs-inspect/internal/objheader"
	"apfs-inspect/internal/superblock"
	"apfs-inspect/internal/types"
)

// SlotWarning describes a descriptor slot the Selector skipped, for
// diagnostic reporting; it never affects selection itself.
type SlotWarning struct {
	Index  int
	Reason string
}

// Selection is the outcome of scanning a descriptor area for the newest
// well-formed superblock.
type Selection struct {
	Index      int
	Superblock *types.NxSuperblockT
	Warnings   []SlotWarning
}

// Select scans desc.Slots for the newest well-formed container superblock,
// skipping any xid in excluded — the rewind mechanism used after an
// ephemeral or omap validation failure reissues the scan with the failing
// xid (and everything newer) excluded, per the tie-break rule in §4.5: the
// first well-formed, non-excluded superblock in scan order becomes the
// initial pick (Index stays -1 if there is none), and after that only a
// strict improvement in xid updates the current pick.
func Select(desc *Descriptor, excluded map[types.XidT]bool) (*Selection, error) {
	sel := &Selection{Index: -1}
	var latestXid types.XidT

	for i, slot := range desc.Slots {
		if !checksum.IsValid(slot) {
			sel.Warnings = append(sel.Warnings, SlotWarning{i, "checksum invalid"})
			continue
		}

		classification, err := objheader.Classify(slot)
		if err != nil {
			sel.Warnings = append(sel.Warnings, SlotWarning{i, err.Error()})
			continue
		}

		switch {
		case classification.IsSuperblock:
			sb, err := superblock.Decode(slot)
			if err != nil {
				sel.Warnings = append(sel.Warnings, SlotWarning{i, err.Error()})
				continue
			}
			if !superblock.IsWellFormed(sb) {
				sel.Warnings = append(sel.Warnings, SlotWarning{i, "bad magic"})
				continue
			}
			if excluded[classification.Header.OXid] {
				sel.Warnings = append(sel.Warnings, SlotWarning{i, "excluded by rewind"})
				continue
			}
			if sel.Index == -1 || classification.Header.OXid > latestXid {
				sel.Index = i
				sel.Superblock = sb
				latestXid = classification.Header.OXid
			}

		case classification.IsCheckpointMap:
			// accepted silently; the Assembler collects these later.

		default:
			sel.Warnings = append(sel.Warnings, SlotWarning{i, "neither superblock nor checkpoint-map"})
		}
	}

	return sel, nil
}
