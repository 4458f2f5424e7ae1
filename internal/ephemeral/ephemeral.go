// Package ephemeral resolves the checkpoint-map entries found in an
// assembled checkpoint and loads the ephemeral blocks they reference.
package ephemeral

import (
	"fmt"

	"apfs-inspect/internal/blockdevice"
	"apfs-inspect/internal/checksum"
	"apfs-inspect/internal/types"
)

// Object is one loaded ephemeral block together with the checkpoint-map
// entry that named it, kept side by side so a later validation failure can
// be reported against its source oid and paddr.
type Object struct {
	Mapping types.CheckpointMappingT
	Block   []byte
}

// Load walks checkpointMaps in document order and reads one block per
// mapping entry at CpmPaddr, in the same order the entries appear. It
// returns an error if any read comes back short — the num_read == E
// invariant is enforced here as an actual equality check, not the
// assignment the original bootstrap used by mistake.
func Load(dev blockdevice.Reader, checkpointMaps []*types.CheckpointMapPhysT) ([]Object, error) {
	var want uint32
	for _, cm := range checkpointMaps {
		want += cm.CpmCount
	}

	objects := make([]Object, 0, want)
	var numRead uint32
	for _, cm := range checkpointMaps {
		for _, mapping := range cm.CpmMap {
			block, n, err := dev.ReadBlocks(mapping.CpmPaddr, 1)
			if err != nil {
				return objects, fmt.Errorf("ephemeral: read block at paddr %d: %w", mapping.CpmPaddr, err)
			}
			if n != 1 {
				return objects, fmt.Errorf("ephemeral: short read at paddr %d: got %d blocks, want 1", mapping.CpmPaddr, n)
			}
			objects = append(objects, Object{Mapping: mapping, Block: block})
			numRead++
		}
	}

	if numRead != want {
		return objects, fmt.Errorf("ephemeral: num_read (%d) != expected count (%d)", numRead, want)
	}

	return objects, nil
}

// Validate checks the Fletcher-64 checksum of every loaded object and
// returns the mapping of the first one that fails, if any. A nil mapping
// pointer with a nil error means every object validated.
func Validate(objects []Object) (*types.CheckpointMappingT, error) {
	for i := range objects {
		if !checksum.IsValid(objects[i].Block) {
			return &objects[i].Mapping, nil
		}
	}
	return nil, nil
}
