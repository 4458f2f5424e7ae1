// Package blockdevice provides random-access, fixed block-size reading over
// an APFS container image, modeling the block-reader contract the rest of
// the bootstrap pipeline is built against.
package blockdevice

import "apfs-inspect/internal/types"

// Reader is the random-access, fixed block-size contract the rest of the
// pipeline depends on. The block size is established by the caller before
// any read (conventionally 4096 bytes for the provisional read of block 0,
// then whatever nx_block_size the superblock reports for every read after).
type Reader interface {
	// ReadBlocks reads count contiguous blocks starting at paddr into a
	// freshly allocated buffer and returns it along with the number of
	// blocks actually read. A return value less than count is a failure
	// for the caller: the underlying image was short, or a seek failed.
	ReadBlocks(paddr types.Paddr, count uint32) ([]byte, uint32, error)

	// BlockSize reports the block size currently in effect.
	BlockSize() uint32

	// SetBlockSize updates the block size used by subsequent reads. The
	// Orchestrator calls this exactly once, after decoding block 0's
	// provisional superblock, with the value of nx_block_size.
	SetBlockSize(size uint32)

	// Close releases the underlying image handle.
	Close() error
}
