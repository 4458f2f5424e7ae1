package blockdevice

import (
	"fmt"
	"io"
	"os"

	"apfs-inspect/internal/types"
)

// DefaultProvisionalBlockSize is used for the very first read of block 0,
// before the container superblock's own nx_block_size is known. It must
// equal nx_block_size for a correctly-sized container; a mismatch is
// surfaced by the Orchestrator, not by FileDevice itself.
const DefaultProvisionalBlockSize = 4096

// FileDevice implements Reader over a local file or block-special device,
// opened read-only.
type FileDevice struct {
	file      *os.File
	blockSize uint32
}

// Open opens path read-only and returns a FileDevice using
// DefaultProvisionalBlockSize until SetBlockSize is called.
func Open(path string) (*FileDevice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("blockdevice: open %q: %w", path, err)
	}
	return &FileDevice{file: f, blockSize: DefaultProvisionalBlockSize}, nil
}

// BlockSize reports the block size currently in effect.
func (d *FileDevice) BlockSize() uint32 {
	return d.blockSize
}

// SetBlockSize updates the block size used by subsequent reads.
func (d *FileDevice) SetBlockSize(size uint32) {
	d.blockSize = size
}

// ReadBlocks reads count contiguous blocks starting at paddr.
func (d *FileDevice) ReadBlocks(paddr types.Paddr, count uint32) ([]byte, uint32, error) {
	buf := make([]byte, uint64(count)*uint64(d.blockSize))
	offset := int64(paddr) * int64(d.blockSize)

	n, err := io.ReadFull(io.NewSectionReader(d.file, offset, int64(len(buf))), buf)
	blocksRead := uint32(n) / d.blockSize
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return buf[:n], blocksRead, fmt.Errorf("blockdevice: read at block %d: %w", paddr, err)
	}
	return buf[:n], blocksRead, nil
}

// Close releases the underlying file handle.
func (d *FileDevice) Close() error {
	return d.file.Close()
}
