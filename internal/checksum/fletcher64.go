// Package checksum implements the APFS variant of the Fletcher-64 checksum
// used to guard every on-disk object block.
package checksum

import "encoding/binary"

const mod32 = uint64(0xFFFFFFFF)

// Size is the number of bytes occupied by a stored checksum.
const Size = 8

// Compute returns the Fletcher-64 checksum for block, treating its bytes
// from offset 8 onward as a sequence of little-endian 32-bit words. block
// must have its first 8 bytes (the checksum field itself) set to zero;
// callers that want to validate a stored checksum should pass the block
// with that field zeroed, not omitted, so offsets of the remaining words
// are unchanged.
func Compute(block []byte) [Size]byte {
	var sum1, sum2 uint64

	words := len(block) / 4
	for i := 0; i < words; i++ {
		word := uint64(binary.LittleEndian.Uint32(block[i*4 : i*4+4]))
		sum1 = (sum1 + word) % mod32
		sum2 = (sum2 + sum1) % mod32
	}

	ckLow := mod32 - ((sum1 + sum2) % mod32)
	ckHigh := mod32 - ((sum1 + ckLow) % mod32)

	var out [Size]byte
	binary.LittleEndian.PutUint32(out[0:4], uint32(ckLow))
	binary.LittleEndian.PutUint32(out[4:8], uint32(ckHigh))
	return out
}

// IsValid recomputes the checksum of block (with its stored checksum field
// replaced by zero for the computation) and reports whether it matches the
// checksum stored in the block's first 8 bytes. Returns false for any
// block whose length is not a multiple of 4 bytes, since Fletcher-64
// operates on whole 32-bit words.
func IsValid(block []byte) bool {
	if len(block) < Size || len(block)%4 != 0 {
		return false
	}

	var stored [Size]byte
	copy(stored[:], block[:Size])

	scratch := make([]byte, len(block))
	copy(scratch, block)
	for i := 0; i < Size; i++ {
		scratch[i] = 0
	}

	return Compute(scratch) == stored
}
