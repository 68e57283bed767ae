package hashbit

// bitMask maps a bit position within a byte (0-7) to its mask, LSB-first.
// A single shared table rather than a shift at every call site, matching
// the on-disk contract's bit order.
var bitMask = [8]byte{1, 2, 4, 8, 16, 32, 64, 128}

// Set turns on bit i (0-origin) of buf.
func Set(buf []byte, i uint64) {
	buf[i>>3] |= bitMask[i&7]
}

// Test reports whether bit i of buf is set.
func Test(buf []byte, i uint64) bool {
	return buf[i>>3]&bitMask[i&7] != 0
}

// ByteIndex and BitOffset split a bit index into the byte it lives in and
// its LSB-first offset within that byte, for callers doing their own
// file-seek-based access (the disk-backed Bloom filter).
func ByteIndex(i uint64) uint64 {
	return i >> 3
}

func BitOffset(i uint64) uint {
	return uint(i & 7)
}
