package bloomfilter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fasguard/fasguard-core/internal/hashbit"
)

// Filter is the benign n-gram store. A zero Filter is not usable; build one
// with New or Load. Insert is not safe for concurrent callers; the build
// pipeline in package bloombuild enforces a single writer through channels
// rather than locking here.
type Filter struct {
	params Params

	// Exactly one of bits or file is set: bits for the in-memory mode,
	// file for the disk-backed mode that seeks for every access.
	bits []byte
	file *os.File
}

// New allocates an empty in-memory filter for the given parameters.
func New(params Params) *Filter {
	return &Filter{
		params: params,
		bits:   make([]byte, params.BitLength/8),
	}
}

// Params returns the filter's parameter record.
func (f *Filter) Params() Params {
	return f.params
}

// Load reads a Bloom filter previously written by Flush. When inMemory is
// true the entire bit payload is read into RAM up front and Contains/Insert
// operate on it directly; otherwise the file handle stays open for the
// filter's lifetime and every access seeks to the relevant byte.
func Load(path string, inMemory bool) (*Filter, error) {
	flag := os.O_RDONLY
	if !inMemory {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("bloomfilter: open %s: %w", path, err)
	}

	header := make([]byte, HeaderLength)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("bloomfilter: read header of %s: %w", path, err)
	}

	params, err := decodeHeader(header)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("bloomfilter: %s: %w", path, err)
	}

	if !inMemory {
		return &Filter{params: params, file: f}, nil
	}
	defer f.Close()

	payload := make([]byte, params.BitLength/8)
	if _, err := io.ReadFull(f, payload); err != nil {
		return nil, fmt.Errorf("bloomfilter: read payload of %s: %w", path, err)
	}
	return &Filter{params: params, bits: payload}, nil
}

// Close releases the disk handle held by a disk-backed filter. It is a
// no-op for an in-memory filter.
func (f *Filter) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

// Insert marks the k bit positions hash128(seed[i], data) selects, where
// k = f.params.NumHashes. It does not update BytesProcessed: that statistic
// counts payload bytes seen, not n-gram bytes inserted, so callers track it
// themselves with AddBytesProcessed.
func (f *Filter) Insert(data []byte) error {
	for _, idx := range f.BitIndices(data) {
		if err := f.setBit(idx); err != nil {
			return err
		}
	}
	return nil
}

// BitIndices returns the k bit positions data hashes to, without setting
// them. The threaded build pipeline's hasher stage uses this to compute
// positions off the single-writer path; the writer stage then sets them
// with SetBitIndex.
func (f *Filter) BitIndices(data []byte) []uint64 {
	indices := make([]uint64, f.params.NumHashes)
	for i := 0; i < f.params.NumHashes; i++ {
		lo, _ := hashbit.Hash128(hashbit.Seeds[i], data)
		indices[i] = lo % f.params.BitLength
	}
	return indices
}

// SetBitIndex sets a single bit previously computed by BitIndices.
func (f *Filter) SetBitIndex(i uint64) error {
	return f.setBit(i)
}

// AddBytesProcessed accumulates the NUM_PAYLOAD_BYTES_PROCESSED statistic.
func (f *Filter) AddBytesProcessed(n uint64) {
	f.params.BytesProcessed += n
}

// Contains reports whether all k bit positions for data are set. A true
// result may be a false positive; a false result is definite.
func (f *Filter) Contains(data []byte) (bool, error) {
	for i := 0; i < f.params.NumHashes; i++ {
		lo, _ := hashbit.Hash128(hashbit.Seeds[i], data)
		bitIndex := lo % f.params.BitLength
		set, err := f.getBit(bitIndex)
		if err != nil {
			return false, err
		}
		if !set {
			return false, nil
		}
	}
	return true, nil
}

func (f *Filter) setBit(i uint64) error {
	if f.bits != nil {
		hashbit.Set(f.bits, i)
		return nil
	}
	byteOff := int64(HeaderLength) + int64(hashbit.ByteIndex(i))
	var b [1]byte
	if _, err := f.file.ReadAt(b[:], byteOff); err != nil && err != io.EOF {
		return fmt.Errorf("bloomfilter: read-modify-write bit %d: %w", i, err)
	}
	b[0] |= byte(1) << hashbit.BitOffset(i)
	if _, err := f.file.WriteAt(b[:], byteOff); err != nil {
		return fmt.Errorf("bloomfilter: write bit %d: %w", i, err)
	}
	return nil
}

func (f *Filter) getBit(i uint64) (bool, error) {
	if f.bits != nil {
		return hashbit.Test(f.bits, i), nil
	}
	byteOff := int64(HeaderLength) + int64(hashbit.ByteIndex(i))
	var b [1]byte
	if _, err := f.file.ReadAt(b[:], byteOff); err != nil {
		return false, fmt.Errorf("bloomfilter: read bit %d: %w", i, err)
	}
	return b[0]&(byte(1)<<hashbit.BitOffset(i)) != 0, nil
}

// Flush writes the filter's header and bit payload to path, writing to a
// temporary file in the same directory and renaming over path on success
// so a crash mid-write never leaves a partial file.
func (f *Filter) Flush(path string) error {
	payload, err := f.snapshotBits()
	if err != nil {
		return err
	}

	header, err := encodeHeader(f.params)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".bloom-*.tmp")
	if err != nil {
		return fmt.Errorf("bloomfilter: create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("bloomfilter: write header: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("bloomfilter: write payload: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("bloomfilter: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("bloomfilter: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("bloomfilter: rename into place: %w", err)
	}
	return nil
}

// snapshotBits returns the full bit payload, reading it from disk if the
// filter is disk-backed.
func (f *Filter) snapshotBits() ([]byte, error) {
	if f.bits != nil {
		return f.bits, nil
	}
	payload := make([]byte, f.params.BitLength/8)
	if _, err := f.file.ReadAt(payload, HeaderLength); err != nil && err != io.EOF {
		return nil, fmt.Errorf("bloomfilter: snapshot bit payload: %w", err)
	}
	return payload, nil
}

// Union bitwise-ORs other's bit payload into f in place. Both filters must
// agree on protocol, port, ngram bounds, bit length, and hash count;
// otherwise Union fails rather than silently producing an unusable filter.
func (f *Filter) Union(other *Filter) error {
	if !f.params.compatible(other.params) {
		return fmt.Errorf("bloomfilter: union requires matching parameters: %+v vs %+v", f.params, other.params)
	}

	a, err := f.snapshotBits()
	if err != nil {
		return err
	}
	b, err := other.snapshotBits()
	if err != nil {
		return err
	}

	merged := make([]byte, len(a))
	for i := range merged {
		merged[i] = a[i] | b[i]
	}

	if f.bits != nil {
		copy(f.bits, merged)
		return nil
	}
	if _, err := f.file.WriteAt(merged, HeaderLength); err != nil {
		return fmt.Errorf("bloomfilter: write unioned payload: %w", err)
	}
	return nil
}
