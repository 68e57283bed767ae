package bloomfilter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBloomSizeLaw pins the sizing law: items=1000, p=10^-5 yields a
// 23963-bit estimate, rounded up to the next power of two, 32768, and
// round(ln(2)*32768/1000) = 23 hashes.
func TestBloomSizeLaw(t *testing.T) {
	params, err := NewParams(1000, 1e-5, 6, 80, 4, 4)
	require.NoError(t, err)

	assert.Equal(t, uint64(32768), params.BitLength)
	assert.True(t, params.BitLength%8 == 0)
	assert.GreaterOrEqual(t, params.BitLength, uint64(8))
	assert.GreaterOrEqual(t, params.NumHashes, 1)
	assert.LessOrEqual(t, params.NumHashes, MaxHashes)
	assert.Equal(t, 23, params.NumHashes)

	// Next power of two strictly greater than the raw estimate.
	var prevPow uint64 = params.BitLength / 2
	assert.LessOrEqual(t, prevPow, uint64(23963))
}

func TestBloomSizeLawIsPowerOfTwoOrByteRounded(t *testing.T) {
	params, err := NewParams(7, 0.01, 6, 443, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), params.BitLength%8)
	assert.GreaterOrEqual(t, params.BitLength, uint64(8))
}

func TestInsertContainsNoFalseNegative(t *testing.T) {
	params, err := NewParams(1000, 1e-5, 6, 80, 4, 4)
	require.NoError(t, err)
	f := New(params)

	payload := "abcdefghij"
	for o := 0; o+4 <= len(payload); o++ {
		require.NoError(t, f.Insert([]byte(payload[o:o+4])))
	}

	ok, err := f.Contains([]byte("abcd"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.Contains([]byte("defg"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestContainsIsMonotone(t *testing.T) {
	params, err := NewParams(100, 0.01, 6, 80, 3, 3)
	require.NoError(t, err)
	f := New(params)

	ok, err := f.Contains([]byte("xyz"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.Insert([]byte("xyz")))

	ok, err = f.Contains([]byte("xyz"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFlushLoadRoundTrip(t *testing.T) {
	params, err := NewParams(500, 0.001, 17, 53, 4, 6)
	require.NoError(t, err)
	f := New(params)
	for _, s := range []string{"alpha", "bravo", "charl", "delta"} {
		require.NoError(t, f.Insert([]byte(s)))
	}

	path := filepath.Join(t.TempDir(), "proto_17_port_53_min_4_max_6.bloom")
	require.NoError(t, f.Flush(path))

	loaded, err := Load(path, true)
	require.NoError(t, err)
	defer loaded.Close()

	assert.Equal(t, f.Params().BitLength, loaded.Params().BitLength)
	assert.Equal(t, f.Params().NumHashes, loaded.Params().NumHashes)

	for _, s := range []string{"alpha", "bravo", "charl", "delta"} {
		ok, err := loaded.Contains([]byte(s))
		require.NoError(t, err)
		assert.True(t, ok, "%s should round-trip", s)
	}
}

func TestFlushLoadDiskBacked(t *testing.T) {
	params, err := NewParams(50, 0.01, 6, 8080, 4, 4)
	require.NoError(t, err)
	f := New(params)
	require.NoError(t, f.Insert([]byte("ffff")))

	path := filepath.Join(t.TempDir(), "disk.bloom")
	require.NoError(t, f.Flush(path))

	loaded, err := Load(path, false)
	require.NoError(t, err)
	defer loaded.Close()

	ok, err := loaded.Contains([]byte("ffff"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, loaded.Insert([]byte("gggg")))
	ok, err = loaded.Contains([]byte("gggg"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnion(t *testing.T) {
	params, err := NewParams(100, 0.01, 6, 80, 4, 4)
	require.NoError(t, err)

	a := New(params)
	require.NoError(t, a.Insert([]byte("aaaa")))

	b := New(params)
	require.NoError(t, b.Insert([]byte("bbbb")))

	require.NoError(t, a.Union(b))

	ok, _ := a.Contains([]byte("aaaa"))
	assert.True(t, ok)
	ok, _ = a.Contains([]byte("bbbb"))
	assert.True(t, ok)
}

func TestUnionRejectsMismatchedParams(t *testing.T) {
	p1, err := NewParams(100, 0.01, 6, 80, 4, 4)
	require.NoError(t, err)
	p2, err := NewParams(100, 0.01, 6, 80, 4, 8)
	require.NoError(t, err)

	a := New(p1)
	b := New(p2)

	err = a.Union(b)
	assert.Error(t, err)
}

func TestLoadRejectsTruncatedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.bloom")
	require.NoError(t, os.WriteFile(path, []byte("too short"), 0o644))

	_, err := Load(path, true)
	assert.Error(t, err)
}
