package sigextract

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstringMinimalReduce(t *testing.T) {
	in := [][]byte{
		[]byte("world"),
		[]byte("hello world"),
		[]byte("abc"),
		[]byte("xabcx"),
	}
	out := substringMinimalReduce(in)

	assert.ElementsMatch(t, [][]byte{[]byte("world"), []byte("abc")}, out)
}

// The reduction invariant: no two distinct survivors where one is a
// substring of the other.
func TestSubstringMinimalReduceInvariant(t *testing.T) {
	in := [][]byte{
		[]byte("a"), []byte("ab"), []byte("abc"), []byte("bcd"),
		[]byte("zzz"), []byte("zz"), []byte("qq"),
	}
	out := substringMinimalReduce(in)

	for i, x := range out {
		for j, y := range out {
			if i == j || len(x) >= len(y) {
				continue
			}
			assert.False(t, bytes.Contains(y, x),
				"%q is a substring of %q; reduction must have removed the longer", x, y)
		}
	}
}

func TestSubstringMinimalReduceKeepsEqualLengths(t *testing.T) {
	in := [][]byte{[]byte("ab"), []byte("cd"), []byte("ab")}
	out := substringMinimalReduce(in)
	assert.Len(t, out, 3, "equal-length strings never eliminate each other")
}

func TestPruneProperSubstrings(t *testing.T) {
	in := [][]byte{
		[]byte("abc"),
		[]byte("xxabcxx"),
		[]byte("qq"),
	}
	out := pruneProperSubstrings(in)
	assert.ElementsMatch(t, [][]byte{[]byte("xxabcxx"), []byte("qq")}, out)
}
