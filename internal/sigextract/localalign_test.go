package sigextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSmithWatermanIdentical(t *testing.T) {
	res := SmithWaterman([]byte("abcd"), []byte("abcd"), DefaultScoring())
	assert.Equal(t, 4, res.Score)
	assert.Equal(t, []byte("abcd"), res.SubstringX)
	assert.Equal(t, []byte("abcd"), res.SubstringY)
}

func TestSmithWatermanCommonCore(t *testing.T) {
	res := SmithWaterman([]byte("XabcY"), []byte("XabcZ"), DefaultScoring())
	assert.Equal(t, 4, res.Score)
	assert.Equal(t, []byte("Xabc"), res.SubstringX)
	assert.Equal(t, []byte("Xabc"), res.SubstringY)
}

func TestSmithWatermanNoOverlap(t *testing.T) {
	res := SmithWaterman([]byte("aaaa"), []byte("bbbb"), DefaultScoring())
	assert.Equal(t, 0, res.Score)
	assert.Empty(t, res.SubstringX)
	assert.Empty(t, res.SubstringY)
}

func TestSmithWatermanGap(t *testing.T) {
	// One indel inside an otherwise-matching run: score 5 matches - 1 gap.
	res := SmithWaterman([]byte("abcXde"), []byte("abcde"), DefaultScoring())
	assert.Equal(t, 4, res.Score)
}

func TestSmithWatermanEmptyInput(t *testing.T) {
	res := SmithWaterman(nil, []byte("abc"), DefaultScoring())
	assert.Equal(t, 0, res.Score)
}
