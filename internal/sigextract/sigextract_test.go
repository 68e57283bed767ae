package sigextract

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fasguard/fasguard-core/internal/bloomfilter"
	"github.com/fasguard/fasguard-core/internal/ngram"
)

// writeBenignBloom builds a Bloom filter over every n-gram of the given
// benign payloads and flushes it under dir with the extractor's filename
// convention.
func writeBenignBloom(t *testing.T, dir string, proto, port, minN, maxN int, benign ...[]byte) {
	t.Helper()

	params, err := bloomfilter.NewParams(10000, 1e-5, proto, port, minN, maxN)
	require.NoError(t, err)
	filter := bloomfilter.New(params)

	for _, payload := range benign {
		ngram.Each(payload, minN, maxN, func(offset, depth int, s []byte) {
			require.NoError(t, filter.Insert(s))
		})
	}

	path := bloomFilename(dir, proto, port, minN, maxN)
	require.NoError(t, filter.Flush(path))
}

func testConfig(dir string, proto, port, minN, maxN int) Config {
	return Config{
		MinDepth:        minN,
		MaxDepth:        maxN,
		BloomFilterDir:  dir,
		BloomFromMemory: true,
		IPProtocol:      proto,
		Port:            port,
		RuleAction:      "alert",
		Endpoints: Endpoints{
			IP1: "$EXTERNAL_NET", Port1: "any",
			IP2: "$HOME_NET", Port2: "80",
		},
		LevelPercentThresh: 0.5,
	}
}

func packet(proto, dstPort int, payload string) Packet {
	return Packet{IPProto: proto, DstPort: dstPort, Payload: []byte(payload), PAttack: 0.9}
}

// ruleContains reports whether any content fragment of any rule contains
// want as a byte substring.
func ruleContains(rules []Rule, want []byte) bool {
	for _, r := range rules {
		for _, frag := range r.Content {
			if bytes.Contains(frag, want) {
				return true
			}
		}
	}
	return false
}

// TestSingleAttackNovelty builds the benign filter exclusively from
// "hello" payloads and extracts from "hello world": candidates containing
// "world" survive the novelty filter, candidates fully inside "hello" do
// not.
func TestSingleAttackNovelty(t *testing.T) {
	dir := t.TempDir()
	writeBenignBloom(t, dir, 6, 80, 5, 5, []byte("hello"))

	e := New()
	require.NoError(t, e.Configure(testConfig(dir, 6, 80, 5, 5), false, false))
	require.NoError(t, e.AppendAttack())
	require.NoError(t, e.AppendPacket(packet(6, 80, "hello world")))

	rules, err := e.Extract()
	require.NoError(t, err)
	require.NotEmpty(t, rules)

	assert.True(t, ruleContains(rules, []byte("world")),
		"a rule must carry the novel bytes 77 6f 72 6c 64")
	assert.False(t, ruleContains(rules, []byte("hell")),
		"benign-only bytes must not survive the novelty filter")

	for _, r := range rules {
		assert.Equal(t, "alert", r.Action)
		assert.Equal(t, "tcp", r.Proto)
		assert.GreaterOrEqual(t, r.SID, uint64(10000))
		assert.Equal(t, uint64(1), r.Rev)
	}
}

func TestSIDsIncrementPerRun(t *testing.T) {
	dir := t.TempDir()
	writeBenignBloom(t, dir, 6, 80, 5, 5, []byte("hello"))

	e := New()
	require.NoError(t, e.Configure(testConfig(dir, 6, 80, 5, 5), false, false))
	require.NoError(t, e.AppendAttack())
	require.NoError(t, e.AppendPacket(packet(6, 80, "hello world")))

	rules, err := e.Extract()
	require.NoError(t, err)
	require.NotEmpty(t, rules)

	seen := make(map[uint64]bool)
	for i, r := range rules {
		assert.Equal(t, uint64(10000+i), r.SID)
		assert.False(t, seen[r.SID], "SIDs must be unique within a run")
		seen[r.SID] = true
	}
}

// TestClusteredExtraction feeds three payloads: two share the core "abc",
// the third shares nothing. With a 50% threshold the first two cluster and
// yield a common segment containing "abc"; the singleton contributes no
// rule.
func TestClusteredExtraction(t *testing.T) {
	dir := t.TempDir()
	writeBenignBloom(t, dir, 6, 80, 2, 4) // empty benign set: everything is novel

	e := New()
	require.NoError(t, e.Configure(testConfig(dir, 6, 80, 2, 4), true, false))
	require.NoError(t, e.AppendAttack())
	require.NoError(t, e.AppendPacket(packet(6, 80, "XabcY")))
	require.NoError(t, e.AppendPacket(packet(6, 80, "XabcZ")))
	require.NoError(t, e.AppendPacket(packet(6, 80, "QQQQQ")))

	rules, err := e.Extract()
	require.NoError(t, err)
	require.NotEmpty(t, rules)

	assert.True(t, ruleContains(rules, []byte("abc")))
	assert.False(t, ruleContains(rules, []byte("QQ")),
		"the singleton payload must not produce a rule")
}

// TestClusteredBenignSegmentFiltered reruns the clustered extraction with
// the common core itself in the benign set: the segment contains no novel
// n-gram and must be dropped.
func TestClusteredBenignSegmentFiltered(t *testing.T) {
	dir := t.TempDir()
	writeBenignBloom(t, dir, 6, 80, 2, 4, []byte("Xabc"))

	e := New()
	require.NoError(t, e.Configure(testConfig(dir, 6, 80, 2, 4), true, false))
	require.NoError(t, e.AppendAttack())
	require.NoError(t, e.AppendPacket(packet(6, 80, "XabcY")))
	require.NoError(t, e.AppendPacket(packet(6, 80, "XabcZ")))
	require.NoError(t, e.AppendPacket(packet(6, 80, "XabcW")))

	rules, err := e.Extract()
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestMixedProtoPortAborts(t *testing.T) {
	dir := t.TempDir()
	writeBenignBloom(t, dir, 6, 80, 3, 5, []byte("hello"))

	e := New()
	require.NoError(t, e.Configure(testConfig(dir, 6, 80, 3, 5), false, false))
	require.NoError(t, e.AppendAttack())
	require.NoError(t, e.AppendPacket(packet(6, 80, "hello world")))
	require.NoError(t, e.AppendPacket(packet(6, 8080, "hello world")))

	_, err := e.Extract()
	assert.Error(t, err)
}

func TestBloomShapeMismatchAborts(t *testing.T) {
	dir := t.TempDir()
	// The file on disk is named for [3,5] but carries [2,4] bounds.
	params, err := bloomfilter.NewParams(1000, 1e-5, 6, 80, 2, 4)
	require.NoError(t, err)
	filter := bloomfilter.New(params)
	require.NoError(t, filter.Flush(bloomFilename(dir, 6, 80, 3, 5)))

	e := New()
	err = e.Configure(testConfig(dir, 6, 80, 3, 5), false, false)
	assert.Error(t, err)
}

func TestMissingBloomFileAborts(t *testing.T) {
	e := New()
	err := e.Configure(testConfig(filepath.Join(t.TempDir(), "absent"), 6, 80, 3, 5), false, false)
	assert.Error(t, err)
}

func TestStateMachine(t *testing.T) {
	dir := t.TempDir()
	writeBenignBloom(t, dir, 6, 80, 3, 5, []byte("hello"))

	e := New()

	// Packets may not be appended before any attack is started.
	assert.Error(t, e.AppendPacket(packet(6, 80, "x")))

	require.NoError(t, e.Configure(testConfig(dir, 6, 80, 3, 5), false, false))
	assert.Error(t, e.Configure(testConfig(dir, 6, 80, 3, 5), false, false),
		"Configure is not re-entrant")

	// Extract before any attack is loaded is out of order.
	_, err := e.Extract()
	assert.Error(t, err)

	require.NoError(t, e.AppendAttack())
	require.NoError(t, e.AppendPacket(packet(6, 80, "hello world")))
	_, err = e.Extract()
	require.NoError(t, err)

	// Extract is terminal.
	_, err = e.Extract()
	assert.Error(t, err)
}

func TestPreSeparatedModeReserved(t *testing.T) {
	dir := t.TempDir()
	writeBenignBloom(t, dir, 6, 80, 3, 5, []byte("hello"))

	e := New()
	require.NoError(t, e.Configure(testConfig(dir, 6, 80, 3, 5), true, true))
	require.NoError(t, e.AppendAttack())
	require.NoError(t, e.AppendPacket(packet(6, 80, "hello world")))

	_, err := e.Extract()
	assert.Error(t, err)
}

func TestSplitContent(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = byte(i)
	}
	frags := splitContent(long)
	require.Len(t, frags, 3)
	assert.Len(t, frags[0], 255)
	assert.Len(t, frags[1], 255)
	assert.Len(t, frags[2], 90)
	assert.Equal(t, long, bytes.Join(frags, nil))

	assert.Nil(t, splitContent(nil))
}

func TestCoveragePlateaus(t *testing.T) {
	payload := []byte("aabbbcc")
	//                  0123456
	coverage := []int{0, 0, 3, 3, 3, 1, 1}

	frags := coveragePlateaus(payload, coverage, 2)
	require.Len(t, frags, 2)
	assert.Equal(t, []byte("bbb"), frags[0])
	assert.Equal(t, []byte("cc"), frags[1])

	// A plateau shorter than minN is dropped.
	frags = coveragePlateaus(payload, coverage, 4)
	assert.Empty(t, frags)
}
