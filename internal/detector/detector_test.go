package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fasguard/fasguard-core/internal/linklayer"
)

// ethFrame builds a minimal Ethernet+IPv4 frame carrying only the header
// fields the detector reads.
func ethFrame(src, dst [4]byte) []byte {
	frame := make([]byte, 14+20)
	frame[12] = 0x08
	frame[13] = 0x00
	ip := frame[14:]
	ip[0] = 0x45
	ip[2] = 0
	ip[3] = 20
	ip[8] = 64
	ip[9] = 6
	copy(ip[12:16], src[:])
	copy(ip[16:20], dst[:])
	return frame
}

var (
	hostA = [4]byte{10, 0, 0, 1}
	hostB = [4]byte{10, 0, 0, 2}
	hostC = [4]byte{10, 0, 0, 3}
	hostD = [4]byte{10, 0, 0, 4}
)

func addr(t *testing.T, b [4]byte) IPAddress {
	t.Helper()
	a, err := NewIPv4(b[:])
	require.NoError(t, err)
	return a
}

func TestGenerationMath(t *testing.T) {
	d := New(linklayer.Ethernet)
	t0 := time.Unix(1000, 0)

	require.NoError(t, d.ProcessPacket(t0, ethFrame(hostA, hostB)))
	assert.Equal(t, int64(0), d.CurrentGeneration())

	require.NoError(t, d.ProcessPacket(t0.Add(59*time.Second), ethFrame(hostA, hostB)))
	assert.Equal(t, int64(0), d.CurrentGeneration())

	require.NoError(t, d.ProcessPacket(t0.Add(60*time.Second), ethFrame(hostA, hostB)))
	assert.Equal(t, int64(1), d.CurrentGeneration())

	require.NoError(t, d.ProcessPacket(t0.Add(10*time.Minute), ethFrame(hostA, hostB)))
	assert.Equal(t, int64(10), d.CurrentGeneration())
}

// TestRollover feeds A<->B at t=0 and A<->C at t=61s: after the second
// packet the detector is in generation 1, and both A's and B's
// generation-0 datum (one peer each) have been pushed into their
// histograms, B's despite B not appearing in the rolling packet.
func TestRollover(t *testing.T) {
	d := New(linklayer.Ethernet)
	t0 := time.Unix(0, 0)

	require.NoError(t, d.ProcessPacket(t0, ethFrame(hostA, hostB)))
	require.NoError(t, d.ProcessPacket(t0.Add(61*time.Second), ethFrame(hostA, hostC)))

	assert.Equal(t, int64(1), d.CurrentGeneration())

	histA := d.histograms[addr(t, hostA)]
	require.NotNil(t, histA)
	assert.Equal(t, uint64(1), histA.count)
	assert.Equal(t, 1.0, histA.avg)

	histB := d.histograms[addr(t, hostB)]
	require.NotNil(t, histB)
	assert.Equal(t, uint64(1), histB.count)
	assert.Equal(t, 1.0, histB.avg)
}

// TestPeerSymmetry checks the peer-set invariant: both endpoints of every
// flow appear in each other's set within the current generation.
func TestPeerSymmetry(t *testing.T) {
	d := New(linklayer.Ethernet)
	require.NoError(t, d.ProcessPacket(time.Unix(0, 0), ethFrame(hostA, hostB)))

	a, b := addr(t, hostA), addr(t, hostB)
	_, ok := d.peers[a][b]
	assert.True(t, ok)
	_, ok = d.peers[b][a]
	assert.True(t, ok)
}

func TestMalformedFramesDropped(t *testing.T) {
	d := New(linklayer.Ethernet)

	require.NoError(t, d.ProcessPacket(time.Unix(0, 0), nil))
	require.NoError(t, d.ProcessPacket(time.Unix(0, 0), []byte{1, 2, 3}))

	junk := ethFrame(hostA, hostB)
	junk[14] = 0x95 // version nibble 9
	require.NoError(t, d.ProcessPacket(time.Unix(0, 0), junk))

	assert.Empty(t, d.peers)
	assert.Empty(t, d.histograms)
}

// TestAnomalyTrip gives a host a long flat history of 2 peers per
// generation and then a generation with 40: the tail probability at 40 is
// far below the threshold under both distributions, so the host flips
// anomalous.
func TestAnomalyTrip(t *testing.T) {
	d := New(linklayer.Ethernet)
	t0 := time.Unix(0, 0)

	peers := [][4]byte{{10, 9, 0, 1}, {10, 9, 0, 2}}
	for gen := 0; gen < 50; gen++ {
		ts := t0.Add(time.Duration(gen) * 60 * time.Second)
		for _, p := range peers {
			require.NoError(t, d.ProcessPacket(ts, ethFrame(hostA, p)))
		}
	}

	// Generation 50: 40 distinct peers.
	ts := t0.Add(50 * 60 * time.Second)
	for i := 0; i < 40; i++ {
		require.NoError(t, d.ProcessPacket(ts, ethFrame(hostA, [4]byte{10, 10, 0, byte(i + 1)})))
	}
	// Roll generation 50 into A's history.
	require.NoError(t, d.ProcessPacket(t0.Add(51*60*time.Second), ethFrame(hostA, peers[0])))

	assert.True(t, d.IsAnomalous(addr(t, hostA)))
	assert.Contains(t, d.AnomalousHosts(), addr(t, hostA))
}

func TestSteadyHostIsNotAnomalous(t *testing.T) {
	d := New(linklayer.Ethernet)
	t0 := time.Unix(0, 0)

	for gen := 0; gen < 30; gen++ {
		ts := t0.Add(time.Duration(gen) * 60 * time.Second)
		require.NoError(t, d.ProcessPacket(ts, ethFrame(hostA, hostB)))
	}
	assert.False(t, d.IsAnomalous(addr(t, hostA)))
}

// TestEviction checks the eviction bound: a host silent for more than
// 24*60 generations is gone from both peers and histograms after cleanup.
func TestEviction(t *testing.T) {
	d := New(linklayer.Ethernet)
	t0 := time.Unix(0, 0)

	require.NoError(t, d.ProcessPacket(t0, ethFrame(hostA, hostB)))

	// A flow far past the eviction horizon triggers rollover and cleanup.
	late := t0.Add(time.Duration(maxEmptyGenerations+1) * 60 * time.Second)
	require.NoError(t, d.ProcessPacket(late, ethFrame(hostC, hostD)))

	a, b := addr(t, hostA), addr(t, hostB)
	_, okHist := d.histograms[a]
	assert.False(t, okHist, "host A histogram should be evicted")
	_, okHist = d.histograms[b]
	assert.False(t, okHist, "host B histogram should be evicted")
	_, okPeers := d.peers[a]
	assert.False(t, okPeers)

	_, okHist = d.histograms[addr(t, hostC)]
	assert.True(t, okHist, "recently seen host C must survive cleanup")
}

// TestStaleQueueEntries re-sights a host so its early queue entries go
// stale; popping them during cleanup must not evict the still-active host.
func TestStaleQueueEntries(t *testing.T) {
	d := New(linklayer.Ethernet)
	t0 := time.Unix(0, 0)

	require.NoError(t, d.ProcessPacket(t0, ethFrame(hostA, hostB)))

	// Keep A alive near the horizon, in a flow with a fresh peer.
	mid := t0.Add(time.Duration(maxEmptyGenerations) * 60 * time.Second)
	require.NoError(t, d.ProcessPacket(mid, ethFrame(hostA, hostC)))

	late := t0.Add(time.Duration(maxEmptyGenerations+2) * 60 * time.Second)
	require.NoError(t, d.ProcessPacket(late, ethFrame(hostC, hostD)))

	_, ok := d.histograms[addr(t, hostA)]
	assert.True(t, ok, "host A was re-sighted and must not be evicted via its stale entry")
	_, ok = d.histograms[addr(t, hostB)]
	assert.False(t, ok, "host B went dormant and should be evicted")
}

func TestIPAddressHash(t *testing.T) {
	a := addr(t, hostA)
	b := addr(t, hostB)
	assert.NotZero(t, a.Hash(), "the hash must be real, not the stubbed zero")
	assert.NotEqual(t, a.Hash(), b.Hash())

	v6, err := NewIPv6(make([]byte, 16))
	require.NoError(t, err)
	v4, err := NewIPv4(make([]byte, 4))
	require.NoError(t, err)
	assert.NotEqual(t, v4.Hash(), v6.Hash(), "version must contribute to the hash")
}

func TestIPAddressString(t *testing.T) {
	a := addr(t, hostA)
	assert.Equal(t, "10.0.0.1", a.String())
}

// ethFrame6 builds a minimal Ethernet+IPv6 frame.
func ethFrame6(src, dst [16]byte) []byte {
	frame := make([]byte, 14+40)
	frame[12] = 0x86
	frame[13] = 0xdd
	ip := frame[14:]
	ip[0] = 0x60
	copy(ip[8:24], src[:])
	copy(ip[24:40], dst[:])
	return frame
}

func TestIPv6Flow(t *testing.T) {
	d := New(linklayer.Ethernet)

	var srcB, dstB [16]byte
	srcB[15] = 1
	dstB[15] = 2

	require.NoError(t, d.ProcessPacket(time.Unix(0, 0), ethFrame6(srcB, dstB)))

	src, err := NewIPv6(srcB[:])
	require.NoError(t, err)
	dst, err := NewIPv6(dstB[:])
	require.NoError(t, err)

	_, ok := d.peers[src][dst]
	assert.True(t, ok)
	_, ok = d.peers[dst][src]
	assert.True(t, ok)
	assert.Equal(t, IPv6, src.Version)
}
