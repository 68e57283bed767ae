// Package bloomfilter implements the benign n-gram store: a single Bloom
// filter value with insert/contains/flush/load/union operations and a
// typed parameter record, persisted with a fixed 4096-byte text header
// followed by the raw bit payload. This normalizes the source's several
// duplicated implementations (bloom_filter, BloomFilter,
// BloomFilterUnthreaded, BloomFilterThreaded) behind one type; the two
// build strategies in package bloombuild share this filter rather than
// each owning their own copy.
package bloomfilter

import (
	"fmt"
	"math"

	"github.com/fasguard/fasguard-core/internal/hashbit"
)

// MaxHashes is the hard ceiling on Params.NumHashes.
const MaxHashes = hashbit.MaxHashes

// Params describes a Bloom filter's shape: its sizing and the traffic
// selector it was built for. It is the serializable half of the filter;
// Filter holds the mutable bit payload.
type Params struct {
	IPProtocol   int
	Port         int
	MinNgram     int
	MaxNgram     int
	BitLength    uint64
	NumHashes    int
	BytesProcessed uint64
}

// NewParams sizes a filter for the expected number of inserted items and a
// target false-positive probability, following the standard optimal-size
// formulas: m = round(-items*ln(p)/ln^2(2)), rounded up to the next power
// of two (strictly greater, never equal), then up to a whole byte;
// k = round(ln(2)*m/items), clamped to [1, MaxHashes].
func NewParams(items uint64, pFalsePositive float64, ipProtocol, port, minNgram, maxNgram int) (Params, error) {
	if items == 0 {
		return Params{}, fmt.Errorf("bloomfilter: items must be > 0")
	}
	if pFalsePositive <= 0 || pFalsePositive >= 1 {
		return Params{}, fmt.Errorf("bloomfilter: false positive probability must be in (0,1), got %v", pFalsePositive)
	}
	if minNgram <= 0 || maxNgram < minNgram {
		return Params{}, fmt.Errorf("bloomfilter: invalid ngram bounds [%d,%d]", minNgram, maxNgram)
	}

	bitlength := roundHalfAwayFromZero(-float64(items) * math.Log(pFalsePositive) / (math.Ln2 * math.Ln2))

	var pow uint64 = 1
	for i := 0; i < 64; i++ {
		pow = uint64(1) << uint(i)
		if pow > bitlength {
			bitlength = pow
			break
		}
	}

	if bitlength%8 != 0 {
		bitlength += 8 - (bitlength % 8)
	} else if bitlength < 8 {
		bitlength = 8
	}

	numHashes := int(roundHalfAwayFromZero(math.Ln2 * float64(bitlength) / float64(items)))
	if numHashes < 1 {
		numHashes = 1
	} else if numHashes > MaxHashes {
		numHashes = MaxHashes
	}

	return Params{
		IPProtocol: ipProtocol,
		Port:       port,
		MinNgram:   minNgram,
		MaxNgram:   maxNgram,
		BitLength:  bitlength,
		NumHashes:  numHashes,
	}, nil
}

// compatible reports whether two parameter sets describe filters that can
// be unioned: same selector and same shape.
func (p Params) compatible(other Params) bool {
	return p.IPProtocol == other.IPProtocol &&
		p.Port == other.Port &&
		p.MinNgram == other.MinNgram &&
		p.MaxNgram == other.MaxNgram &&
		p.BitLength == other.BitLength &&
		p.NumHashes == other.NumHashes
}

func roundHalfAwayFromZero(f float64) uint64 {
	if f < 0 {
		return 0
	}
	return uint64(math.Floor(f + 0.5))
}
