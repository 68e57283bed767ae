package sigextract

import (
	"bytes"

	"github.com/fasguard/fasguard-core/internal/ngram"
)

// extractClustered implements the clustered mode: distance matrix over
// distinct payloads, greedy agglomerative clustering, disjoint-set
// splitting at the configured percent threshold, LCSS segment mining per
// cluster, Bloom novelty filtering, and substring pruning.
func (e *Extractor) extractClustered() ([]Rule, error) {
	payloads := make(map[string][]byte)
	for _, attack := range e.attacks {
		for _, pkt := range attack.Packets {
			if len(pkt.Payload) == 0 {
				continue
			}
			payloads[string(pkt.Payload)] = pkt.Payload
		}
	}
	if len(payloads) == 0 {
		return nil, nil
	}

	dm := buildDistanceMatrix(payloads, e.cfg.Scoring)
	root := buildDendrogram(payloads, dm)
	clusters := findDisjointStringSets(root, e.cfg.LevelPercentThresh)

	var rules []Rule
	for _, cluster := range clusters {
		if len(cluster) < 2 {
			continue
		}

		segments := findMatchSegmentSequence(gatherSubsequences(dm, cluster))

		var retained [][]byte
		for _, seg := range segments {
			novel, err := e.segmentHasNovelNgram(seg)
			if err != nil {
				return nil, err
			}
			if novel {
				retained = append(retained, seg)
			}
		}

		for _, seg := range pruneProperSubstrings(retained) {
			rules = append(rules, e.makeRule("clustered common segment", seg))
		}
	}
	return rules, nil
}

// segmentHasNovelNgram reports whether seg contains at least one n-gram
// in [MinDepth, MaxDepth] the benign Bloom filter has never seen. Segments
// shorter than MinDepth have no candidate n-grams at all and are never
// retained.
func (e *Extractor) segmentHasNovelNgram(seg []byte) (bool, error) {
	novel := false
	var err error
	ngram.Each(seg, e.cfg.MinDepth, e.cfg.MaxDepth, func(offset, depth int, gram []byte) {
		if novel || err != nil {
			return
		}
		known, cerr := e.bloom.Contains(gram)
		if cerr != nil {
			err = cerr
			return
		}
		if !known {
			novel = true
		}
	})
	return novel, err
}

// pruneProperSubstrings removes every segment that is a proper substring
// of a longer retained segment in the same cluster. This is the opposite
// direction from substringMinimalReduce, which keeps the shortest
// representatives; here the longer, more specific segment wins.
func pruneProperSubstrings(segs [][]byte) [][]byte {
	var out [][]byte
	for i, s := range segs {
		contained := false
		for j, longer := range segs {
			if i == j || len(s) >= len(longer) {
				continue
			}
			if bytes.Contains(longer, s) {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, s)
		}
	}
	return out
}
