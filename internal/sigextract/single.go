package sigextract

import "github.com/fasguard/fasguard-core/internal/ngram"

// extractSingleAttack implements the single-attack mode: mine novel
// n-grams from every packet payload, select local-maximum coverage
// plateaus, and emit rules along two paths, combined into one rule list:
// direct content-rule emission of each surviving fragment, and
// substring-minimal reduction across every per-packet novel n-gram.
func (e *Extractor) extractSingleAttack() ([]Rule, error) {
	var rules []Rule
	var allNovel [][]byte

	for _, attack := range e.attacks {
		for _, pkt := range attack.Packets {
			novelGrams, coverage, err := e.novelNgrams(pkt.Payload)
			if err != nil {
				return nil, err
			}
			allNovel = append(allNovel, novelGrams...)

			for _, frag := range coveragePlateaus(pkt.Payload, coverage, e.cfg.MinDepth) {
				rules = append(rules, e.makeRule("single-attack novel fragment", frag))
			}
		}
	}

	for _, s := range substringMinimalReduce(allNovel) {
		rules = append(rules, e.makeRule("single-attack reduced n-gram", s))
	}

	return rules, nil
}

// novelNgrams enumerates every (offset, depth) n-gram of payload within
// the configured depth window, keeping those absent from the benign Bloom
// filter, and returns the per-position coverage histogram built by
// incrementing every position a surviving n-gram covers. A Bloom lookup
// failure (possible only in the disk-backed mode) aborts the extraction.
func (e *Extractor) novelNgrams(payload []byte) (novel [][]byte, coverage []int, err error) {
	coverage = make([]int, len(payload))
	ngram.Each(payload, e.cfg.MinDepth, e.cfg.MaxDepth, func(offset, depth int, gram []byte) {
		if err != nil {
			return
		}
		known, cerr := e.bloom.Contains(gram)
		if cerr != nil {
			err = cerr
			return
		}
		if known {
			return
		}
		cp := make([]byte, depth)
		copy(cp, gram)
		novel = append(novel, cp)
		for i := offset; i < offset+depth; i++ {
			coverage[i]++
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return novel, coverage, nil
}

// coveragePlateaus walks coverage left to right and emits one fragment
// per local-maximum plateau: a contiguous span of nonzero coverage that
// ends either at a zero-coverage gap or at a position whose coverage count
// is lower than the position before it. Fragments shorter than minN are
// dropped.
func coveragePlateaus(payload []byte, coverage []int, minN int) [][]byte {
	var frags [][]byte
	start := -1
	prev := 0

	for i := 0; i <= len(payload); i++ {
		cov := 0
		if i < len(payload) {
			cov = coverage[i]
		}

		if cov == 0 {
			if start >= 0 && i-start >= minN {
				frags = append(frags, payload[start:i])
			}
			start = -1
			prev = 0
			continue
		}

		if start < 0 {
			start = i
		} else if cov < prev {
			if i-start >= minN {
				frags = append(frags, payload[start:i])
			}
			start = i
		}
		prev = cov
	}

	return frags
}
