// Package ngram enumerates the byte n-grams of a payload over a
// configured length window. It is shared by the Bloom build pipeline
// (component C) and the signature extractor's single-attack mining
// (component E), both of which walk the same (offset, depth) space.
package ngram

// Each calls fn once for every (offset, depth) pair with
// minN <= depth <= min(maxN, len(payload)-offset), passing the byte slice
// payload[offset:offset+depth]. fn must not retain the slice beyond the
// call; it aliases payload.
func Each(payload []byte, minN, maxN int, fn func(offset, depth int, s []byte)) {
	n := len(payload)
	for o := 0; o <= n; o++ {
		limit := maxN
		if rem := n - o; rem < limit {
			limit = rem
		}
		for d := minN; d <= limit; d++ {
			fn(o, d, payload[o:o+d])
		}
	}
}
