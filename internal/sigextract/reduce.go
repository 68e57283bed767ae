package sigextract

import "bytes"

// substringMinimalReduce removes, from a set of byte strings, every
// string that contains a strictly shorter string from the set as a
// substring, leaving only the shortest representatives. Input order is
// not significant; output order is stable (first-seen-survives).
func substringMinimalReduce(strs [][]byte) [][]byte {
	keep := make([]bool, len(strs))
	for i := range strs {
		keep[i] = true
	}

	for i, si := range strs {
		if !keep[i] {
			continue
		}
		for j, sj := range strs {
			if i == j || !keep[j] {
				continue
			}
			if len(si) == len(sj) {
				continue
			}
			shorter, longer := si, sj
			longerIdx := j
			if len(si) > len(sj) {
				shorter, longer = sj, si
				longerIdx = i
			}
			if len(shorter) > 0 && bytes.Contains(longer, shorter) {
				keep[longerIdx] = false
			}
		}
	}

	var out [][]byte
	for i, s := range strs {
		if keep[i] {
			out = append(out, s)
		}
	}
	return out
}
