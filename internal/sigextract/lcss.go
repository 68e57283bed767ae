package sigextract

import "bytes"

// lcss returns the longest contiguous common substring of a and b
// (longest-common-substring dynamic program, not the subsequence problem).
// Ties are broken toward the first (leftmost) occurrence in a.
func lcss(a, b []byte) []byte {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return nil
	}

	prevRow := make([]int, m+1)
	curRow := make([]int, m+1)
	longest, endA := 0, 0

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if a[i-1] == b[j-1] {
				curRow[j] = prevRow[j-1] + 1
				if curRow[j] > longest {
					longest = curRow[j]
					endA = i
				}
			} else {
				curRow[j] = 0
			}
		}
		prevRow, curRow = curRow, prevRow
	}

	if longest == 0 {
		return nil
	}
	return a[endA-longest : endA]
}

// findMatchSegmentSequence mines the ordered list of byte segments common
// to every string in strs: repeatedly find the shortest of all pairwise
// LCSSes among a shrinking candidate pool, confirm it is a substring of
// every original input, then recurse on the text before and after it. The
// concatenation of the returned segments (with wildcard gaps between them)
// is a regular expression matching every input in strs.
func findMatchSegmentSequence(strs [][]byte) [][]byte {
	if len(strs) < 2 {
		return nil
	}

	reduce := strs
	var shortest []byte
	haveShortest := false

	for {
		var common [][]byte
		for i := 0; i < len(reduce); i++ {
			for j := i + 1; j < len(reduce); j++ {
				l := lcss(reduce[i], reduce[j])
				common = append(common, l)
				if !haveShortest || len(l) < len(shortest) {
					shortest = l
					haveShortest = true
				}
			}
		}

		allContain := true
		for _, s := range strs {
			if !bytes.Contains(s, shortest) {
				allContain = false
				break
			}
		}
		if allContain {
			break
		}
		reduce = common
	}

	// An empty (or never-narrowed) shortest string means no substring is
	// common to every input; that is an empty mining result, not an error.
	if len(shortest) == 0 {
		return nil
	}

	var before, after [][]byte
	for _, s := range strs {
		loc := bytes.Index(s, shortest)
		if loc < 0 {
			return nil
		}
		if loc > 0 {
			before = append(before, s[:loc])
		}
		tailStart := loc + len(shortest)
		if tailStart < len(s) {
			after = append(after, s[tailStart:])
		}
	}

	var result [][]byte
	if len(before) == len(strs) {
		result = append(result, findMatchSegmentSequence(before)...)
	}
	result = append(result, shortest)
	if len(after) == len(strs) {
		result = append(result, findMatchSegmentSequence(after)...)
	}
	return result
}
