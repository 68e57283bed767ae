package sigextract

import (
	"math"
	"sort"
)

// clusterNode is one node of the dendrogram built over a report's
// distinct payloads. Leaves hold one payload each; internal nodes are
// always binary (the product of merging exactly two existing clusters) and
// carry the merge score recorded at the moment they were formed. Nodes are
// keyed directly on payload content (the string form of the []byte
// payload) rather than a digest of it.
type clusterNode struct {
	score    int
	members  []string // payload keys belonging to this node's leaf set
	parent   *clusterNode
	children [2]*clusterNode // nil for leaves
	isLeaf   bool
}

func (n *clusterNode) leaves() []*clusterNode {
	if n.isLeaf {
		return []*clusterNode{n}
	}
	var out []*clusterNode
	out = append(out, n.children[0].leaves()...)
	out = append(out, n.children[1].leaves()...)
	return out
}

func (n *clusterNode) depth() int {
	d := 0
	for p := n.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// pairScore is the precomputed Smith-Waterman result between two distinct
// payload keys, stored once per unordered pair.
type pairScore struct {
	result LocalAlignResult
}

// distanceMatrix holds every distinct pair's local-alignment result, keyed
// symmetrically (lookup tries both orderings).
type distanceMatrix struct {
	m map[[2]string]pairScore
}

func buildDistanceMatrix(payloads map[string][]byte, scoring ScoringTable) *distanceMatrix {
	keys := sortedKeys(payloads)
	dm := &distanceMatrix{m: make(map[[2]string]pairScore)}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			k1, k2 := keys[i], keys[j]
			res := SmithWaterman(payloads[k1], payloads[k2], scoring)
			dm.m[[2]string{k1, k2}] = pairScore{result: res}
		}
	}
	return dm
}

func (dm *distanceMatrix) lookup(a, b string) LocalAlignResult {
	if a == b {
		return LocalAlignResult{}
	}
	if v, ok := dm.m[[2]string{a, b}]; ok {
		return v.result
	}
	return dm.m[[2]string{b, a}].result
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// maxEditDistVal finds the highest alignment score between any member of
// set1 and any member of set2.
func maxEditDistVal(dm *distanceMatrix, set1, set2 []string) int {
	max := 0
	found := false
	for _, a := range set1 {
		for _, b := range set2 {
			if a == b {
				continue
			}
			score := dm.lookup(a, b).Score
			if !found || score > max {
				max = score
				found = true
			}
		}
	}
	return max
}

// buildDendrogram runs greedy agglomerative clustering over payloads:
// start from one singleton cluster per distinct payload key, and at each
// step merge the two clusters with the highest inter-member alignment
// score, recording that score at the new node, until one root cluster
// remains.
func buildDendrogram(payloads map[string][]byte, dm *distanceMatrix) *clusterNode {
	keys := sortedKeys(payloads)
	clusters := make([]*clusterNode, 0, len(keys))
	for _, k := range keys {
		clusters = append(clusters, &clusterNode{members: []string{k}, isLeaf: true})
	}

	for len(clusters) > 1 {
		bestI, bestJ := 0, 1
		bestScore := math.MinInt64
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				s := maxEditDistVal(dm, clusters[i].members, clusters[j].members)
				if s > bestScore {
					bestScore = s
					bestI, bestJ = i, j
				}
			}
		}

		a, b := clusters[bestI], clusters[bestJ]
		merged := &clusterNode{
			score:    bestScore,
			members:  append(append([]string{}, a.members...), b.members...),
			children: [2]*clusterNode{a, b},
		}
		a.parent = merged
		b.parent = merged

		next := make([]*clusterNode, 0, len(clusters)-1)
		for i, c := range clusters {
			if i == bestI || i == bestJ {
				continue
			}
			next = append(next, c)
		}
		next = append(next, merged)
		clusters = next
	}

	if len(clusters) == 0 {
		return nil
	}
	return clusters[0]
}

// percentDiff is |childScore - parentScore| / childScore, the dendrogram
// cluster-splitting jump test. A zero child score (possible only when
// every alignment score in that subtree was zero) is treated as a maximal
// jump whenever the parent score differs at all, so the division by zero
// never happens.
func percentDiff(childScore, parentScore int) float64 {
	if childScore == 0 {
		if parentScore == 0 {
			return 0
		}
		return 1
	}
	d := float64(parentScore - childScore)
	if d < 0 {
		d = -d
	}
	return d / float64(childScore)
}

// nodeAbove walks up from leaf looking for the nearest ancestor pair
// whose merge scores differ by at least threshold. It returns the node at
// which the search stopped (the ancestor found to jump, or root if none
// did) and whether the climb reached root without ever finding a
// qualifying jump ("unified").
func nodeAbove(leaf, root *clusterNode, threshold float64) (at *clusterNode, unified bool) {
	if leaf.parent == root {
		return root, false
	}
	cur := leaf.parent
	parent := cur.parent
	for {
		if parent == root {
			if percentDiff(cur.score, parent.score) >= threshold {
				return root, false
			}
			return root, true
		}
		if percentDiff(cur.score, parent.score) >= threshold {
			return parent, false
		}
		cur = parent
		parent = parent.parent
	}
}

// findDisjointStringSets partitions root's leaves into clusters by
// finding, for each leaf (processed deepest-first), the nearest ancestor
// jump of at least threshold; that ancestor's two children become two
// clusters. Leaves whose climb reaches the true root without any jump fold
// into root's own two children once no more specific split has already
// consumed them.
func findDisjointStringSets(root *clusterNode, threshold float64) [][]string {
	if root.isLeaf {
		return [][]string{root.members}
	}

	leaves := root.leaves()
	sort.SliceStable(leaves, func(i, j int) bool {
		return leaves[i].depth() > leaves[j].depth()
	})

	visited := make(map[*clusterNode]bool)
	var clusters [][]string

	for _, leaf := range leaves {
		at, unified := nodeAbove(leaf, root, threshold)
		if visited[at] {
			continue
		}
		visited[at] = true

		if at == root {
			if len(clusters) > 0 {
				if unified {
					clusters = append(clusters, root.members)
				} else {
					clusters = append(clusters, root.children[0].members, root.children[1].members)
				}
				return clusters
			}
			clusters = append(clusters, root.children[0].members, root.children[1].members)
			continue
		}
		clusters = append(clusters, at.children[0].members, at.children[1].members)
	}
	return clusters
}

// gatherSubsequences collects the Smith-Waterman aligned substring pairs
// of every distinct pair of payload keys in a cluster, as input to LCSS
// segment mining. Both aligned substrings of each pair are pushed.
func gatherSubsequences(dm *distanceMatrix, keys []string) [][]byte {
	sorted := append([]string{}, keys...)
	sort.Strings(sorted)

	var out [][]byte
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			res := dm.lookup(sorted[i], sorted[j])
			if len(res.SubstringX) > 0 {
				out = append(out, res.SubstringX)
			}
			if len(res.SubstringY) > 0 {
				out = append(out, res.SubstringY)
			}
		}
	}
	return out
}
