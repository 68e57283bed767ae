package detector

import "container/heap"

// lastSeenEntry pairs a generation number with the host last seen at it.
type lastSeenEntry struct {
	generation int64
	host       IPAddress
}

// lastSeenQueue is a min-priority queue ordered by generation, smallest
// first, driving host eviction. A host may have stale entries left behind
// by earlier pushes; Detector.cleanup discards any popped entry whose
// host's current last-seen generation no longer matches the popped one.
type lastSeenQueue []lastSeenEntry

func (q lastSeenQueue) Len() int { return len(q) }
func (q lastSeenQueue) Less(i, j int) bool {
	return q[i].generation < q[j].generation
}
func (q lastSeenQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *lastSeenQueue) Push(x any) {
	*q = append(*q, x.(lastSeenEntry))
}

func (q *lastSeenQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

var _ heap.Interface = (*lastSeenQueue)(nil)
