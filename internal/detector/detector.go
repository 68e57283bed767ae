package detector

import (
	"container/heap"
	"time"

	"github.com/fasguard/fasguard-core/internal/linklayer"
)

// generationWindow is the fixed-width time bucket that peer-set
// accumulation and histogram rollover are keyed on.
const generationWindow = 60 * time.Second

// maxEmptyGenerations bounds how long a dormant host's state survives
// before eviction (24 hours of 60-second generations).
const maxEmptyGenerations = 24 * 60

// Detector accumulates per-host peer sets over fixed generations and flags
// hosts whose peer-set size deviates sharply from their running statistics.
// It is not safe for concurrent use; callers serialize packet delivery.
type Detector struct {
	linkType linklayer.Type

	haveFirstPacket   bool
	firstPacketTime   time.Time
	currentGeneration int64

	peers      map[IPAddress]map[IPAddress]struct{}
	histograms map[IPAddress]*Histogram
	anomalous  map[IPAddress]struct{}

	lastSeenGen  map[IPAddress]int64
	lastSeenHeap lastSeenQueue
}

// New creates an empty Detector for a capture session using the given
// fixed link-layer framing.
func New(linkType linklayer.Type) *Detector {
	return &Detector{
		linkType:     linkType,
		peers:        make(map[IPAddress]map[IPAddress]struct{}),
		histograms:   make(map[IPAddress]*Histogram),
		anomalous:    make(map[IPAddress]struct{}),
		lastSeenGen:  make(map[IPAddress]int64),
		lastSeenHeap: lastSeenQueue{},
	}
}

// CurrentGeneration returns the detector's current generation index.
func (d *Detector) CurrentGeneration() int64 {
	return d.currentGeneration
}

// IsAnomalous reports whether h's latest processed datum tripped the
// anomaly test.
func (d *Detector) IsAnomalous(h IPAddress) bool {
	_, ok := d.anomalous[h]
	return ok
}

// AnomalousHosts returns the set of hosts currently flagged anomalous, in
// no particular order.
func (d *Detector) AnomalousHosts() []IPAddress {
	hosts := make([]IPAddress, 0, len(d.anomalous))
	for h := range d.anomalous {
		hosts = append(hosts, h)
	}
	return hosts
}

// ProcessPacket runs the per-packet procedure: link-layer parse, address
// extraction, generation rollover, histogram rollforward for both
// endpoints, and peer-set insertion. Truncated or non-IP frames are
// dropped silently; that is not an error condition a caller needs to
// react to.
func (d *Detector) ProcessPacket(timestamp time.Time, frame []byte) error {
	src, dst, err := extractAddresses(d.linkType, frame)
	if err != nil {
		return nil
	}

	if !d.haveFirstPacket {
		d.firstPacketTime = timestamp
		d.haveFirstPacket = true
		d.currentGeneration = 0
	}

	gen := int64(timestamp.Sub(d.firstPacketTime) / generationWindow)
	if gen < 0 {
		gen = 0
	}
	if gen != d.currentGeneration {
		d.currentGeneration = gen
		d.rollCompletedGenerations()
		d.cleanup()
	}

	d.processHost(src)
	d.processHost(dst)

	d.addPeer(src, dst)
	d.addPeer(dst, src)

	d.touchLastSeen(src)
	d.touchLastSeen(dst)

	return nil
}

// processHost rolls h's histogram forward through every generation up to
// current_generation - 1, pushing its just-completed peer-set size as the
// first datum and zero for every skipped empty generation after it. It is
// a no-op if h's histogram is already current.
func (d *Detector) processHost(h IPAddress) {
	hist, ok := d.histograms[h]
	if !ok {
		hist = &Histogram{generationLastUpdated: -1}
		d.histograms[h] = hist
	}

	target := d.currentGeneration - 1
	if hist.generationLastUpdated >= target {
		return
	}

	n := len(d.peers[h])
	delete(d.peers, h)

	var latestAnomalous bool
	first := true
	for hist.generationLastUpdated < target {
		v := 0.0
		if first {
			v = float64(n)
			first = false
		}
		latestAnomalous = hist.pushValue(v)
	}

	if latestAnomalous {
		d.anomalous[h] = struct{}{}
	} else {
		delete(d.anomalous, h)
	}
}

// rollCompletedGenerations pushes the just-completed generation's datum for
// every host that accumulated peers in it. Hosts with no current peer set
// stay lazy; their zero-filled gap generations are pushed by processHost
// the next time they appear in a flow.
func (d *Detector) rollCompletedGenerations() {
	hosts := make([]IPAddress, 0, len(d.peers))
	for h := range d.peers {
		hosts = append(hosts, h)
	}
	for _, h := range hosts {
		d.processHost(h)
	}
}

func (d *Detector) addPeer(h, peer IPAddress) {
	set, ok := d.peers[h]
	if !ok {
		set = make(map[IPAddress]struct{})
		d.peers[h] = set
	}
	set[peer] = struct{}{}
}

func (d *Detector) touchLastSeen(h IPAddress) {
	d.lastSeenGen[h] = d.currentGeneration
	heap.Push(&d.lastSeenHeap, lastSeenEntry{generation: d.currentGeneration, host: h})
}

// cleanup evicts hosts that have gone dormant for more than
// maxEmptyGenerations generations. A popped queue entry whose generation
// no longer matches the host's recorded last-seen generation is stale
// (superseded by a later sighting) and is discarded without eviction.
func (d *Detector) cleanup() {
	if d.currentGeneration <= maxEmptyGenerations {
		return
	}
	threshold := d.currentGeneration - maxEmptyGenerations

	for d.lastSeenHeap.Len() > 0 && d.lastSeenHeap[0].generation < threshold {
		entry := heap.Pop(&d.lastSeenHeap).(lastSeenEntry)
		if cur, ok := d.lastSeenGen[entry.host]; !ok || cur != entry.generation {
			continue
		}
		delete(d.peers, entry.host)
		delete(d.histograms, entry.host)
		delete(d.anomalous, entry.host)
		delete(d.lastSeenGen, entry.host)
	}
}
