// Package bloombuild implements the two functionally identical Bloom
// build strategies: an unthreaded direct insertion path and a pipelined,
// multi-threaded path that trades a fixed memory/latency overhead for
// real parallelism. Both consume the same packet source and
// payload-extraction contract and produce bit-for-bit identical filters
// for the same input stream.
package bloombuild

import (
	"github.com/fasguard/fasguard-core/internal/bloomfilter"
	"github.com/fasguard/fasguard-core/internal/linklayer"
	"github.com/fasguard/fasguard-core/internal/ngram"
	"github.com/fasguard/fasguard-core/internal/payload"
)

// PacketSource delivers one Ethernet frame per call to Each, in capture
// order, until the input is exhausted or the handler returns an error.
type PacketSource interface {
	LinkType() linklayer.Type
	Each(func(data []byte) error) error
}

// BuildUnthreaded iterates every frame source produces, extracts its
// layer-4 payload, and inserts every n-gram in [minN, maxN] directly into
// filter. Non-IPv4, fragmented, and non-TCP/UDP frames are silently
// skipped; they carry no benign payload to learn from.
func BuildUnthreaded(filter *bloomfilter.Filter, source PacketSource, minN, maxN int) error {
	return source.Each(func(frame []byte) error {
		_, data, err := payload.Extract(frame)
		if err != nil {
			return nil
		}

		var insertErr error
		ngram.Each(data, minN, maxN, func(offset, depth int, s []byte) {
			if insertErr != nil {
				return
			}
			insertErr = filter.Insert(s)
		})
		if insertErr != nil {
			return insertErr
		}
		filter.AddBytesProcessed(uint64(len(data)))
		return nil
	})
}
