package bloombuild

import (
	"github.com/fasguard/fasguard-core/internal/linklayer"
	"github.com/fasguard/fasguard-core/internal/pcapreader"
)

// pcapSource adapts a *pcapreader.Source (which hands out full Frame
// records with capture metadata) to the PacketSource interface the build
// strategies in this package consume (which only care about frame bytes).
type pcapSource struct {
	s *pcapreader.Source
}

// NewPcapSource wraps an open pcap file as a PacketSource for BuildUnthreaded
// and BuildThreaded.
func NewPcapSource(s *pcapreader.Source) PacketSource {
	return pcapSource{s: s}
}

func (p pcapSource) LinkType() linklayer.Type {
	return p.s.LinkType()
}

func (p pcapSource) Each(fn func(data []byte) error) error {
	return p.s.Each(func(f pcapreader.Frame) error {
		return fn(f.Data)
	})
}
