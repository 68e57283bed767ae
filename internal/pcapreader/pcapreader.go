// Package pcapreader gives the detector and the Bloom build pipeline a
// concrete packet source. It reads pcap savefiles with gopacket/pcapgo, a
// pure-Go reader with no libpcap/cgo dependency, and reports each frame's
// bytes alongside the capture's static link-layer type.
package pcapreader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/fasguard/fasguard-core/internal/linklayer"
)

// Frame is one captured packet as delivered to a Handler.
type Frame struct {
	Timestamp time.Time
	CapLen    int
	WireLen   int
	Data      []byte
}

// Handler processes one captured frame. Returning an error stops iteration.
type Handler func(Frame) error

// Source reads frames from a single pcap savefile.
type Source struct {
	f        *os.File
	r        *pcapgo.Reader
	linkType linklayer.Type
}

// Open opens a pcap savefile and determines its link-layer type. It
// supports Ethernet, Linux-SLL, and raw-IP captures; any other link type
// is rejected.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pcapreader: open %s: %w", path, err)
	}

	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pcapreader: parse %s: %w", path, err)
	}

	var lt linklayer.Type
	switch r.LinkType() {
	case layerTypeEthernet:
		lt = linklayer.Ethernet
	case layerTypeLinuxSLL:
		lt = linklayer.LinuxSLL
	case layerTypeRaw, layerTypeRaw2:
		lt = linklayer.Raw
	default:
		f.Close()
		return nil, fmt.Errorf("pcapreader: %s: unsupported link type %v", path, r.LinkType())
	}

	return &Source{f: f, r: r, linkType: lt}, nil
}

// LinkType reports the capture's static link-layer type.
func (s *Source) LinkType() linklayer.Type {
	return s.linkType
}

// Close releases the underlying file.
func (s *Source) Close() error {
	return s.f.Close()
}

// Each calls handler once per frame in capture order until the file is
// exhausted or handler returns an error.
func (s *Source) Each(handler Handler) error {
	for {
		data, ci, err := s.r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("pcapreader: read packet: %w", err)
		}

		if err := handler(Frame{
			Timestamp: ci.Timestamp,
			CapLen:    ci.CaptureLength,
			WireLen:   ci.Length,
			Data:      data,
		}); err != nil {
			return err
		}
	}
}

// Pcap link-type values this reader accepts. DLT_RAW appears as both 12
// and 101 in the wild, so both map to Raw.
const (
	layerTypeEthernet = layers.LinkType(1)
	layerTypeRaw      = layers.LinkType(12)
	layerTypeRaw2     = layers.LinkType(101)
	layerTypeLinuxSLL = layers.LinkType(113)
)
