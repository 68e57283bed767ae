// Package payload implements IPv4 TCP/UDP payload extraction for the
// Bloom build pipeline: an Ethernet frame (optionally 802.1Q-tagged) in, a
// layer-4 payload slice out.
package payload

import (
	"encoding/binary"
	"errors"
)

// ErrNotIP is returned for frames that are not IPv4 (including frames whose
// claimed VLAN tag doesn't resolve to IPv4).
var ErrNotIP = errors.New("payload: not an IPv4 frame")

// ErrFragmented is returned for IPv4 datagrams with the more-fragments flag
// set or a nonzero fragment offset.
var ErrFragmented = errors.New("payload: fragmented datagram")

// ErrUnsupportedProto is returned for IPv4 payloads whose protocol is
// neither TCP nor UDP.
var ErrUnsupportedProto = errors.New("payload: not TCP or UDP")

// ErrTruncated is returned when the frame is too short to hold the headers
// its own length fields claim.
var ErrTruncated = errors.New("payload: truncated packet")

const (
	etherAddrLen  = 6
	ethertypeIP   = 0x0800
	ethertypeVLAN = 0x8100

	protoUDP = 17
	protoTCP = 6
)

// Extract returns the IPv4 protocol number and the layer-4 payload slice of
// an Ethernet frame. It rejects non-IPv4 frames, fragmented datagrams, and
// protocols other than TCP/UDP; all such frames are expected to be dropped
// by the caller, not treated as fatal.
func Extract(frame []byte) (proto uint8, data []byte, err error) {
	if len(frame) < 2*etherAddrLen+2 {
		return 0, nil, ErrTruncated
	}

	l3proto := binary.BigEndian.Uint16(frame[2*etherAddrLen : 2*etherAddrLen+2])

	var ipOffset int
	switch l3proto {
	case ethertypeIP:
		ipOffset = 2*etherAddrLen + 2
	case ethertypeVLAN:
		if len(frame) < 2*etherAddrLen+8 {
			return 0, nil, ErrTruncated
		}
		inner := binary.BigEndian.Uint16(frame[2*etherAddrLen+4 : 2*etherAddrLen+6])
		if inner != ethertypeIP {
			return 0, nil, ErrNotIP
		}
		ipOffset = 2*etherAddrLen + 6
	default:
		return 0, nil, ErrNotIP
	}

	if len(frame) < ipOffset+20 {
		return 0, nil, ErrTruncated
	}
	ipPkt := frame[ipOffset:]

	version := ipPkt[0] >> 4
	if version != 4 {
		return 0, nil, ErrNotIP
	}

	ihl := int(ipPkt[0] & 0x0f)
	if ihl < 5 {
		return 0, nil, ErrTruncated
	}

	totalLen := int(binary.BigEndian.Uint16(ipPkt[2:4]))
	if len(ipPkt) < totalLen {
		return 0, nil, ErrTruncated
	}

	moreFragments := (ipPkt[6] & 0x20) != 0
	fragOffset := binary.BigEndian.Uint16(ipPkt[6:8]) & 0x1fff
	if moreFragments || fragOffset != 0 {
		return 0, nil, ErrFragmented
	}

	l4proto := ipPkt[9]
	l4pkt := ipPkt[ihl*4:]
	payloadLen := totalLen - ihl*4

	switch l4proto {
	case protoUDP:
		if len(l4pkt) < 8 {
			return 0, nil, ErrTruncated
		}
		payloadLen -= 8
		if payloadLen < 0 || len(l4pkt) < 8+payloadLen {
			return 0, nil, ErrTruncated
		}
		return protoUDP, l4pkt[8 : 8+payloadLen], nil

	case protoTCP:
		if len(l4pkt) < 20 {
			return 0, nil, ErrTruncated
		}
		tcpHlen := int(l4pkt[12]>>4) * 4
		if tcpHlen < 20 {
			return 0, nil, ErrTruncated
		}
		payloadLen -= tcpHlen
		if payloadLen < 0 || len(l4pkt) < tcpHlen+payloadLen {
			return 0, nil, ErrTruncated
		}
		return protoTCP, l4pkt[tcpHlen : tcpHlen+payloadLen], nil

	default:
		return 0, nil, ErrUnsupportedProto
	}
}
