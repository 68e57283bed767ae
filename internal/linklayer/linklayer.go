// Package linklayer computes the length of a captured frame's link-layer
// header so callers can locate the start of the IP datagram. Capture
// sources supply a static link-layer type alongside each frame's bytes.
package linklayer

import "encoding/binary"

// Type identifies the link-layer framing a capture source uses for every
// frame it delivers. It is fixed per capture session, not per packet.
type Type int

const (
	Ethernet Type = iota
	LinuxSLL
	Raw
)

const vlanTPID = 0x8100

// HeaderLen returns the number of leading bytes of frame that belong to the
// link-layer header, so that frame[HeaderLen(t, frame):] is the start of
// the IP datagram (or a truncated remainder of the link header if frame is
// too short to tell).
//
//   - Ethernet: 14 bytes, extended to 18 if bytes[12:14] (big-endian) is the
//     802.1Q tag protocol identifier 0x8100.
//   - Linux-SLL ("cooked" capture): 16 bytes, fixed.
//   - Raw: 0 bytes.
func HeaderLen(t Type, frame []byte) int {
	switch t {
	case Ethernet:
		if len(frame) < 14 {
			return len(frame)
		}
		if binary.BigEndian.Uint16(frame[12:14]) == vlanTPID {
			if len(frame) < 18 {
				return len(frame)
			}
			return 18
		}
		return 14
	case LinuxSLL:
		return 16
	case Raw:
		return 0
	default:
		return 0
	}
}
