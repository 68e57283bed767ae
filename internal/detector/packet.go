package detector

import (
	"errors"

	"github.com/fasguard/fasguard-core/internal/linklayer"
)

// ErrMalformed reports a frame too short, or an IP version nibble that is
// neither 4 nor 6, to extract source and destination addresses from.
var ErrMalformed = errors.New("detector: malformed or truncated packet")

// extractAddresses parses frame's link layer (per linkType) to locate the
// IP header, classifies IPv4 vs IPv6 by the high nibble of the first IP
// byte, and extracts the source and destination addresses.
func extractAddresses(linkType linklayer.Type, frame []byte) (src, dst IPAddress, err error) {
	off := linklayer.HeaderLen(linkType, frame)
	if off >= len(frame) {
		return IPAddress{}, IPAddress{}, ErrMalformed
	}
	ip := frame[off:]
	if len(ip) < 1 {
		return IPAddress{}, IPAddress{}, ErrMalformed
	}

	switch ip[0] >> 4 {
	case 4:
		if len(ip) < 20 {
			return IPAddress{}, IPAddress{}, ErrMalformed
		}
		src, err = NewIPv4(ip[12:16])
		if err != nil {
			return IPAddress{}, IPAddress{}, err
		}
		dst, err = NewIPv4(ip[16:20])
		if err != nil {
			return IPAddress{}, IPAddress{}, err
		}
		return src, dst, nil
	case 6:
		if len(ip) < 40 {
			return IPAddress{}, IPAddress{}, ErrMalformed
		}
		src, err = NewIPv6(ip[8:24])
		if err != nil {
			return IPAddress{}, IPAddress{}, err
		}
		dst, err = NewIPv6(ip[24:40])
		if err != nil {
			return IPAddress{}, IPAddress{}, err
		}
		return src, dst, nil
	default:
		return IPAddress{}, IPAddress{}, ErrMalformed
	}
}
