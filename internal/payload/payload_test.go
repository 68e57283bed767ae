package payload

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildIPv4UDP builds a minimal Ethernet+IPv4+UDP frame carrying data.
func buildIPv4UDP(t *testing.T, data []byte, vlan bool) []byte {
	t.Helper()

	udpLen := 8 + len(data)
	ipLen := 20 + udpLen

	var eth []byte
	if vlan {
		eth = make([]byte, 18)
		binary.BigEndian.PutUint16(eth[12:14], ethertypeVLAN)
		binary.BigEndian.PutUint16(eth[16:18], ethertypeIP)
	} else {
		eth = make([]byte, 14)
		binary.BigEndian.PutUint16(eth[12:14], ethertypeIP)
	}

	ip := make([]byte, ipLen)
	ip[0] = 0x45 // version 4, IHL 5
	binary.BigEndian.PutUint16(ip[2:4], uint16(ipLen))
	ip[9] = protoUDP

	udp := ip[20:]
	binary.BigEndian.PutUint16(udp[4:6], uint16(udpLen))
	copy(udp[8:], data)

	return append(eth, ip...)
}

func buildIPv4TCP(t *testing.T, data []byte) []byte {
	t.Helper()

	tcpLen := 20 + len(data)
	ipLen := 20 + tcpLen

	eth := make([]byte, 14)
	binary.BigEndian.PutUint16(eth[12:14], ethertypeIP)

	ip := make([]byte, ipLen)
	ip[0] = 0x45
	binary.BigEndian.PutUint16(ip[2:4], uint16(ipLen))
	ip[9] = protoTCP

	tcp := ip[20:]
	tcp[12] = 5 << 4 // data offset 5 words = 20 bytes
	copy(tcp[20:], data)

	return append(eth, ip...)
}

func TestExtractUDP(t *testing.T) {
	frame := buildIPv4UDP(t, []byte("hello world"), false)
	proto, data, err := Extract(frame)
	require.NoError(t, err)
	assert.EqualValues(t, protoUDP, proto)
	assert.Equal(t, "hello world", string(data))
}

func TestExtractUDPVLAN(t *testing.T) {
	frame := buildIPv4UDP(t, []byte("tagged"), true)
	proto, data, err := Extract(frame)
	require.NoError(t, err)
	assert.EqualValues(t, protoUDP, proto)
	assert.Equal(t, "tagged", string(data))
}

func TestExtractTCP(t *testing.T) {
	frame := buildIPv4TCP(t, []byte("payload-bytes"))
	proto, data, err := Extract(frame)
	require.NoError(t, err)
	assert.EqualValues(t, protoTCP, proto)
	assert.Equal(t, "payload-bytes", string(data))
}

func TestExtractRejectsFragments(t *testing.T) {
	frame := buildIPv4UDP(t, []byte("x"), false)
	ip := frame[14:]
	ip[6] |= 0x20 // set MF
	_, _, err := Extract(frame)
	assert.ErrorIs(t, err, ErrFragmented)
}

func TestExtractRejectsNonIP(t *testing.T) {
	frame := make([]byte, 30)
	binary.BigEndian.PutUint16(frame[12:14], 0x86DD) // IPv6 ethertype
	_, _, err := Extract(frame)
	assert.ErrorIs(t, err, ErrNotIP)
}

func TestExtractRejectsUnsupportedProto(t *testing.T) {
	frame := buildIPv4UDP(t, []byte("x"), false)
	ip := frame[14:]
	ip[9] = 1 // ICMP
	_, _, err := Extract(frame)
	assert.ErrorIs(t, err, ErrUnsupportedProto)
}

func TestExtractRejectsTruncated(t *testing.T) {
	frame := buildIPv4UDP(t, []byte("hello"), false)
	_, _, err := Extract(frame[:20])
	assert.ErrorIs(t, err, ErrTruncated)
}
