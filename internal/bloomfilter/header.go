package bloomfilter

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// HeaderLength is the fixed size of the on-disk header. It is an absolute
// compatibility contract: every Bloom file ever written starts with
// exactly this many bytes before the bit payload begins.
const HeaderLength = 4096

// encodeHeader renders p as the NUL-padded 4096-byte header block.
func encodeHeader(p Params) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "IP_PROTOCOL_NUMBER = %d\n", p.IPProtocol)
	fmt.Fprintf(&buf, "TCP_IP_PORT_NUM = %d\n", p.Port)
	fmt.Fprintf(&buf, "BITLENGTH = %d\n", p.BitLength)
	fmt.Fprintf(&buf, "NUM_HASHES = %d\n", p.NumHashes)
	fmt.Fprintf(&buf, "MIN_NGRAM_SIZE = %d\n", p.MinNgram)
	fmt.Fprintf(&buf, "MAX_NGRAM_SIZE = %d\n", p.MaxNgram)
	fmt.Fprintf(&buf, "NUM_PAYLOAD_BYTES_PROCESSED = %d\n", p.BytesProcessed)

	if buf.Len() > HeaderLength {
		return nil, fmt.Errorf("bloomfilter: header %d bytes exceeds fixed %d-byte region", buf.Len(), HeaderLength)
	}

	header := make([]byte, HeaderLength)
	copy(header, buf.Bytes())
	return header, nil
}

// decodeHeader parses a 4096-byte header block into Params. Unrecognized
// keys are ignored, matching the source's tolerant property-bag parsing.
func decodeHeader(header []byte) (Params, error) {
	if len(header) != HeaderLength {
		return Params{}, fmt.Errorf("bloomfilter: header must be exactly %d bytes, got %d", HeaderLength, len(header))
	}

	text := string(bytes.TrimRight(header, "\x00"))
	var p Params

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "IP_PROTOCOL_NUMBER":
			p.IPProtocol, _ = strconv.Atoi(value)
		case "TCP_IP_PORT_NUM":
			p.Port, _ = strconv.Atoi(value)
		case "BITLENGTH":
			p.BitLength, _ = strconv.ParseUint(value, 10, 64)
		case "NUM_HASHES":
			n, _ := strconv.Atoi(value)
			p.NumHashes = n
		case "MIN_NGRAM_SIZE":
			p.MinNgram, _ = strconv.Atoi(value)
		case "MAX_NGRAM_SIZE":
			p.MaxNgram, _ = strconv.Atoi(value)
		case "NUM_PAYLOAD_BYTES_PROCESSED":
			p.BytesProcessed, _ = strconv.ParseUint(value, 10, 64)
		}
	}

	if p.BitLength == 0 || p.BitLength%8 != 0 {
		return Params{}, fmt.Errorf("bloomfilter: header has invalid BITLENGTH %d", p.BitLength)
	}
	if p.NumHashes < 1 || p.NumHashes > MaxHashes {
		return Params{}, fmt.Errorf("bloomfilter: header has invalid NUM_HASHES %d", p.NumHashes)
	}

	return p, nil
}
