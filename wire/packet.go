//----------------------------------------------------------------------
// Framed packet codec (spec.md §4.A).
//
// Wire format: a 4-byte big-endian packet_length, a 1-byte padding
// length P, the payload (packet_length - P - 1 bytes), then P bytes of
// (unauthenticated, may-be-zero) padding. Invariant: P = 8 -
// (len(payload) mod 8), so P is in [1,8] and the payload+padding
// region is always a multiple of 8 bytes.
//----------------------------------------------------------------------

package wire

import (
	"encoding/binary"
	"io"

	gerr "github.com/bfix-edu/sshcore/errors"
)

// MaxFrameLen bounds the packet_length field to keep a malicious or
// corrupted peer from forcing an unbounded allocation.
const MaxFrameLen = 1 << 20 // 1 MiB

// paddingLen returns P = 8 - (n mod 8), always in [1, 8].
func paddingLen(n int) int {
	return 8 - (n % 8)
}

// Encode frames payload per spec.md §4.A and writes it to w, flushing
// on success.
func Encode(w io.Writer, payload []byte) error {
	pad := paddingLen(len(payload))
	packetLen := len(payload) + pad + 1
	if packetLen > MaxFrameLen {
		return gerr.New(gerr.ErrMalformedFrame, "encoded frame too large: %d bytes", packetLen)
	}

	buf := make([]byte, 4+packetLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(packetLen))
	buf[4] = byte(pad)
	copy(buf[5:5+len(payload)], payload)
	// buf[5+len(payload):] is already zero (make zero-initializes)

	return WriteAll(w, buf)
}

// Decode reads one frame from r per spec.md §4.A and returns its
// payload, discarding the padding.
func Decode(r io.Reader) ([]byte, error) {
	lenBuf, err := ReadExact(r, 4)
	if err != nil {
		return nil, err
	}
	packetLen := int(binary.BigEndian.Uint32(lenBuf))
	if packetLen > MaxFrameLen {
		return nil, gerr.New(gerr.ErrMalformedFrame, "frame length %d exceeds max %d", packetLen, MaxFrameLen)
	}

	padBuf, err := ReadExact(r, 1)
	if err != nil {
		return nil, err
	}
	pad := int(padBuf[0])

	if packetLen < pad+1 {
		return nil, gerr.New(gerr.ErrMalformedFrame, "packet_length %d < padding_length+1 %d", packetLen, pad+1)
	}
	payloadLen := packetLen - pad - 1

	payload, err := ReadExact(r, payloadLen)
	if err != nil {
		return nil, err
	}
	if _, err := ReadExact(r, pad); err != nil {
		return nil, err
	}
	return payload, nil
}
