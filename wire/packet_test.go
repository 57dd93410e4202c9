package wire

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 7, 8, 9, 63, 64, 65, 1000}
	for _, n := range sizes {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i)
		}
		var buf bytes.Buffer
		if err := Encode(&buf, payload); err != nil {
			t.Fatalf("encode(%d): %v", n, err)
		}
		got, err := Decode(&buf)
		if err != nil {
			t.Fatalf("decode(%d): %v", n, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("round-trip mismatch for len %d", n)
		}
	}
}

func TestEncodeWireLength(t *testing.T) {
	// Payload length 0 encodes to a 13-byte frame: 4-byte length,
	// pad_len = 8, no payload, 8 padding bytes.
	var buf bytes.Buffer
	if err := Encode(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 13 {
		t.Fatalf("expected 13-byte frame for empty payload, got %d", buf.Len())
	}
	if buf.Bytes()[4] != 8 {
		t.Fatalf("expected pad_len=8, got %d", buf.Bytes()[4])
	}

	for _, n := range []int{1, 7, 8, 9, 16, 17} {
		payload := make([]byte, n)
		buf.Reset()
		if err := Encode(&buf, payload); err != nil {
			t.Fatal(err)
		}
		total := buf.Len()
		if (total-5)%8 != 0 {
			t.Fatalf("len %d: payload+padding length %d is not a multiple of 8", n, total-5)
		}
	}
}

func TestDecodeMalformedFrame(t *testing.T) {
	// packet_length < padding_length + 1
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 2}) // packet_length = 2
	buf.Write([]byte{5})          // padding_length = 5 > packet_length-1
	if _, err := Decode(&buf); err == nil {
		t.Fatal("expected MalformedFrame error")
	}
}

func TestDecodeShortRead(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0})
	if _, err := Decode(&buf); err == nil {
		t.Fatal("expected short read error")
	}
}

func TestDecodeOversizeFrame(t *testing.T) {
	var buf bytes.Buffer
	big := uint32(MaxFrameLen + 1)
	buf.Write([]byte{byte(big >> 24), byte(big >> 16), byte(big >> 8), byte(big)})
	if _, err := Decode(&buf); err == nil {
		t.Fatal("expected MalformedFrame for oversize packet_length")
	}
}
