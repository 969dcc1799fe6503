package wire

import (
	"bytes"
	"math/rand"
	"testing"
)

// TestEncodeCommandLiteralBytes reproduces spec.md's worked example:
// encoding {type=1, code=0x1002, txid=42, params=[1]} must produce
// this exact byte sequence.
func TestEncodeCommandLiteralBytes(t *testing.T) {
	got := EncodeCommand(0x1002, 42, []uint32{1})

	want := []byte{
		0x10, 0x00, 0x00, 0x00,
		0x01, 0x00,
		0x02, 0x10,
		0x2A, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
	}

	if !bytes.Equal(got, want) {
		t.Fatalf("got % x, want % x", got, want)
	}

	c, err := DecodeContainer(got)
	if err != nil {
		t.Fatalf("decode: %s", err)
	}

	if c.Type != TypeCommand || c.Code != 0x1002 || c.TxID != 42 {
		t.Fatalf("decoded fields mismatch: %+v", c)
	}

	if len(c.Params) != 1 || c.Params[0] != 1 {
		t.Fatalf("decoded params mismatch: %+v", c.Params)
	}
}

func TestDecodeContainerMalformed(t *testing.T) {
	_, err := DecodeContainer([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected malformed error on truncated header")
	}

	hdr := EncodeCommand(0x1001, 1, nil)
	_, err = DecodeContainer(hdr[:HeaderSize-1])
	if err == nil {
		t.Fatal("expected malformed error on truncated header bytes")
	}
}

func TestContainerRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		n := rng.Intn(MaxParams + 1)
		params := make([]uint32, n)
		for j := range params {
			params[j] = rng.Uint32()
		}

		code := uint16(rng.Intn(0xFFFF))
		txid := rng.Uint32()

		var b []byte
		if rng.Intn(2) == 0 {
			b = EncodeCommand(code, txid, params)
		} else {
			b = EncodeResponse(code, txid, params)
		}

		c, err := DecodeContainer(b)
		if err != nil {
			t.Fatalf("decode: %s", err)
		}

		if c.Code != code || c.TxID != txid || len(c.Params) != len(params) {
			t.Fatalf("round trip mismatch: got %+v", c)
		}

		for j := range params {
			if c.Params[j] != params[j] {
				t.Fatalf("param %d mismatch: got %d want %d", j, c.Params[j], params[j])
			}
		}

		if !bytes.Equal(c.Encode(), b) {
			t.Fatalf("re-encode mismatch")
		}
	}
}

func TestDataContainerRoundTrip(t *testing.T) {
	payload := []byte("hello, MTP world")
	b := EncodeData(0x1009, 7, payload)

	c, err := DecodeContainer(b)
	if err != nil {
		t.Fatalf("decode: %s", err)
	}

	if c.Type != TypeData || !bytes.Equal(c.Payload, payload) {
		t.Fatalf("payload mismatch: %+v", c)
	}
}
