package wire

import (
	"math/rand"
	"strings"
	"testing"
)

func TestEncodeDecodeStringEmpty(t *testing.T) {
	b := EncodeString("")
	if len(b) != 1 || b[0] != 0 {
		t.Fatalf("empty string should encode as single zero byte, got % x", b)
	}

	s, n, err := DecodeString(b)
	if err != nil {
		t.Fatalf("decode: %s", err)
	}
	if s != "" || n != 1 {
		t.Fatalf("got %q, %d", s, n)
	}
}

func TestStringRoundTrip(t *testing.T) {
	cases := []string{
		"upload.txt",
		"Hello, MTP World! \U0001F30D",
		strings.Repeat("a", 100),
	}

	for _, s := range cases {
		b := EncodeString(s)
		got, n, err := DecodeString(b)
		if err != nil {
			t.Fatalf("%q: decode: %s", s, err)
		}
		if n != len(b) {
			t.Fatalf("%q: consumed %d, want %d", s, n, len(b))
		}
		if got != s {
			t.Fatalf("round trip mismatch: got %q want %q", got, s)
		}
	}
}

func TestStringRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 _-."

	for i := 0; i < 200; i++ {
		n := rng.Intn(120)
		buf := make([]byte, n)
		for j := range buf {
			buf[j] = alphabet[rng.Intn(len(alphabet))]
		}
		s := string(buf)

		enc := EncodeString(s)
		got, consumed, err := DecodeString(enc)
		if err != nil {
			t.Fatalf("decode %q: %s", s, err)
		}
		if consumed != len(enc) {
			t.Fatalf("consumed %d want %d", consumed, len(enc))
		}
		if got != s {
			t.Fatalf("round trip mismatch: got %q want %q", got, s)
		}
	}
}

func TestU32ArrayRoundTrip(t *testing.T) {
	elems := []uint32{0, 1, 0xFFFFFFFF, 42, 1000000}
	b := EncodeU32Array(elems)

	got, n, err := DecodeU32Array(b)
	if err != nil {
		t.Fatalf("decode: %s", err)
	}
	if n != len(b) {
		t.Fatalf("consumed %d want %d", n, len(b))
	}
	if len(got) != len(elems) {
		t.Fatalf("len mismatch: got %d want %d", len(got), len(elems))
	}
	for i := range elems {
		if got[i] != elems[i] {
			t.Fatalf("elem %d: got %d want %d", i, got[i], elems[i])
		}
	}
}

func TestDecodeU32ArrayTruncated(t *testing.T) {
	b := EncodeU32Array([]uint32{1, 2, 3})
	_, _, err := DecodeU32Array(b[:len(b)-1])
	if err == nil {
		t.Fatal("expected malformed error on truncated array")
	}
}

func TestU16ArrayRoundTrip(t *testing.T) {
	elems := []uint16{0, 0x1001, 0x9805, 0xFFFF}
	b := EncodeU16Array(elems)

	got, n, err := DecodeU16Array(b)
	if err != nil {
		t.Fatalf("decode: %s", err)
	}
	if n != len(b) {
		t.Fatalf("consumed %d want %d", n, len(b))
	}
	if len(got) != len(elems) {
		t.Fatalf("len mismatch: got %d want %d", len(got), len(elems))
	}
	for i := range elems {
		if got[i] != elems[i] {
			t.Fatalf("elem %d: got %d want %d", i, got[i], elems[i])
		}
	}
}

func TestDecodeU16ArrayTruncated(t *testing.T) {
	b := EncodeU16Array([]uint16{1, 2, 3})
	_, _, err := DecodeU16Array(b[:len(b)-1])
	if err == nil {
		t.Fatal("expected malformed error on truncated array")
	}
}
