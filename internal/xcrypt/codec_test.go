package xcrypt

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeObjectRoundTrip(t *testing.T) {
	pw := testPassword(t)

	cases := [][]byte{
		{},
		[]byte("hello, world"),
		bytes.Repeat([]byte("The quick brown fox jumps over the lazy dog. "), 200),
	}

	for i, plain := range cases {
		var id ObjectId
		id[0] = byte(i + 1)
		id[19] = 0xFE

		ciphertext, err := EncodeObject(pw, id, plain)
		if err != nil {
			t.Fatalf("case %d: encode: %v", i, err)
		}

		gotID, gotPlain, err := DecodeObject(pw, ciphertext)
		if err != nil {
			t.Fatalf("case %d: decode: %v", i, err)
		}
		if gotID != id {
			t.Fatalf("case %d: id mismatch: got %x want %x", i, gotID, id)
		}
		if !bytes.Equal(gotPlain, plain) {
			t.Fatalf("case %d: plaintext mismatch", i)
		}
	}
}

func TestEncodeObjectRejectsOversizedInput(t *testing.T) {
	pw := testPassword(t)
	var id ObjectId

	if _, err := EncodeObject(pw, id, nil); err != nil {
		t.Fatalf("unexpected error encoding empty object: %v", err)
	}

	_, err := encodeFrame(id, make([]byte, MaxPlainSize+1))
	if err == nil {
		t.Fatal("expected error for input exceeding MaxPlainSize")
	}
}

func TestDecodeObjectRejectsShortFrame(t *testing.T) {
	pw := testPassword(t)
	if _, _, err := DecodeObject(pw, make([]byte, 47)); err == nil {
		t.Fatal("expected error for undersized ciphertext")
	}
}

// TestSetCompressionLevelStillRoundTrips sets several levels a local config
// file can request and checks that encoding still round-trips after each.
// Pooled encoders keep the level they were built with, so a later
// iteration may reuse an encoder built at an earlier level.
func TestSetCompressionLevelStillRoundTrips(t *testing.T) {
	defer SetCompressionLevel(3)

	pw := testPassword(t)
	var id ObjectId
	id[0] = 0x42

	for _, level := range []int{1, 3, 9, 19} {
		SetCompressionLevel(level)

		plain := bytes.Repeat([]byte("configured compression level round trip "), 50)
		ciphertext, err := EncodeObject(pw, id, plain)
		if err != nil {
			t.Fatalf("level %d: encode: %v", level, err)
		}
		gotID, gotPlain, err := DecodeObject(pw, ciphertext)
		if err != nil {
			t.Fatalf("level %d: decode: %v", level, err)
		}
		if gotID != id || !bytes.Equal(gotPlain, plain) {
			t.Fatalf("level %d: round trip mismatch", level)
		}
	}
}
