package xcrypt

import (
	"bytes"
	"testing"
)

func testPassword(t *testing.T) Password {
	p, err := DerivePassword("psw:aes-test-secret")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestSealOpenBufferRoundTrip(t *testing.T) {
	pw := testPassword(t)

	sizes := []int{32, 33, 47, 48, 64, 127, 4096}
	for _, n := range sizes {
		plain := bytes.Repeat([]byte{0xAB}, n)
		// Keep the first 16 bytes varied so each case exercises a distinct iv.
		copy(plain, []byte("0123456789abcdef"))

		sealed, err := sealBuffer(pw, plain)
		if err != nil {
			t.Fatalf("size %d: seal: %v", n, err)
		}
		if len(sealed)%16 != 0 {
			t.Fatalf("size %d: sealed length %d not block-aligned", n, len(sealed))
		}

		opened, err := openBuffer(pw, sealed)
		if err != nil {
			t.Fatalf("size %d: open: %v", n, err)
		}
		if !bytes.Equal(opened, plain) {
			t.Fatalf("size %d: round trip mismatch", n)
		}
	}
}

func TestSealBufferRejectsShortInput(t *testing.T) {
	pw := testPassword(t)
	if _, err := sealBuffer(pw, make([]byte, 31)); err == nil {
		t.Fatal("expected error for sub-32-byte input")
	}
}

func TestOpenBufferDetectsTamper(t *testing.T) {
	pw := testPassword(t)
	plain := bytes.Repeat([]byte{0x42}, 64)
	sealed, err := sealBuffer(pw, plain)
	if err != nil {
		t.Fatal(err)
	}

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xFF

	if _, err := openBuffer(pw, tampered); err == nil {
		t.Fatal("expected padding/checksum failure on tampered ciphertext")
	}
}

func TestOpenBufferWrongPassword(t *testing.T) {
	pw := testPassword(t)
	other, err := DerivePassword("psw:not-the-same-secret")
	if err != nil {
		t.Fatal(err)
	}

	plain := bytes.Repeat([]byte{0x11}, 48)
	sealed, err := sealBuffer(pw, plain)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := openBuffer(other, sealed); err == nil {
		t.Fatal("expected failure opening with the wrong password")
	}
}
