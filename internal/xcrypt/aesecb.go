package xcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// sealBuffer implements the codec's double-layer AES construction over an
// arbitrary framed buffer (used for per-object frames and for the OMP's
// whole pair table). The first 16 bytes of plaintext
// become the per-object iv; a one-time key is derived from it and the full
// password material, and everything from byte 16 onward is AES-128-CBC
// encrypted under that derived key.
func sealBuffer(pw Password, plaintext []byte) ([]byte, error) {
	if len(plaintext) < 32 {
		return nil, fmt.Errorf("%w: frame too small to encrypt (%d bytes)", ErrCorruption, len(plaintext))
	}

	ecb, err := aes.NewCipher(pw.KeyFull[:])
	if err != nil {
		return nil, fmt.Errorf("aes-256 key schedule: %w", err)
	}

	iv := plaintext[:16]
	enc0 := make([]byte, 16)
	ecb.Encrypt(enc0, iv)

	key := make([]byte, 16)
	for i := 0; i < 16; i++ {
		key[i] = iv[i] ^ enc0[i]
	}

	cbc, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes-128 key schedule: %w", err)
	}
	padded := pkcs7Pad(plaintext[16:], aes.BlockSize)
	out := make([]byte, 16+len(padded))
	copy(out, enc0)
	cipher.NewCBCEncrypter(cbc, iv).CryptBlocks(out[16:], padded)

	return out, nil
}

// openBuffer inverts sealBuffer. The returned buffer's first 16 bytes are
// the recovered iv (== the first 16 bytes of the original plaintext).
func openBuffer(pw Password, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 48 || len(ciphertext)%16 != 0 {
		return nil, fmt.Errorf("%w: malformed ciphertext length %d", ErrCorruption, len(ciphertext))
	}

	ecb, err := aes.NewCipher(pw.KeyFull[:])
	if err != nil {
		return nil, fmt.Errorf("aes-256 key schedule: %w", err)
	}

	enc0 := ciphertext[:16]
	iv := make([]byte, 16)
	ecb.Decrypt(iv, enc0)

	key := make([]byte, 16)
	for i := 0; i < 16; i++ {
		key[i] = enc0[i] ^ iv[i]
	}

	cbc, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes-128 key schedule: %w", err)
	}
	rest := ciphertext[16:]
	plain := make([]byte, len(rest))
	cipher.NewCBCDecrypter(cbc, iv).CryptBlocks(plain, rest)

	unpadded, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
	}

	out := make([]byte, 16+len(unpadded))
	copy(out, iv)
	copy(out[16:], unpadded)
	return out, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+padLen)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := len(data)
	if n == 0 || n%blockSize != 0 {
		return nil, fmt.Errorf("pkcs7: invalid padded length %d", n)
	}
	padLen := int(data[n-1])
	if padLen == 0 || padLen > blockSize || padLen > n {
		return nil, fmt.Errorf("pkcs7: invalid padding byte %d", padLen)
	}
	for _, b := range data[n-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("pkcs7: inconsistent padding")
		}
	}
	return data[:n-padLen], nil
}
