package xcrypt

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// secretPrefix is the only format marker currently accepted. It is a
// reserved marker for a future key-derivation scheme; any other prefix is
// rejected rather than silently misinterpreted.
const secretPrefix = "psw:"

// Password is the fixed 32-byte material derived from a user secret, split
// into a 16-byte AES-128-CBC key half and a 16-byte iv half. KeyFull is the
// same 32 bytes undivided, used as the AES-256-ECB key in the codec's
// per-object key derivation.
type Password struct {
	Key     [16]byte
	Iv      [16]byte
	KeyFull [32]byte
}

// DerivePassword validates the "psw:" prefix and derives the 32-byte
// password material as SHA3-256 of the bytes following the prefix.
func DerivePassword(secret string) (Password, error) {
	var p Password

	if !strings.HasPrefix(secret, secretPrefix) {
		return p, fmt.Errorf("%w: secret key must start with %q", ErrConfigMissing, secretPrefix)
	}
	real := secret[len(secretPrefix):]
	if real == "" {
		return p, fmt.Errorf("%w: secret key is empty", ErrConfigMissing)
	}

	md := sha3.Sum256([]byte(real))
	p.KeyFull = md
	copy(p.Key[:], md[0:16])
	copy(p.Iv[:], md[16:32])
	return p, nil
}
