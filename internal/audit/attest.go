package audit

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/sign"
	signschemes "github.com/cloudflare/circl/sign/schemes"
)

// Algorithm names the signing scheme an attestation was produced with.
type Algorithm string

const (
	AlgoEd25519 Algorithm = "ed25519"
	AlgoMLDSA65 Algorithm = "ML-DSA-65"
	AlgoMLDSA87 Algorithm = "ML-DSA-87"
)

func circlScheme(algo Algorithm) (sign.Scheme, error) {
	s := signschemes.ByName(string(algo))
	if s == nil {
		return nil, fmt.Errorf("audit: unknown signing scheme %q", algo)
	}
	return s, nil
}

// GenerateKey produces a fresh key pair for algo. Ed25519 uses the
// standard library directly; the ML-DSA variants go through CIRCL's
// scheme registry.
func GenerateKey(algo Algorithm) (priv, pub []byte, err error) {
	if algo == AlgoEd25519 {
		pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, fmt.Errorf("audit: generate ed25519 key: %w", err)
		}
		return privKey, pubKey, nil
	}

	s, err := circlScheme(algo)
	if err != nil {
		return nil, nil, err
	}
	pubKey, privKey, err := s.GenerateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("audit: generate %s key: %w", algo, err)
	}
	privBytes, err := privKey.(interface{ MarshalBinary() ([]byte, error) }).MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("audit: marshal %s private key: %w", algo, err)
	}
	pubBytes, err := pubKey.(interface{ MarshalBinary() ([]byte, error) }).MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("audit: marshal %s public key: %w", algo, err)
	}
	return privBytes, pubBytes, nil
}

// Sign signs message (a Merkle root, typically) with the given algorithm
// and raw private key bytes.
func Sign(algo Algorithm, priv, message []byte) ([]byte, error) {
	if algo == AlgoEd25519 {
		if len(priv) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("audit: invalid ed25519 private key size %d", len(priv))
		}
		return ed25519.Sign(ed25519.PrivateKey(priv), message), nil
	}

	s, err := circlScheme(algo)
	if err != nil {
		return nil, err
	}
	key, err := s.UnmarshalBinaryPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("audit: parse %s private key: %w", algo, err)
	}
	return s.Sign(key, message, nil), nil
}

// Verify checks a signature produced by Sign.
func Verify(algo Algorithm, pub, message, signature []byte) (bool, error) {
	if algo == AlgoEd25519 {
		if len(pub) != ed25519.PublicKeySize {
			return false, fmt.Errorf("audit: invalid ed25519 public key size %d", len(pub))
		}
		return ed25519.Verify(ed25519.PublicKey(pub), message, signature), nil
	}

	s, err := circlScheme(algo)
	if err != nil {
		return false, err
	}
	key, err := s.UnmarshalBinaryPublicKey(pub)
	if err != nil {
		return false, fmt.Errorf("audit: parse %s public key: %w", algo, err)
	}
	return s.Verify(key, message, signature, nil), nil
}
