package audit

import "testing"

func TestEd25519SignAndVerifyRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKey(AlgoEd25519)
	if err != nil {
		t.Fatal(err)
	}

	msg := []byte("a merkle root")
	sig, err := Sign(AlgoEd25519, priv, msg)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := Verify(AlgoEd25519, pub, msg, sig)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}
}

func TestEd25519VerifyRejectsTamperedMessage(t *testing.T) {
	priv, pub, err := GenerateKey(AlgoEd25519)
	if err != nil {
		t.Fatal(err)
	}

	sig, err := Sign(AlgoEd25519, priv, []byte("original"))
	if err != nil {
		t.Fatal(err)
	}

	ok, err := Verify(AlgoEd25519, pub, []byte("tampered"), sig)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected verification to fail on a tampered message")
	}
}

func TestEd25519RejectsWrongKeySize(t *testing.T) {
	if _, err := Sign(AlgoEd25519, []byte("too short"), []byte("msg")); err == nil {
		t.Fatal("expected error for undersized private key")
	}
	if _, err := Verify(AlgoEd25519, []byte("too short"), []byte("msg"), []byte("sig")); err == nil {
		t.Fatal("expected error for undersized public key")
	}
}

func TestMLDSA65SignAndVerifyRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKey(AlgoMLDSA65)
	if err != nil {
		t.Fatal(err)
	}

	msg := []byte("a merkle root, post-quantum edition")
	sig, err := Sign(AlgoMLDSA65, priv, msg)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := Verify(AlgoMLDSA65, pub, msg, sig)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected ML-DSA-65 signature to verify")
	}
}

func TestMLDSA87SignAndVerifyRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKey(AlgoMLDSA87)
	if err != nil {
		t.Fatal(err)
	}

	msg := []byte("a merkle root, stronger post-quantum edition")
	sig, err := Sign(AlgoMLDSA87, priv, msg)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := Verify(AlgoMLDSA87, pub, msg, sig)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected ML-DSA-87 signature to verify")
	}
}

func TestUnknownAlgorithmIsRejected(t *testing.T) {
	if _, _, err := GenerateKey("not-a-real-scheme"); err == nil {
		t.Fatal("expected error for unknown signing scheme")
	}
}

func TestMLDSASignRejectsMismatchedKeyPair(t *testing.T) {
	priv65, _, err := GenerateKey(AlgoMLDSA65)
	if err != nil {
		t.Fatal(err)
	}
	_, pub87, err := GenerateKey(AlgoMLDSA87)
	if err != nil {
		t.Fatal(err)
	}

	sig, err := Sign(AlgoMLDSA65, priv65, []byte("msg"))
	if err != nil {
		t.Fatal(err)
	}

	ok, _ := Verify(AlgoMLDSA87, pub87, []byte("msg"), sig)
	if ok {
		t.Fatal("expected an ML-DSA-65 signature not to verify against an ML-DSA-87 key")
	}
}
