package xcrypt

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/sha3"
)

// Exister reports whether an object id is present in the local object
// store. The pair table uses it to invalidate stale entries: a mapping
// whose target was garbage-collected out of the store is as good as
// absent.
type Exister interface {
	ObjectExists(id ObjectId) bool
}

// PairTable is the bidirectional, on-disk, encrypted plaintext-id <->
// ciphertext-id map threaded through one push/fetch/clone run. Every
// insert is reflected in both directions so either graph walker can look
// an id up regardless of which side it is standing on.
type PairTable struct {
	path     string
	pw       Password
	store    Exister
	pairs    map[ObjectId]ObjectId
	modified bool
}

const pairRecordSize = 64 // two 32-byte ids
const pairFileSuffix = 48 // trailing SHA3-256 checksum plus the full PKCS#7 padding block

// OmpPath returns the on-disk path of the pair table for a remote named
// remoteName, rooted at gitDir (normally ".git").
func OmpPath(gitDir, remoteName string) string {
	return filepath.Join(gitDir, "xcrypt", remoteName+".omp")
}

// LoadPairTable opens (or, if absent, initializes empty) the pair table at
// path, decrypting it with pw and verifying its trailing checksum.
func LoadPairTable(path string, pw Password, store Exister) (*PairTable, error) {
	t := &PairTable{
		path:  path,
		pw:    pw,
		store: store,
		pairs: make(map[ObjectId]ObjectId),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("%w: reading pair table: %v", ErrStore, err)
	}
	if len(data)%64 != 32+16 {
		return nil, fmt.Errorf("%w: pair table length %d is not 48 (mod 64)", ErrCorruption, len(data))
	}

	plain, err := openBuffer(pw, data)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypting pair table: %v", ErrCorruption, err)
	}
	if len(plain) != len(data)-16 {
		return nil, fmt.Errorf("%w: pair table decrypted to unexpected length", ErrCorruption)
	}

	payload := plain[:len(plain)-32]
	checksum := plain[len(plain)-32:]
	got := sha3.Sum256(payload)
	if !bytesEqual(got[:], checksum) {
		return nil, fmt.Errorf("%w: pair table checksum mismatch", ErrCorruption)
	}

	for off := 0; off+pairRecordSize <= len(payload); off += pairRecordSize {
		var k, v ObjectId
		copy(k[:], payload[off:off+32])
		copy(v[:], payload[off+32:off+64])
		if err := t.insertOne(k, v); err != nil {
			return nil, err
		}
		if err := t.insertOne(v, k); err != nil {
			return nil, err
		}
	}
	t.modified = false

	return t, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Find looks up id and returns its counterpart, honoring the stale-entry
// guard: a mapping is only returned if the counterpart still exists in
// the local store.
func (t *PairTable) Find(id ObjectId) (ObjectId, bool) {
	v, ok := t.pairs[id]
	if !ok {
		return ObjectId{}, false
	}
	if t.store != nil && !t.store.ObjectExists(v) {
		return ObjectId{}, false
	}
	return v, true
}

func (t *PairTable) insertOne(a, b ObjectId) error {
	if existing, ok := t.pairs[a]; ok {
		if existing != b {
			return fmt.Errorf("%w: pair table conflict for %x: have %x, got %x", ErrCorruption, a, existing, b)
		}
		return nil
	}
	t.pairs[a] = b
	t.modified = true
	return nil
}

// Insert records a <-> b in both directions.
func (t *PairTable) Insert(a, b ObjectId) error {
	if err := t.insertOne(a, b); err != nil {
		return err
	}
	return t.insertOne(b, a)
}

// Store writes the pair table back to disk if it has changed since it was
// loaded, via a tmp-file-then-rename for atomicity. It is a no-op when
// nothing was inserted.
func (t *PairTable) Store() error {
	if !t.modified {
		return nil
	}

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating pair table directory: %v", ErrStore, err)
	}

	seen := make(map[ObjectId]bool, len(t.pairs))
	payload := make([]byte, 0, len(t.pairs)/2*pairRecordSize)
	for k, v := range t.pairs {
		if seen[k] || seen[v] {
			continue
		}
		seen[k] = true
		seen[v] = true
		payload = append(payload, k[:]...)
		payload = append(payload, v[:]...)
	}

	checksum := sha3.Sum256(payload)
	plain := append(payload, checksum[:]...)

	sealed, err := sealBuffer(t.pw, plain)
	if err != nil {
		return fmt.Errorf("%w: sealing pair table: %v", ErrCorruption, err)
	}

	tmpPath := t.path + ".tmp"
	if err := os.WriteFile(tmpPath, sealed, 0o600); err != nil {
		return fmt.Errorf("%w: writing pair table: %v", ErrStore, err)
	}
	if err := os.Rename(tmpPath, t.path); err != nil {
		return fmt.Errorf("%w: renaming pair table into place: %v", ErrStore, err)
	}

	t.modified = false
	return nil
}
