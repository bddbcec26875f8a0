package xcrypt

import (
	"bytes"
	"testing"
)

// buildPlainGraph writes a small commit/tree/blob graph (one gitlink entry
// included) into store and returns the root commit's plaintext id.
func buildPlainGraph(t *testing.T, store *memStore) ObjectId {
	t.Helper()

	blobID, err := store.WriteObject(KindBlob, []byte("hello from a tracked file\n"))
	if err != nil {
		t.Fatal(err)
	}

	link := rawID(0x99, ShortSize)

	var treeBody bytes.Buffer
	treeBody.WriteString("100644 file.txt\x00")
	treeBody.Write(blobID[:ShortSize])
	treeBody.WriteString("160000 vendored\x00")
	treeBody.Write(link[:ShortSize])
	treeID, err := store.WriteObject(KindTree, treeBody.Bytes())
	if err != nil {
		t.Fatal(err)
	}

	commitBody := []byte("tree " + treeID.String() + "\n" +
		"author a <a@example.com> 1700000000 +0000\n" +
		"committer a <a@example.com> 1700000000 +0000\n\n" +
		"initial commit\n")
	commitID, err := store.WriteObject(KindCommit, commitBody)
	if err != nil {
		t.Fatal(err)
	}

	return commitID
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	pw := testPassword(t)
	plainStore := newMemStore()
	root := buildPlainGraph(t, plainStore)

	cipherStore := newMemStore()
	pairsEnc, err := LoadPairTable(t.TempDir()+"/enc.omp", pw, cipherStore)
	if err != nil {
		t.Fatal(err)
	}

	// The encryptor reads plaintext objects but writes into the
	// ciphertext store; it only ever follows refs through plainStore.
	enc := &GraphEncryptor{Store: crossStore{read: plainStore, write: cipherStore}, Pairs: pairsEnc, Password: pw}
	cipherRoots, err := enc.EncryptRoots([]ObjectId{root})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	cipherRoot := cipherRoots[0]
	if cipherRoot == root {
		t.Fatal("ciphertext root id must differ from the plaintext root id")
	}
	if !cipherStore.ObjectExists(cipherRoot) {
		t.Fatal("ciphertext root was not written to the store")
	}

	decryptedStore := newMemStore()
	pairsDec, err := LoadPairTable(t.TempDir()+"/dec.omp", pw, decryptedStore)
	if err != nil {
		t.Fatal(err)
	}
	dec := &GraphDecryptor{Store: crossStore{read: cipherStore, write: decryptedStore}, Pairs: pairsDec, Password: pw}
	plainRoots, err := dec.DecryptRoots([]ObjectId{cipherRoot})
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}

	if plainRoots[0] != root {
		t.Fatalf("recovered root id %x does not match original %x", plainRoots[0], root)
	}

	origKind, origBody, err := plainStore.ReadObject(root)
	if err != nil {
		t.Fatal(err)
	}
	gotKind, gotBody, err := decryptedStore.ReadObject(root)
	if err != nil {
		t.Fatal(err)
	}
	if gotKind != origKind || !bytes.Equal(gotBody, origBody) {
		t.Fatalf("recovered commit does not match original: kind %v vs %v", gotKind, origKind)
	}

	// The commit-bytes check above only covers the tree transitively
	// (decryptTree recovers it via its self-blob sentinel); assert the
	// tree itself round-tripped byte-for-byte, gitlink entry included.
	commitRefs, err := ParseCommitRefs(origBody)
	if err != nil {
		t.Fatal(err)
	}
	origTreeKind, origTreeBody, err := plainStore.ReadObject(commitRefs.Tree)
	if err != nil {
		t.Fatal(err)
	}
	gotTreeKind, gotTreeBody, err := decryptedStore.ReadObject(commitRefs.Tree)
	if err != nil {
		t.Fatal(err)
	}
	if gotTreeKind != origTreeKind || !bytes.Equal(gotTreeBody, origTreeBody) {
		t.Fatalf("recovered tree does not match original: kind %v vs %v", gotTreeKind, origTreeKind)
	}
}

// crossStore reads from one store and writes to another, letting the
// graph walkers treat "the plaintext side" and "the ciphertext side" as a
// single Store while keeping the two object spaces physically separate.
type crossStore struct {
	read  *memStore
	write *memStore
}

func (c crossStore) ObjectExists(id ObjectId) bool {
	return c.read.ObjectExists(id) || c.write.ObjectExists(id)
}

func (c crossStore) ReadObject(id ObjectId) (ObjectKind, []byte, error) {
	return c.read.ReadObject(id)
}

func (c crossStore) WriteObject(kind ObjectKind, body []byte) (ObjectId, error) {
	return c.write.WriteObject(kind, body)
}
