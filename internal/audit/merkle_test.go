package audit

import (
	"errors"
	"testing"

	"github.com/xxwpc/git-remote-xcrypt/internal/xcrypt"
)

type fakeStoreEntry struct {
	kind xcrypt.ObjectKind
	body []byte
}

type fakeStore struct {
	objects map[xcrypt.ObjectId]fakeStoreEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[xcrypt.ObjectId]fakeStoreEntry{}}
}

func (s *fakeStore) ObjectExists(id xcrypt.ObjectId) bool {
	_, ok := s.objects[id]
	return ok
}

func (s *fakeStore) ReadObject(id xcrypt.ObjectId) (xcrypt.ObjectKind, []byte, error) {
	obj, ok := s.objects[id]
	if !ok {
		return 0, nil, errFakeNotFound
	}
	return obj.kind, obj.body, nil
}

func (s *fakeStore) WriteObject(kind xcrypt.ObjectKind, body []byte) (xcrypt.ObjectId, error) {
	id := idFor(body)
	s.objects[id] = fakeStoreEntry{kind, body}
	return id, nil
}

func idFor(body []byte) xcrypt.ObjectId {
	var raw [20]byte
	copy(raw[:], body)
	id, _ := xcrypt.ObjectIdFromRaw(raw[:])
	return id
}

var errFakeNotFound = errors.New("fakeStore: object not found")

func put(s *fakeStore, kind xcrypt.ObjectKind, b byte) xcrypt.ObjectId {
	body := []byte{b}
	id, _ := s.WriteObject(kind, body)
	return id
}

func TestHashObjectIsDeterministicAndKindSensitive(t *testing.T) {
	h1 := HashObject(xcrypt.KindBlob, []byte("hello"))
	h2 := HashObject(xcrypt.KindBlob, []byte("hello"))
	if h1 != h2 {
		t.Fatalf("HashObject not deterministic: %x != %x", h1, h2)
	}

	h3 := HashObject(xcrypt.KindCommit, []byte("hello"))
	if h1 == h3 {
		t.Fatalf("expected different kinds to hash differently")
	}
}

func TestBuildMerkleRootRejectsEmptyInput(t *testing.T) {
	if _, err := BuildMerkleRoot(nil); err == nil {
		t.Fatal("expected error for empty leaf set")
	}
}

func TestBuildMerkleRootIsOrderIndependent(t *testing.T) {
	store := newFakeStore()
	a := put(store, xcrypt.KindBlob, 1)
	b := put(store, xcrypt.KindBlob, 2)
	c := put(store, xcrypt.KindBlob, 3)

	root1, _, err := SealObjects(store, []xcrypt.ObjectId{a, b, c})
	if err != nil {
		t.Fatal(err)
	}
	root2, _, err := SealObjects(store, []xcrypt.ObjectId{c, a, b})
	if err != nil {
		t.Fatal(err)
	}
	if root1 != root2 {
		t.Errorf("Merkle root depends on input order: %s != %s", root1, root2)
	}
}

func TestBuildMerkleRootHandlesOddLeafCount(t *testing.T) {
	store := newFakeStore()
	a := put(store, xcrypt.KindBlob, 1)
	b := put(store, xcrypt.KindBlob, 2)
	c := put(store, xcrypt.KindBlob, 3)

	root, leaves, err := SealObjects(store, []xcrypt.ObjectId{a, b, c})
	if err != nil {
		t.Fatal(err)
	}
	if len(leaves) != 3 {
		t.Fatalf("got %d leaves, want 3", len(leaves))
	}
	if root == "" {
		t.Fatal("expected a non-empty root")
	}
}

func TestVerifyObjectsDetectsDrift(t *testing.T) {
	store := newFakeStore()
	a := put(store, xcrypt.KindBlob, 1)
	b := put(store, xcrypt.KindBlob, 2)

	root, _, err := SealObjects(store, []xcrypt.ObjectId{a, b})
	if err != nil {
		t.Fatal(err)
	}

	ok, _, err := VerifyObjects(store, []xcrypt.ObjectId{a, b}, root)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected verification against its own root to succeed")
	}

	c := put(store, xcrypt.KindBlob, 3)
	ok, _, err = VerifyObjects(store, []xcrypt.ObjectId{a, b, c}, root)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected verification to detect a changed object set")
	}
}

func TestSealObjectsPropagatesReadErrors(t *testing.T) {
	store := newFakeStore()
	missing := idFor([]byte{99})

	if _, _, err := SealObjects(store, []xcrypt.ObjectId{missing}); err == nil {
		t.Fatal("expected an error for a missing object")
	}
}
