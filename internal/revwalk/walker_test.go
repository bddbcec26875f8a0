package revwalk

import (
	"errors"
	"reflect"
	"testing"

	"github.com/xxwpc/git-remote-xcrypt/internal/xcrypt"
)

// fakeGraph is a ParentLister over a hand-built commit->parents map, used
// to exercise Walker without an xcrypt.Store behind it.
type fakeGraph map[xcrypt.ObjectId][]xcrypt.ObjectId

func (g fakeGraph) Parents(id xcrypt.ObjectId) ([]xcrypt.ObjectId, error) {
	return g[id], nil
}

func id(b byte) xcrypt.ObjectId {
	var v xcrypt.ObjectId
	v[0] = b
	return v
}

// fakeStore is a trivial in-memory xcrypt.Store for exercising
// StoreParentLister without a real object store.
type fakeStore struct {
	objects map[xcrypt.ObjectId]struct {
		kind xcrypt.ObjectKind
		body []byte
	}
	next byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[xcrypt.ObjectId]struct {
		kind xcrypt.ObjectKind
		body []byte
	}{}}
}

func (s *fakeStore) ObjectExists(id xcrypt.ObjectId) bool {
	_, ok := s.objects[id]
	return ok
}

func (s *fakeStore) ReadObject(id xcrypt.ObjectId) (xcrypt.ObjectKind, []byte, error) {
	obj, ok := s.objects[id]
	if !ok {
		return 0, nil, errNotFound
	}
	return obj.kind, obj.body, nil
}

func (s *fakeStore) WriteObject(kind xcrypt.ObjectKind, body []byte) (xcrypt.ObjectId, error) {
	s.next++
	newID := id(s.next)
	s.objects[newID] = struct {
		kind xcrypt.ObjectKind
		body []byte
	}{kind, body}
	return newID, nil
}

var errNotFound = errors.New("fakeStore: object not found")

func TestWalkerWalksFullAncestryWithNoHides(t *testing.T) {
	c1, c2, c3 := id(1), id(2), id(3)
	graph := fakeGraph{
		c3: {c2},
		c2: {c1},
		c1: nil,
	}

	w := NewWalker(graph)
	w.Push(c3)

	got, err := w.Walk()
	if err != nil {
		t.Fatal(err)
	}
	want := []xcrypt.ObjectId{c3, c2, c1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWalkerExcludesHiddenAncestry(t *testing.T) {
	// c1 <- c2 <- c3 (head), with c2 already known locally.
	c1, c2, c3 := id(1), id(2), id(3)
	graph := fakeGraph{
		c3: {c2},
		c2: {c1},
		c1: nil,
	}

	w := NewWalker(graph)
	w.Push(c3)
	if err := w.Hide(c2); err != nil {
		t.Fatal(err)
	}

	got, err := w.Walk()
	if err != nil {
		t.Fatal(err)
	}
	want := []xcrypt.ObjectId{c3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWalkerHandlesMergeCommitsWithoutDuplicates(t *testing.T) {
	// base <- left, base <- right, merge <- left, right
	base, left, right, merge := id(1), id(2), id(3), id(4)
	graph := fakeGraph{
		merge: {left, right},
		left:  {base},
		right: {base},
		base:  nil,
	}

	w := NewWalker(graph)
	w.Push(merge)

	got, err := w.Walk()
	if err != nil {
		t.Fatal(err)
	}

	seen := map[xcrypt.ObjectId]int{}
	for _, g := range got {
		seen[g]++
	}
	for _, want := range []xcrypt.ObjectId{base, left, right, merge} {
		if seen[want] != 1 {
			t.Errorf("expected %x exactly once, got %d", want, seen[want])
		}
	}
}

func TestWalkerMultipleRootsShareHiddenAncestry(t *testing.T) {
	base, a, b := id(1), id(2), id(3)
	graph := fakeGraph{
		a:    {base},
		b:    {base},
		base: nil,
	}

	w := NewWalker(graph)
	w.Push(a)
	w.Push(b)
	if err := w.Hide(base); err != nil {
		t.Fatal(err)
	}

	got, err := w.Walk()
	if err != nil {
		t.Fatal(err)
	}
	want := []xcrypt.ObjectId{a, b}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestStoreParentListerRejectsNonCommit(t *testing.T) {
	store := newFakeStore()
	blobID, err := store.WriteObject(xcrypt.KindBlob, []byte("not a commit"))
	if err != nil {
		t.Fatal(err)
	}

	lister := StoreParentLister{Store: store}
	if _, err := lister.Parents(blobID); err == nil {
		t.Fatal("expected error resolving parents of a non-commit object")
	}
}

func TestStoreParentListerReadsParents(t *testing.T) {
	store := newFakeStore()
	treeID, err := store.WriteObject(xcrypt.KindTree, []byte("100644 f.txt\x00"+string(make([]byte, 20))))
	if err != nil {
		t.Fatal(err)
	}
	parentID, err := store.WriteObject(xcrypt.KindCommit, []byte("tree "+treeID.String()+"\nauthor a <a@b> 1 +0000\n\nfirst\n"))
	if err != nil {
		t.Fatal(err)
	}
	childBody := []byte("tree " + treeID.String() + "\nparent " + parentID.String() + "\nauthor a <a@b> 2 +0000\n\nsecond\n")
	childID, err := store.WriteObject(xcrypt.KindCommit, childBody)
	if err != nil {
		t.Fatal(err)
	}

	lister := StoreParentLister{Store: store}
	parents, err := lister.Parents(childID)
	if err != nil {
		t.Fatal(err)
	}
	if len(parents) != 1 || parents[0] != parentID {
		t.Errorf("got %v, want [%s]", parents, parentID)
	}
}
