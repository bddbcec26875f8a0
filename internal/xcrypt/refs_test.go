package xcrypt

import (
	"bytes"
	"testing"
)

func TestParseCommitRefs(t *testing.T) {
	tree := "1111111111111111111111111111111111111111"
	p1 := "2222222222222222222222222222222222222222"
	p2 := "3333333333333333333333333333333333333333"

	body := []byte("tree " + tree + "\n" +
		"parent " + p1 + "\n" +
		"parent " + p2 + "\n" +
		"author a <a@example.com> 1 +0000\n" +
		"committer a <a@example.com> 1 +0000\n\n" +
		"message\n")

	refs, err := ParseCommitRefs(body)
	if err != nil {
		t.Fatal(err)
	}
	if refs.Tree.String() != tree {
		t.Errorf("tree: got %s want %s", refs.Tree, tree)
	}
	if len(refs.Parents) != 2 || refs.Parents[0].String() != p1 || refs.Parents[1].String() != p2 {
		t.Errorf("parents: got %v", refs.Parents)
	}
}

func TestParseCommitRefsNoParents(t *testing.T) {
	tree := "4444444444444444444444444444444444444444"
	body := []byte("tree " + tree + "\nauthor a <a@b> 1 +0000\n\nroot commit\n")

	refs, err := ParseCommitRefs(body)
	if err != nil {
		t.Fatal(err)
	}
	if refs.Tree.String() != tree {
		t.Errorf("tree: got %s want %s", refs.Tree, tree)
	}
	if len(refs.Parents) != 0 {
		t.Errorf("expected no parents, got %v", refs.Parents)
	}
}

func TestParseCommitRefsRejectsMissingTree(t *testing.T) {
	if _, err := ParseCommitRefs([]byte("author a <a@b> 1 +0000\n")); err == nil {
		t.Fatal("expected error for missing tree line")
	}
}

func rawID(b byte, width int) ObjectId {
	var id ObjectId
	for i := 0; i < width; i++ {
		id[i] = b
	}
	return id
}

func TestParseTreeEntries(t *testing.T) {
	blobID := rawID(0x11, ShortSize)
	treeID := rawID(0x22, ShortSize)
	linkID := rawID(0x33, ShortSize)

	var body bytes.Buffer
	body.WriteString("100644 file.txt\x00")
	body.Write(blobID[:ShortSize])
	body.WriteString("40000 sub\x00")
	body.Write(treeID[:ShortSize])
	body.WriteString("160000 submodule\x00")
	body.Write(linkID[:ShortSize])

	entries, err := ParseTreeEntries(body.Bytes(), ShortSize)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	if entries[0].Mode != 0o100644 || string(entries[0].Name) != "file.txt" || entries[0].Gitlink {
		t.Errorf("entry 0: %+v", entries[0])
	}
	if entries[1].Mode != 0o40000 || string(entries[1].Name) != "sub" || entries[1].Gitlink {
		t.Errorf("entry 1: %+v", entries[1])
	}
	if entries[2].Mode != GitlinkMode || !entries[2].Gitlink {
		t.Errorf("entry 2: expected gitlink, got %+v", entries[2])
	}
}
