package xcrypt

import (
	"bytes"
	"fmt"
)

// CommitRefs holds the outgoing edges of a commit object: its tree, in
// Tree, and its parent commits, in Parents, in the order they appear in
// the commit body.
type CommitRefs struct {
	Tree    ObjectId
	Parents []ObjectId
}

// ParseCommitRefs reads the "tree <id>" line and any following
// "parent <id>" lines from a commit object's body. It works whether body
// holds a plaintext commit or the structurally identical ciphertext
// commit produced by encryptCommit, since both begin with the same
// tree/parent header lines.
func ParseCommitRefs(body []byte) (CommitRefs, error) {
	var refs CommitRefs

	rest := body
	const treePrefix = "tree "
	if !bytes.HasPrefix(rest, []byte(treePrefix)) {
		return refs, fmt.Errorf("%w: commit body missing tree line", ErrCorruption)
	}
	rest = rest[len(treePrefix):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 {
		return refs, fmt.Errorf("%w: commit body truncated after tree line", ErrCorruption)
	}
	tree, err := ParseObjectId(string(rest[:nl]))
	if err != nil {
		return refs, fmt.Errorf("%w: commit tree id: %v", ErrCorruption, err)
	}
	refs.Tree = tree
	rest = rest[nl+1:]

	const parentPrefix = "parent "
	for bytes.HasPrefix(rest, []byte(parentPrefix)) {
		rest = rest[len(parentPrefix):]
		nl = bytes.IndexByte(rest, '\n')
		if nl < 0 {
			return refs, fmt.Errorf("%w: commit body truncated after parent line", ErrCorruption)
		}
		parent, err := ParseObjectId(string(rest[:nl]))
		if err != nil {
			return refs, fmt.Errorf("%w: commit parent id: %v", ErrCorruption, err)
		}
		refs.Parents = append(refs.Parents, parent)
		rest = rest[nl+1:]
	}

	return refs, nil
}

// TreeEntry is one entry of a parsed tree object body.
type TreeEntry struct {
	Mode    uint32
	Name    []byte
	Id      ObjectId
	Gitlink bool // Mode == GitlinkMode: no DAG edge, id left as-is on both sides.
}

// ParseTreeEntries walks a tree object's body (repeated
// "<octal mode> <name>\0<raw id>" records) and returns every entry in
// order. It works on plaintext trees and on the structurally identical
// ciphertext trees encryptTree produces.
func ParseTreeEntries(body []byte, idWidth int) ([]TreeEntry, error) {
	var entries []TreeEntry

	rest := body
	for len(rest) > 0 {
		sp := bytes.IndexByte(rest, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("%w: tree entry missing mode separator", ErrCorruption)
		}
		mode, err := parseOctal(rest[:sp])
		if err != nil {
			return nil, fmt.Errorf("%w: tree entry mode: %v", ErrCorruption, err)
		}

		nameStart := sp + 1
		nul := bytes.IndexByte(rest[nameStart:], 0)
		if nul < 0 {
			return nil, fmt.Errorf("%w: tree entry missing name terminator", ErrCorruption)
		}
		name := rest[nameStart : nameStart+nul]
		idStart := nameStart + nul + 1
		if len(rest) < idStart+idWidth {
			return nil, fmt.Errorf("%w: tree entry truncated id", ErrCorruption)
		}

		var id ObjectId
		copy(id[:], rest[idStart:idStart+idWidth])

		entries = append(entries, TreeEntry{
			Mode:    mode,
			Name:    append([]byte(nil), name...),
			Id:      id,
			Gitlink: mode == GitlinkMode,
		})

		rest = rest[idStart+idWidth:]
	}

	return entries, nil
}

func parseOctal(b []byte) (uint32, error) {
	var v uint32
	if len(b) == 0 {
		return 0, fmt.Errorf("empty mode")
	}
	for _, c := range b {
		if c < '0' || c > '7' {
			return 0, fmt.Errorf("invalid octal digit %q", c)
		}
		v = v*8 + uint32(c-'0')
	}
	return v, nil
}
