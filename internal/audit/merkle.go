// Package audit builds a tamper-evident summary of a ciphertext object
// graph (a Merkle root) and lets a team sign that root, so a remote's
// advertised state can be pinned and later checked for drift.
package audit

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/xxwpc/git-remote-xcrypt/internal/xcrypt"
	"lukechampine.com/blake3"
)

// Leaf is one object's contribution to the Merkle tree.
type Leaf struct {
	Id   xcrypt.ObjectId
	Hash [32]byte
}

// HashObject hashes an object's framed content the same way the loose
// store addresses it, but with blake3 rather than the store's own
// content-address hash, so the audit trail doesn't depend on which
// hash algorithm the backend store happens to use.
func HashObject(kind xcrypt.ObjectKind, body []byte) [32]byte {
	h := blake3.New(32, nil)
	fmt.Fprintf(h, "%s %d\x00", kind, len(body))
	h.Write(body)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// BuildMerkleRoot computes a deterministic root over leaves, sorted by
// Id first so the result doesn't depend on traversal order: a binary
// tree of blake3(left || right) pairs, duplicating the last node when a
// level has an odd count.
func BuildMerkleRoot(leaves []Leaf) ([32]byte, error) {
	var zero [32]byte
	if len(leaves) == 0 {
		return zero, fmt.Errorf("audit: no leaves for Merkle tree")
	}

	sorted := make([]Leaf, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Id.String() < sorted[j].Id.String()
	})

	nodes := make([][32]byte, len(sorted))
	for i := range sorted {
		nodes[i] = sorted[i].Hash
	}

	for len(nodes) > 1 {
		var next [][32]byte
		for i := 0; i < len(nodes); i += 2 {
			right := nodes[i]
			if i+1 < len(nodes) {
				right = nodes[i+1]
			}
			h := blake3.New(32, nil)
			h.Write(nodes[i][:])
			h.Write(right[:])
			var combined [32]byte
			copy(combined[:], h.Sum(nil))
			next = append(next, combined)
		}
		nodes = next
	}
	return nodes[0], nil
}

// SealObjects reads every id from store, hashes each with HashObject, and
// returns the hex-encoded Merkle root plus the leaves it was built from.
func SealObjects(store xcrypt.Store, ids []xcrypt.ObjectId) (rootHex string, leaves []Leaf, err error) {
	leaves = make([]Leaf, 0, len(ids))
	for _, id := range ids {
		kind, body, err := store.ReadObject(id)
		if err != nil {
			return "", nil, fmt.Errorf("audit: reading object %s: %w", id, err)
		}
		leaves = append(leaves, Leaf{Id: id, Hash: HashObject(kind, body)})
	}

	root, err := BuildMerkleRoot(leaves)
	if err != nil {
		return "", nil, err
	}
	return hex.EncodeToString(root[:]), leaves, nil
}

// VerifyObjects recomputes the Merkle root for ids and compares it to
// expectedRootHex.
func VerifyObjects(store xcrypt.Store, ids []xcrypt.ObjectId, expectedRootHex string) (bool, []Leaf, error) {
	rootHex, leaves, err := SealObjects(store, ids)
	if err != nil {
		return false, nil, err
	}
	return rootHex == expectedRootHex, leaves, nil
}
