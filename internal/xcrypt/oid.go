// Package xcrypt implements the object-graph crypto pipeline: the codec,
// the object-id map, and the two graph walkers that translate a plaintext
// CAVCS object graph into a ciphertext one and back.
package xcrypt

import (
	"encoding/hex"
	"fmt"
)

// RawSize is the fixed width of an ObjectId. CAVCS backends that use a
// shorter hash (20-byte SHA-1, for instance) leave bytes 20..32 zero.
const RawSize = 32

// ShortSize is the number of significant bytes for CAVCS backends that use
// a 20-byte id. ObjectId.String prints only these bytes as hex.
const ShortSize = 20

// ObjectId is a fixed 32-byte content-address.
type ObjectId [RawSize]byte

// String renders the first ShortSize bytes as lowercase hex, matching the
// 40-hex-digit presentation of a 20-byte CAVCS id.
func (id ObjectId) String() string {
	return hex.EncodeToString(id[:ShortSize])
}

// ParseObjectId decodes a hex string into an ObjectId. Both 40-digit
// (20-byte) and 64-digit (32-byte) forms are accepted; a 40-digit input
// leaves the trailing bytes zero.
func ParseObjectId(s string) (ObjectId, error) {
	var id ObjectId
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("parse object id %q: %w", s, err)
	}
	switch len(raw) {
	case ShortSize, RawSize:
		copy(id[:], raw)
	default:
		return id, fmt.Errorf("parse object id %q: want %d or %d hex bytes, got %d", s, ShortSize, RawSize, len(raw))
	}
	return id, nil
}

// ObjectIdFromRaw copies a raw byte slice (20 or 32 bytes) into an ObjectId.
func ObjectIdFromRaw(raw []byte) (ObjectId, error) {
	var id ObjectId
	switch len(raw) {
	case ShortSize, RawSize:
		copy(id[:], raw)
	default:
		return id, fmt.Errorf("object id raw length %d, want %d or %d", len(raw), ShortSize, RawSize)
	}
	return id, nil
}

// ObjectKind is one of Commit, Tree, Blob. Other kinds are rejected by
// every component that parses object bodies.
type ObjectKind int

const (
	KindCommit ObjectKind = iota
	KindTree
	KindBlob
)

func (k ObjectKind) String() string {
	switch k {
	case KindCommit:
		return "commit"
	case KindTree:
		return "tree"
	case KindBlob:
		return "blob"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// GitlinkMode is the tree-entry mode that marks a submodule/gitlink entry.
// Such entries carry no DAG edge and are never encrypted or indexed.
const GitlinkMode = 0160000

// SentinelMode is the mode written for the sentinel self-blob entry
// appended to every encrypted tree.
const SentinelMode = 0100664

// PlainObject is a plaintext object read from the local object store.
type PlainObject struct {
	Id    ObjectId
	Kind  ObjectKind
	Bytes []byte
}

// CipherObject is a ciphertext object written into the local object store.
// Its Id is assigned by the store at write time, not chosen by the caller.
type CipherObject struct {
	Id    ObjectId
	Kind  ObjectKind
	Bytes []byte
}
