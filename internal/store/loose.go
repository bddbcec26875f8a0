// Package store implements the CAVCS object-store collaborator as plain
// git loose objects: zlib-deflated "<type> <size>\0<content>" records
// sharded two-hex-digits deep, the same layout git itself uses under
// .git/objects.
package store

import (
	"bytes"
	"compress/zlib"
	"crypto/sha1"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/xxwpc/git-remote-xcrypt/internal/xcrypt"
)

// LooseStore reads and writes loose objects under a single objects/
// directory. It satisfies xcrypt.Store and xcrypt.Exister.
type LooseStore struct {
	dir string
	mu  sync.Mutex
}

// NewLooseStore returns a store rooted at gitDir/objects, creating the
// directory if it does not already exist.
func NewLooseStore(gitDir string) (*LooseStore, error) {
	dir := filepath.Join(gitDir, "objects")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating object store directory: %v", xcrypt.ErrStore, err)
	}
	return &LooseStore{dir: dir}, nil
}

func (s *LooseStore) pathFor(id xcrypt.ObjectId) string {
	hex := id.String()
	return filepath.Join(s.dir, hex[:2], hex[2:])
}

func kindName(kind xcrypt.ObjectKind) string {
	return kind.String()
}

func parseKindName(name string) (xcrypt.ObjectKind, error) {
	switch name {
	case "commit":
		return xcrypt.KindCommit, nil
	case "tree":
		return xcrypt.KindTree, nil
	case "blob":
		return xcrypt.KindBlob, nil
	default:
		return 0, fmt.Errorf("%w: unknown object type %q", xcrypt.ErrCorruption, name)
	}
}

func hashObject(kind xcrypt.ObjectKind, body []byte) xcrypt.ObjectId {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", kindName(kind), len(body))
	h.Write(body)
	var id xcrypt.ObjectId
	copy(id[:], h.Sum(nil))
	return id
}

// ObjectExists reports whether id is present in the store.
func (s *LooseStore) ObjectExists(id xcrypt.ObjectId) bool {
	_, err := os.Stat(s.pathFor(id))
	return err == nil
}

// ReadObject inflates and parses the loose object at id.
func (s *LooseStore) ReadObject(id xcrypt.ObjectId) (xcrypt.ObjectKind, []byte, error) {
	f, err := os.Open(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil, fmt.Errorf("%w: object %s not found", xcrypt.ErrStore, id)
		}
		return 0, nil, fmt.Errorf("%w: opening object %s: %v", xcrypt.ErrStore, id, err)
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: inflating object %s: %v", xcrypt.ErrCorruption, id, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading object %s: %v", xcrypt.ErrCorruption, id, err)
	}

	sp := bytes.IndexByte(raw, ' ')
	nul := bytes.IndexByte(raw, 0)
	if sp < 0 || nul < 0 || nul < sp {
		return 0, nil, fmt.Errorf("%w: object %s has malformed header", xcrypt.ErrCorruption, id)
	}
	kind, err := parseKindName(string(raw[:sp]))
	if err != nil {
		return 0, nil, err
	}

	return kind, raw[nul+1:], nil
}

// WriteObject deflates body under its git-style header and writes it to
// disk, returning the content-derived id. A write is skipped (but still
// succeeds) when the object already exists, matching git's own
// loose-object dedup behavior.
func (s *LooseStore) WriteObject(kind xcrypt.ObjectKind, body []byte) (xcrypt.ObjectId, error) {
	id := hashObject(kind, body)

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.pathFor(id)
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return id, fmt.Errorf("%w: creating shard directory: %v", xcrypt.ErrStore, err)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	fmt.Fprintf(zw, "%s %d\x00", kindName(kind), len(body))
	zw.Write(body)
	if err := zw.Close(); err != nil {
		return id, fmt.Errorf("%w: deflating object: %v", xcrypt.ErrStore, err)
	}

	tmp, err := os.CreateTemp(s.dir, "obj-*.tmp")
	if err != nil {
		return id, fmt.Errorf("%w: creating temp object file: %v", xcrypt.ErrStore, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return id, fmt.Errorf("%w: writing object: %v", xcrypt.ErrStore, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return id, fmt.Errorf("%w: closing object file: %v", xcrypt.ErrStore, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return id, fmt.Errorf("%w: renaming object into place: %v", xcrypt.ErrStore, err)
	}

	return id, nil
}
