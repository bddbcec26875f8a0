package transport

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/xxwpc/git-remote-xcrypt/internal/xcrypt"
)

// sshHostPattern matches an rsync-style remote spec, user@host:path.
var sshHostPattern = regexp.MustCompile(`^[^/@]+@[^:/]+:.+$`)

// DirTransport is a directory-based transport: the remote is either a
// plain local path or an rsync-reachable host:path. Fetch mirrors the
// remote's objects/ and refs/ directories down wholesale, since the
// remote holds nothing but ciphertext. Push is the opposite of
// wholesale: it copies only the caller-supplied object ids, since the
// local object store sits underneath the caller's own repository and
// may hold plaintext objects the remote must never receive. There is no
// smart negotiation; NegotiateFetch only records the roots it is given,
// and DownloadPack mirrors the remote's objects/ without consulting them.
type DirTransport struct {
	// LocalObjectsDir is the root of the local object store (an
	// internal/store.LooseStore's objects/ directory).
	LocalObjectsDir string
	// LocalRefsDir is the root of the local mirror of remote refs.
	LocalRefsDir string
	// RemotePath is either a local filesystem path or an rsync spec of
	// the form user@host:path.
	RemotePath string

	known map[xcrypt.ObjectId]bool
}

// NewDirTransport returns a transport rooted at the given local object
// store and ref mirror directories, talking to remotePath.
func NewDirTransport(localObjectsDir, localRefsDir, remotePath string) *DirTransport {
	return &DirTransport{
		LocalObjectsDir: localObjectsDir,
		LocalRefsDir:    localRefsDir,
		RemotePath:      remotePath,
		known:           make(map[xcrypt.ObjectId]bool),
	}
}

func (t *DirTransport) isRemoteHost() bool {
	return sshHostPattern.MatchString(t.RemotePath)
}

// Connect ensures the local-side directories this session needs exist.
func (t *DirTransport) Connect(dir Direction) error {
	if err := os.MkdirAll(t.LocalObjectsDir, 0o755); err != nil {
		return fmt.Errorf("%w: preparing local object directory: %v", xcrypt.ErrTransport, err)
	}
	if err := os.MkdirAll(t.LocalRefsDir, 0o755); err != nil {
		return fmt.Errorf("%w: preparing local ref mirror: %v", xcrypt.ErrTransport, err)
	}
	if !t.isRemoteHost() {
		if err := os.MkdirAll(filepath.Join(t.RemotePath, "objects"), 0o755); err != nil {
			return fmt.Errorf("%w: preparing remote directory: %v", xcrypt.ErrTransport, err)
		}
		if err := os.MkdirAll(filepath.Join(t.RemotePath, "refs"), 0o755); err != nil {
			return fmt.Errorf("%w: preparing remote directory: %v", xcrypt.ErrTransport, err)
		}
	}
	return nil
}

// Ls mirrors the remote's refs/ directory down into LocalRefsDir, then
// reads it: each file under refs/ holds either a 40-hex-digit ciphertext
// id or a "ref: <other-name>" symref line, the same convention git's own
// plain-file ref storage uses. Names are reported as full ref names
// ("refs/heads/main"), matching what git itself passes a remote helper.
func (t *DirTransport) Ls() ([]RemoteHead, error) {
	if err := t.pullRefs(); err != nil {
		return nil, err
	}

	var heads []RemoteHead
	err := filepath.WalkDir(t.LocalRefsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(t.LocalRefsDir, path)
		if err != nil {
			return err
		}
		name := "refs/" + filepath.ToSlash(rel)
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		content := strings.TrimSpace(string(raw))

		if target, ok := strings.CutPrefix(content, "ref: "); ok {
			heads = append(heads, RemoteHead{Name: name, SymrefTarget: target})
			return nil
		}
		id, err := xcrypt.ParseObjectId(content)
		if err != nil {
			return fmt.Errorf("%w: ref %s: %v", xcrypt.ErrTransport, name, err)
		}
		heads = append(heads, RemoteHead{Name: name, Id: id})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing remote refs: %v", xcrypt.ErrTransport, err)
	}

	sort.Slice(heads, func(i, j int) bool { return heads[i].Name < heads[j].Name })
	return heads, nil
}

// NegotiateFetch records the wanted ciphertext commits. A directory
// transport has no cheaper way to select objects than mirroring the
// remote's objects/ wholesale, so the recorded set is not consulted by
// DownloadPack.
func (t *DirTransport) NegotiateFetch(roots []xcrypt.ObjectId) error {
	for _, id := range roots {
		t.known[id] = true
	}
	return nil
}

// DownloadPack mirrors the remote's objects/ directory down into
// LocalObjectsDir.
func (t *DirTransport) DownloadPack() error {
	remoteObjects := filepath.Join(t.RemotePath, "objects")
	if t.isRemoteHost() {
		return rsync(remoteObjects+"/", t.LocalObjectsDir+"/")
	}
	return copyTree(remoteObjects, t.LocalObjectsDir)
}

// pullRefs mirrors the remote's refs/ directory down into LocalRefsDir.
func (t *DirTransport) pullRefs() error {
	remoteRefs := filepath.Join(t.RemotePath, "refs")
	if t.isRemoteHost() {
		return rsync(remoteRefs+"/", t.LocalRefsDir+"/")
	}
	if _, err := os.Stat(remoteRefs); os.IsNotExist(err) {
		return nil
	}
	return copyTree(remoteRefs, t.LocalRefsDir)
}

// objectRelPath is the two-hex-digit shard path a loose object store
// keys id under, relative to its objects/ root.
func objectRelPath(id xcrypt.ObjectId) string {
	hex := id.String()
	return filepath.Join(hex[:2], hex[2:])
}

// Upload transfers exactly objectIDs up to the remote, then applies each
// ref update by writing the remote's ref file directly (locally) or
// through an rsync of a freshly rewritten local mirror (remote host
// case). It never mirrors LocalObjectsDir wholesale: that directory is
// the caller's loose object store and may hold plaintext objects the
// remote must never see, so only the objects the caller names are moved.
func (t *DirTransport) Upload(refspecs []RefUpdate, objectIDs []xcrypt.ObjectId, onUpdate func(UpdateResult)) error {
	for _, id := range objectIDs {
		rel := objectRelPath(id)
		src := filepath.Join(t.LocalObjectsDir, rel)
		dst := filepath.Join(t.RemotePath, "objects", rel)

		if _, statErr := os.Stat(src); statErr != nil {
			if os.IsNotExist(statErr) {
				continue
			}
			return fmt.Errorf("%w: reading local object %s: %v", xcrypt.ErrTransport, id, statErr)
		}

		var copyErr error
		if t.isRemoteHost() {
			copyErr = rsync(src, dst)
		} else {
			copyErr = copyFile(src, dst)
		}
		if copyErr != nil {
			return fmt.Errorf("%w: uploading object %s: %v", xcrypt.ErrTransport, id, copyErr)
		}
	}

	var err error
	for _, ref := range refspecs {
		rel := strings.TrimPrefix(ref.Dst, "refs/")
		path := filepath.Join(t.LocalRefsDir, rel)
		remotePath := filepath.Join(t.RemotePath, "refs", rel)

		var writeErr error
		if ref.Delete {
			writeErr = deleteRef(path, remotePath, t.isRemoteHost())
		} else {
			writeErr = writeRefFile(path, ref.Src)
			if writeErr == nil && t.isRemoteHost() {
				writeErr = rsync(path, remotePath)
			} else if writeErr == nil {
				writeErr = copyFile(path, remotePath)
			}
		}

		if onUpdate != nil {
			onUpdate(UpdateResult{Ref: ref, Err: writeErr})
		}
		if writeErr != nil {
			err = writeErr
		}
	}
	return err
}

// Close is a no-op: a directory transport holds no live connection.
func (t *DirTransport) Close() error { return nil }

// deleteRef removes a ref both locally and on the remote side. An
// rsync-reachable remote has no "delete one file" primitive, so that case
// shells out to rm over ssh instead.
func deleteRef(localPath, remotePath string, remoteIsHost bool) error {
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	if remoteIsHost {
		return removeRemoteFile(remotePath)
	}
	if err := os.Remove(remotePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func removeRemoteFile(remotePath string) error {
	idx := strings.Index(remotePath, ":")
	if idx < 0 {
		return fmt.Errorf("not an ssh-style remote path: %s", remotePath)
	}
	host, path := remotePath[:idx], remotePath[idx+1:]
	cmd := exec.Command("ssh", host, "rm", "-f", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ssh rm %s:%s: %w: %s", host, path, err, out)
	}
	return nil
}

func writeRefFile(path string, id xcrypt.ObjectId) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(id.String()+"\n"), 0o644)
}

func rsync(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	cmd := exec.Command("rsync", "-az", "--mkpath", src, dst)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("rsync %s -> %s: %w: %s", src, dst, err, out)
	}
	return nil
}

// copyTree recursively copies src into dst for the plain-local-path case.
func copyTree(src, dst string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return os.MkdirAll(dst, 0o755)
	}
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "xfer-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
