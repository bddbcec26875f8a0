package helper

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxwpc/git-remote-xcrypt/internal/xcrypt"
)

// RefDB is a minimal reader/writer for the local repository's loose refs,
// the subset of git's own ref storage this driver needs: resolve a name to
// an id (following one level of symref indirection), create or rename a
// ref, and list every ref under a prefix. It deliberately does not read
// packed-refs — the refs this driver creates and renames are always
// written loose, under refs/xcrypt/... or refs/remotes/..., and those
// never get packed by an ordinary `git gc` before this driver next runs.
type RefDB struct {
	gitDir string
}

// NewRefDB roots a RefDB at gitDir (normally the repository's ".git").
func NewRefDB(gitDir string) *RefDB {
	return &RefDB{gitDir: gitDir}
}

// xcryptRemoteRef is the local tracking ref a fetched-and-decrypted head
// is recorded under, mirroring the reference implementation's
// get_xcrypt_remote_ref.
func xcryptRemoteRef(remote, name string) string {
	return "refs/xcrypt/remotes/" + remote + "/" + strings.TrimPrefix(name, "refs/")
}

// xcryptLocalRef is the staging ref a push's encrypted commit is recorded
// under before the transport confirms the remote accepted it, mirroring
// get_xcrypt_local_ref.
func xcryptLocalRef(name string) string {
	return "refs/xcrypt/local/" + strings.TrimPrefix(name, "refs/")
}

func (r *RefDB) path(name string) string {
	return filepath.Join(r.gitDir, filepath.FromSlash(name))
}

// Resolve reads name and, if it's a symref ("ref: <target>"), follows one
// level of indirection. Direct hex ids are also accepted as name so
// callers can pass through an already-resolved id unchanged.
func (r *RefDB) Resolve(name string) (xcrypt.ObjectId, error) {
	if id, err := xcrypt.ParseObjectId(name); err == nil {
		return id, nil
	}

	content, err := r.read(name)
	if err != nil {
		return xcrypt.ObjectId{}, err
	}
	if target, ok := strings.CutPrefix(content, "ref: "); ok {
		content, err = r.read(strings.TrimSpace(target))
		if err != nil {
			return xcrypt.ObjectId{}, err
		}
	}

	id, err := xcrypt.ParseObjectId(content)
	if err != nil {
		return xcrypt.ObjectId{}, fmt.Errorf("%w: ref %s holds %q: %v", xcrypt.ErrProtocol, name, content, err)
	}
	return id, nil
}

func (r *RefDB) read(name string) (string, error) {
	raw, err := os.ReadFile(r.path(name))
	if err != nil {
		return "", fmt.Errorf("%w: reading ref %s: %v", xcrypt.ErrProtocol, name, err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// Create writes id under name, replacing whatever was there.
func (r *RefDB) Create(name string, id xcrypt.ObjectId) error {
	path := r.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: creating ref directory for %s: %v", xcrypt.ErrStore, name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "ref-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating ref %s: %v", xcrypt.ErrStore, name, err)
	}
	tmpPath := tmp.Name()
	if _, err := io.WriteString(tmp, id.String()+"\n"); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing ref %s: %v", xcrypt.ErrStore, name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing ref %s: %v", xcrypt.ErrStore, name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming ref %s into place: %v", xcrypt.ErrStore, name, err)
	}
	return nil
}

// Rename moves the ref at oldName to newName, matching push_update_ref's
// promotion of a staged local ref to a remote tracking ref once the
// transport confirms the update landed.
func (r *RefDB) Rename(oldName, newName string) error {
	id, err := r.Resolve(oldName)
	if err != nil {
		return err
	}
	if err := r.Create(newName, id); err != nil {
		return err
	}
	if err := os.Remove(r.path(oldName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: removing old ref %s: %v", xcrypt.ErrStore, oldName, err)
	}
	return nil
}

// ListPrefix returns every loose ref found under prefix (a slash-rooted
// ref namespace such as "refs/remotes/origin"), keyed by full ref name.
func (r *RefDB) ListPrefix(prefix string) (map[string]xcrypt.ObjectId, error) {
	root := r.path(prefix)
	refs := make(map[string]xcrypt.ObjectId)

	if _, err := os.Stat(root); os.IsNotExist(err) {
		return refs, nil
	}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(r.gitDir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		id, resolveErr := r.Resolve(name)
		if resolveErr != nil {
			return resolveErr
		}
		refs[name] = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing refs under %s: %v", xcrypt.ErrProtocol, prefix, err)
	}
	return refs, nil
}
