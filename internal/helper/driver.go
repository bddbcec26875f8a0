// Package helper implements the line-oriented git remote-helper protocol
// loop: capabilities, list, fetch, push. It is the thin dispatcher that
// wires the object store, the pair table, the two graph walkers, the
// revwalk ancestry search, and the transport together into the
// transaction git expects from a `git-remote-<transport>` binary.
package helper

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/xxwpc/git-remote-xcrypt/internal/audit"
	"github.com/xxwpc/git-remote-xcrypt/internal/progress"
	"github.com/xxwpc/git-remote-xcrypt/internal/revwalk"
	"github.com/xxwpc/git-remote-xcrypt/internal/transport"
	"github.com/xxwpc/git-remote-xcrypt/internal/xcrypt"
)

// Driver runs the capabilities/list/fetch/push protocol loop for one
// remote-helper invocation.
type Driver struct {
	RemoteName string
	RemoteURL  string

	Store     xcrypt.Store
	Pairs     *xcrypt.PairTable
	Password  xcrypt.Password
	Transport transport.Transport
	Refs      *RefDB
	Counters  *progress.Counters
	Audit     audit.Logger

	In  *bufio.Scanner
	Out io.Writer
}

// New builds a Driver from its collaborators. Counters may be nil; a nil
// Counters simply means progress updates are dropped. auditLog may also be
// nil, which means fetch/push/encrypt/decrypt events are dropped instead of
// recorded.
func New(remoteName, remoteURL string, store xcrypt.Store, pairs *xcrypt.PairTable, pw xcrypt.Password, tp transport.Transport, refs *RefDB, counters *progress.Counters, auditLog audit.Logger, in io.Reader, out io.Writer) *Driver {
	return &Driver{
		RemoteName: remoteName,
		RemoteURL:  remoteURL,
		Store:      store,
		Pairs:      pairs,
		Password:   pw,
		Transport:  tp,
		Refs:       refs,
		Counters:   counters,
		Audit:      auditLog,
		In:         bufio.NewScanner(in),
		Out:        out,
	}
}

// logAudit records one audit-log entry when d.Audit is set. objects is the
// number of objects the operation touched; err, if non-nil, is recorded as
// the entry's failure reason without altering control flow.
func (d *Driver) logAudit(op string, objects int, err error) {
	if d.Audit == nil {
		return
	}
	entry := &audit.Entry{
		Operation: op,
		Remote:    d.RemoteName,
		Objects:   objects,
		Success:   err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	_ = d.Audit.Log(entry)
}

func (d *Driver) parentLister() revwalk.ParentLister {
	return revwalk.StoreParentLister{Store: d.Store}
}

func (d *Driver) encryptor() *xcrypt.GraphEncryptor {
	e := &xcrypt.GraphEncryptor{Store: d.Store, Pairs: d.Pairs, Password: d.Password}
	if d.Counters != nil {
		d.Counters.Set(progress.StageEncrypt, 0, 0)
		e.OnObject = func() { d.Counters.Add(1) }
	}
	return e
}

func (d *Driver) decryptor() *xcrypt.GraphDecryptor {
	dec := &xcrypt.GraphDecryptor{Store: d.Store, Pairs: d.Pairs, Password: d.Password}
	if d.Counters != nil {
		d.Counters.Set(progress.StageDecrypt, 0, 0)
		dec.OnObject = func() { d.Counters.Add(1) }
	}
	return dec
}

func (d *Driver) output(format string, args ...any) {
	fmt.Fprintf(d.Out, format+"\n", args...)
}

func (d *Driver) blank() {
	fmt.Fprint(d.Out, "\n")
}

// readLine returns the next stdin line with its trailing newline
// stripped, and false once the stream is exhausted.
func (d *Driver) readLine() (string, bool) {
	if !d.In.Scan() {
		return "", false
	}
	return d.In.Text(), true
}

// Run drives the protocol loop to completion: one command per outer
// iteration until an empty line or EOF.
func (d *Driver) Run() error {
	for {
		line, ok := d.readLine()
		if !ok || line == "" {
			return nil
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "capabilities":
			d.doCapabilities()
		case "list":
			if err := d.doList(len(fields) > 1); err != nil {
				return err
			}
		case "fetch":
			if err := d.doFetch(line); err != nil {
				return err
			}
		case "push":
			if err := d.doPush(line); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown command %q", xcrypt.ErrProtocol, fields[0])
		}
	}
}

func (d *Driver) doCapabilities() {
	d.output("fetch")
	d.output("push")
	d.blank()
}

// remoteRefsGlob is the ref namespace this remote's already-decrypted
// heads are recorded under; its ancestry is hidden from a fresh fetch's
// revwalk so only genuinely new commits get decrypted.
func (d *Driver) remoteRefsGlob() string {
	return "refs/xcrypt/remotes/" + d.RemoteName
}

func (d *Driver) doList(forPush bool) error {
	dir := transport.Fetch
	if forPush {
		dir = transport.Push
	}
	if err := d.Transport.Connect(dir); err != nil {
		return err
	}
	defer d.Transport.Close()

	heads, err := d.Transport.Ls()
	if err != nil {
		return err
	}

	if err := d.fetchMissingHeads(heads); err != nil {
		return err
	}

	decrypted, err := d.decryptFetch(heads)
	if err != nil {
		return err
	}

	for _, h := range heads {
		if h.SymrefTarget != "" {
			d.output("@%s %s", h.SymrefTarget, h.Name)
			continue
		}

		if err := d.Refs.Create(xcryptRemoteRef(d.RemoteName, h.Name), h.Id); err != nil {
			return err
		}

		plain, ok := decrypted[h.Id]
		if !ok {
			plain, ok = d.Pairs.Find(h.Id)
		}
		if !ok {
			return fmt.Errorf("%w: head %s was not decrypted", xcrypt.ErrCorruption, h.Name)
		}
		d.output("%s %s", plain.String(), h.Name)
	}
	d.blank()
	return nil
}

// fetchMissingHeads downloads the ciphertext ancestry of any advertised
// head this store doesn't already have. Symrefs carry no object of their
// own and are skipped.
func (d *Driver) fetchMissingHeads(heads []transport.RemoteHead) error {
	var need []xcrypt.ObjectId
	for _, h := range heads {
		if h.SymrefTarget != "" {
			continue
		}
		if !d.Store.ObjectExists(h.Id) {
			need = append(need, h.Id)
		}
	}
	if len(need) == 0 {
		return nil
	}
	if err := d.Transport.NegotiateFetch(need); err != nil {
		return err
	}
	return d.Transport.DownloadPack()
}

// decryptFetch walks the ciphertext ancestry of every advertised head,
// minus the ancestry already recorded under this remote's tracking refs,
// and decrypts exactly that difference, returning every head's id mapped
// to its freshly (or previously) decrypted plaintext id.
func (d *Driver) decryptFetch(heads []transport.RemoteHead) (map[xcrypt.ObjectId]xcrypt.ObjectId, error) {
	w := revwalk.NewWalker(d.parentLister())
	for _, h := range heads {
		if h.SymrefTarget == "" {
			w.Push(h.Id)
		}
	}

	known, err := d.Refs.ListPrefix(d.remoteRefsGlob())
	if err != nil {
		return nil, err
	}
	for _, id := range known {
		if err := w.Hide(id); err != nil {
			return nil, err
		}
	}

	ids, err := w.Walk()
	if err != nil {
		return nil, err
	}

	result := make(map[xcrypt.ObjectId]xcrypt.ObjectId, len(heads))
	if len(ids) > 0 {
		plainIDs, err := d.decryptor().DecryptRoots(ids)
		d.logAudit(audit.OpDecrypt, len(ids), err)
		if err != nil {
			return nil, err
		}
		for i, cipher := range ids {
			result[cipher] = plainIDs[i]
		}
	}
	return result, nil
}

// doFetch handles one or more "fetch <sha> <name>" lines: every object
// named was already pulled into the store during the preceding list, so
// this just confirms that and acknowledges.
func (d *Driver) doFetch(first string) error {
	line := first
	count := 0
	for {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return fmt.Errorf("%w: malformed fetch line %q", xcrypt.ErrProtocol, line)
		}
		id, err := xcrypt.ParseObjectId(fields[1])
		if err != nil {
			return fmt.Errorf("%w: fetch %q: %v", xcrypt.ErrProtocol, fields[1], err)
		}
		if !d.Store.ObjectExists(id) {
			return fmt.Errorf("%w: fetch requested %s, which was never decrypted locally", xcrypt.ErrCorruption, id)
		}
		count++

		next, ok := d.readLine()
		if !ok || next == "" {
			break
		}
		line = next
	}
	d.logAudit(audit.OpFetch, count, nil)
	d.blank()
	return nil
}

// refspecPattern matches "[+]<src>:<dst>": src may be empty (a delete),
// dst is required.
var refspecPattern = regexp.MustCompile(`^\+?([^:]*):(.+)$`)

type pushRefspec struct {
	force bool
	src   string // empty means delete
	dst   string
}

func parseRefspec(raw string) (pushRefspec, error) {
	m := refspecPattern.FindStringSubmatch(raw)
	if m == nil {
		return pushRefspec{}, fmt.Errorf("%w: malformed refspec %q", xcrypt.ErrProtocol, raw)
	}
	return pushRefspec{force: strings.HasPrefix(raw, "+"), src: m[1], dst: m[2]}, nil
}

// doPush handles one or more "push <refspec>" lines: resolve each source
// to a plaintext commit, encrypt the ancestry not already known to the
// remote, stage the encrypted commits under local refs, and upload.
func (d *Driver) doPush(first string) error {
	line := first
	w := revwalk.NewWalker(d.parentLister())

	var specs []pushRefspec
	rootFor := make(map[string]xcrypt.ObjectId)

	for {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return fmt.Errorf("%w: malformed push line %q", xcrypt.ErrProtocol, line)
		}
		spec, err := parseRefspec(fields[1])
		if err != nil {
			return err
		}
		if spec.src != "" {
			id, err := d.Refs.Resolve(spec.src)
			if err != nil {
				return err
			}
			w.Push(id)
			rootFor[spec.dst] = id
		}
		specs = append(specs, spec)

		next, ok := d.readLine()
		if !ok || next == "" {
			break
		}
		line = next
	}

	known, err := d.Refs.ListPrefix("refs/remotes/" + d.RemoteName)
	if err != nil {
		return err
	}
	for _, id := range known {
		if err := w.Hide(id); err != nil {
			return err
		}
	}

	ids, err := w.Walk()
	if err != nil {
		return err
	}
	enc := d.encryptor()
	if len(ids) > 0 {
		_, err := enc.EncryptRoots(ids)
		d.logAudit(audit.OpEncrypt, len(ids), err)
		if err != nil {
			return err
		}
	}

	refspecs := make([]transport.RefUpdate, 0, len(specs))
	staged := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if spec.src == "" {
			refspecs = append(refspecs, transport.RefUpdate{Dst: spec.dst, Delete: true})
			continue
		}
		cipher, ok := d.Pairs.Find(rootFor[spec.dst])
		if !ok {
			return fmt.Errorf("%w: %s was not encrypted", xcrypt.ErrCorruption, spec.dst)
		}
		localRef := xcryptLocalRef(spec.dst)
		if err := d.Refs.Create(localRef, cipher); err != nil {
			return err
		}
		refspecs = append(refspecs, transport.RefUpdate{Src: cipher, Dst: spec.dst, Force: spec.force})
		staged[spec.dst] = true
	}

	var uploadErr error
	results := make(map[string]error, len(refspecs))
	if len(refspecs) > 0 {
		uploadErr = d.Transport.Upload(refspecs, enc.Written, func(res transport.UpdateResult) {
			results[res.Ref.Dst] = res.Err
		})
	}
	d.logAudit(audit.OpPush, len(refspecs), uploadErr)

	for _, dst := range sortedDsts(refspecs) {
		if err, ok := results[dst]; ok && err != nil {
			d.output("error %s %s", dst, err.Error())
			continue
		}
		if staged[dst] {
			if err := d.Refs.Rename(xcryptLocalRef(dst), xcryptRemoteRef(d.RemoteName, dst)); err != nil {
				return err
			}
		}
		d.output("ok %s", dst)
	}
	d.blank()
	return uploadErr
}

func sortedDsts(refspecs []transport.RefUpdate) []string {
	dsts := make([]string, len(refspecs))
	for i, r := range refspecs {
		dsts[i] = r.Dst
	}
	sort.Strings(dsts)
	return dsts
}
