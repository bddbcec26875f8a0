package xcrypt

import (
	"encoding/base64"
	"fmt"
)

// commitFooter is the fixed author/committer block every encrypted
// commit carries. The timestamp and identity are deliberately constant:
// the graph encryptor never reveals when or by whom the plaintext commit
// was authored.
const commitFooter = "author git-remote-xcrypt <xxw_pc@163.com> 1713075873 +0800\n" +
	"committer git-remote-xcrypt <xxw_pc@163.com> 1713075873 +0800\n\n"

// base64LineWidth is the number of base64 characters (representing 48
// binary bytes) per line of an encrypted commit's encoded payload.
const base64LineWidth = 64
const base64LineInputBytes = 48

// GraphEncryptor walks a plaintext object graph and rewrites it into the
// ciphertext graph, inserting every old-id/new-id pair into pairs as it
// goes. RawIDWidth is the raw id width used by tree entries (20 for a
// SHA-1-backed store, 32 for SHA-256); it defaults to 20 when zero.
type GraphEncryptor struct {
	Store      Store
	Pairs      *PairTable
	Password   Password
	RawIDWidth int

	// OnObject, if set, is called once per object actually encrypted
	// (not for objects resolved from the pair table). Callers wire this
	// to a progress counter; it is never required for correctness.
	OnObject func()

	// Written accumulates the ciphertext id of every object actually
	// encrypted during a call to EncryptRoots (not objects resolved from
	// the pair table). A transport uses this, not the whole store, to
	// know exactly which objects a push needs to ship.
	Written []ObjectId
}

func (e *GraphEncryptor) idWidth() int {
	if e.RawIDWidth == 0 {
		return ShortSize
	}
	return e.RawIDWidth
}

// encTask mirrors one stack frame of the iterative post-order walk. target
// points at the slot — a root result or a parent's refs entry — that
// should receive this object's ciphertext id once computed.
type encTask struct {
	target  *ObjectId
	id      ObjectId
	visited bool
	kind    ObjectKind
	body    []byte
	refs    []ObjectId
}

// EncryptRoots encrypts every object reachable from roots and returns each
// root's ciphertext id, in the same order as roots.
func (e *GraphEncryptor) EncryptRoots(roots []ObjectId) ([]ObjectId, error) {
	results := make([]ObjectId, len(roots))
	stack := make([]*encTask, 0, len(roots))
	for i, root := range roots {
		stack = append(stack, &encTask{target: &results[i], id: root})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		pushed, err := e.step(&stack, top)
		if err != nil {
			return nil, err
		}
		if !pushed {
			stack = stack[:len(stack)-1]
		}
	}

	return results, nil
}

// step processes the task at the top of the stack. It returns true if new
// dependencies were pushed (top must stay on the stack), false if top was
// fully resolved (the caller should pop it).
func (e *GraphEncryptor) step(stack *[]*encTask, top *encTask) (bool, error) {
	if !top.visited {
		top.visited = true

		kind, body, err := e.Store.ReadObject(top.id)
		if err != nil {
			return false, fmt.Errorf("%w: reading %s: %v", ErrStore, top.id, err)
		}
		top.kind = kind
		top.body = body

		switch kind {
		case KindCommit:
			refs, err := ParseCommitRefs(body)
			if err != nil {
				return false, err
			}
			top.refs = make([]ObjectId, 1+len(refs.Parents))
			top.refs[0] = refs.Tree
			copy(top.refs[1:], refs.Parents)

			// Tree first, parents after: reversed from encrypt_push_ref, but
			// harmless since every id here is resolved by content address
			// and written back through a pointer regardless of push order.
			pushedAny := false
			for i := range top.refs {
				if e.pushOrResolve(stack, top.refs[i], &top.refs[i]) {
					pushedAny = true
				}
			}
			if pushedAny {
				return true, nil
			}

		case KindTree:
			entries, err := ParseTreeEntries(body, e.idWidth())
			if err != nil {
				return false, err
			}
			var childRefs []ObjectId
			for _, entry := range entries {
				if entry.Gitlink {
					continue
				}
				childRefs = append(childRefs, entry.Id)
			}
			top.refs = childRefs

			pushedAny := false
			for i := range top.refs {
				if e.pushOrResolve(stack, top.refs[i], &top.refs[i]) {
					pushedAny = true
				}
			}
			if pushedAny {
				return true, nil
			}

		case KindBlob:
			// no outgoing edges

		default:
			return false, fmt.Errorf("%w: object %s has unknown kind", ErrCorruption, top.id)
		}
	}

	return false, e.finish(top)
}

// pushOrResolve either resolves ref immediately from the pair table
// (writing the result into *target) or pushes a new task for it onto the
// stack, returning true in that case.
func (e *GraphEncryptor) pushOrResolve(stack *[]*encTask, ref ObjectId, target *ObjectId) bool {
	if mapped, ok := e.Pairs.Find(ref); ok {
		*target = mapped
		return false
	}
	*stack = append(*stack, &encTask{target: target, id: ref})
	return true
}

// finish encrypts a fully-resolved task (every ref in top.refs, if any,
// already holds a ciphertext id) and writes the result into *top.target.
func (e *GraphEncryptor) finish(top *encTask) error {
	if mapped, ok := e.Pairs.Find(top.id); ok {
		*top.target = mapped
		return nil
	}

	var newID ObjectId
	var err error
	switch top.kind {
	case KindCommit:
		newID, err = e.encryptCommit(top)
	case KindTree:
		newID, err = e.encryptTree(top)
	case KindBlob:
		newID, err = e.encryptBlob(top.id, top.body)
	default:
		return fmt.Errorf("%w: cannot encrypt object of unknown kind", ErrCorruption)
	}
	if err != nil {
		return err
	}

	if err := e.Pairs.Insert(top.id, newID); err != nil {
		return err
	}
	*top.target = newID
	e.Written = append(e.Written, newID)
	if e.OnObject != nil {
		e.OnObject()
	}
	return nil
}

func (e *GraphEncryptor) encryptBlob(id ObjectId, body []byte) (ObjectId, error) {
	ciphertext, err := EncodeObject(e.Password, id, body)
	if err != nil {
		return ObjectId{}, err
	}
	newID, err := e.Store.WriteObject(KindBlob, ciphertext)
	if err != nil {
		return ObjectId{}, fmt.Errorf("%w: writing encrypted blob: %v", ErrStore, err)
	}
	return newID, nil
}

func (e *GraphEncryptor) encryptCommit(top *encTask) (ObjectId, error) {
	ciphertext, err := EncodeObject(e.Password, top.id, top.body)
	if err != nil {
		return ObjectId{}, err
	}

	var out []byte
	out = append(out, "tree "...)
	out = append(out, top.refs[0].String()...)
	out = append(out, '\n')
	for _, parent := range top.refs[1:] {
		out = append(out, "parent "...)
		out = append(out, parent.String()...)
		out = append(out, '\n')
	}
	out = append(out, commitFooter...)
	out = append(out, encodeBase64Lines(ciphertext)...)

	newID, err := e.Store.WriteObject(KindCommit, out)
	if err != nil {
		return ObjectId{}, fmt.Errorf("%w: writing encrypted commit: %v", ErrStore, err)
	}
	return newID, nil
}

func (e *GraphEncryptor) encryptTree(top *encTask) (ObjectId, error) {
	// The tree's own plaintext bytes are encrypted and stored as a self
	// blob; its ciphertext id becomes the trailing sentinel of the index
	// tree built below. It is recorded in Written like any other
	// encrypted object, so a push ships it alongside the tree.
	selfID, err := e.encryptBlob(top.id, top.body)
	if err != nil {
		return ObjectId{}, err
	}
	e.Written = append(e.Written, selfID)

	entries, err := ParseTreeEntries(top.body, e.idWidth())
	if err != nil {
		return ObjectId{}, err
	}

	width := decimalWidth(len(top.refs))

	var out []byte
	i := 0
	for _, entry := range entries {
		if entry.Gitlink {
			continue
		}
		out = append(out, fmt.Sprintf("%o ", entry.Mode)...)
		out = append(out, fmt.Sprintf("%0*d", width, i)...)
		out = append(out, 0)
		out = append(out, top.refs[i][:e.idWidth()]...)
		i++
	}
	if i != len(top.refs) {
		return ObjectId{}, fmt.Errorf("%w: tree entry count mismatch while encrypting", ErrCorruption)
	}

	out = append(out, fmt.Sprintf("%o ", SentinelMode)...)
	out = append(out, fmt.Sprintf("%0*d", width, len(top.refs))...)
	out = append(out, 0)
	out = append(out, selfID[:e.idWidth()]...)

	newID, err := e.Store.WriteObject(KindTree, out)
	if err != nil {
		return ObjectId{}, fmt.Errorf("%w: writing encrypted tree: %v", ErrStore, err)
	}
	return newID, nil
}

func decimalWidth(n int) int {
	w := 1
	for n >= 10 {
		n /= 10
		w++
	}
	return w
}

func encodeBase64Lines(data []byte) []byte {
	var out []byte
	for len(data) > base64LineInputBytes {
		line := base64.StdEncoding.EncodeToString(data[:base64LineInputBytes])
		out = append(out, line...)
		out = append(out, '\n')
		data = data[base64LineInputBytes:]
	}
	out = append(out, base64.StdEncoding.EncodeToString(data)...)
	return out
}
