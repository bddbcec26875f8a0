package xcrypt

import (
	"bytes"
	"encoding/base64"
	"fmt"
)

// GraphDecryptor walks a ciphertext object graph — breadth-first, biased
// toward depth by inserting newly discovered dependencies at the front of
// its worklist — and rewrites it back into the original plaintext graph.
type GraphDecryptor struct {
	Store      Store
	Pairs      *PairTable
	Password   Password
	RawIDWidth int

	// OnObject, if set, is called once per object actually decrypted
	// (not for objects resolved from the pair table). Callers wire this
	// to a progress counter; it is never required for correctness.
	OnObject func()
}

func (d *GraphDecryptor) idWidth() int {
	if d.RawIDWidth == 0 {
		return ShortSize
	}
	return d.RawIDWidth
}

// DecryptRoots decrypts every object reachable from roots (a commit's
// parents are expected to arrive as separate roots of their own — only a
// commit's tree is chased automatically) and returns each root's
// plaintext id, in the order given.
func (d *GraphDecryptor) DecryptRoots(roots []ObjectId) ([]ObjectId, error) {
	list := append([]ObjectId(nil), roots...)
	seen := make(map[ObjectId]bool, len(roots))
	for _, r := range roots {
		seen[r] = true
	}

	for len(list) > 0 {
		id := list[0]

		kind, body, err := d.Store.ReadObject(id)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrStore, id, err)
		}

		refs, err := d.dependencyRefs(kind, body)
		if err != nil {
			return nil, err
		}
		fresh := make([]ObjectId, 0, len(refs))
		for _, ref := range refs {
			if !seen[ref] {
				seen[ref] = true
				fresh = append(fresh, ref)
			}
		}
		if len(fresh) > 0 {
			list = append(fresh, list...)
			// list[0] is still id: fresh entries were inserted ahead of it.
			continue
		}

		if err := d.decryptOne(id, kind, body); err != nil {
			return nil, err
		}
		list = list[1:]
	}

	results := make([]ObjectId, len(roots))
	for i, root := range roots {
		mapped, ok := d.Pairs.Find(root)
		if !ok {
			return nil, fmt.Errorf("%w: %s was not decrypted", ErrCorruption, root)
		}
		results[i] = mapped
	}
	return results, nil
}

// dependencyRefs returns the ciphertext ids that must be decrypted before
// id itself: a commit's tree, or an index tree's child entries (excluding
// its trailing self-blob sentinel, which decryptTree handles directly).
func (d *GraphDecryptor) dependencyRefs(kind ObjectKind, body []byte) ([]ObjectId, error) {
	switch kind {
	case KindCommit:
		refs, err := ParseCommitRefs(body)
		if err != nil {
			return nil, err
		}
		return []ObjectId{refs.Tree}, nil

	case KindTree:
		entries, err := ParseTreeEntries(body, d.idWidth())
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, fmt.Errorf("%w: ciphertext tree has no sentinel entry", ErrCorruption)
		}
		refs := make([]ObjectId, len(entries)-1)
		for i := 0; i < len(entries)-1; i++ {
			refs[i] = entries[i].Id
		}
		return refs, nil

	default:
		return nil, nil
	}
}

// decryptOne resolves id via the pair table if already known, otherwise
// decrypts it and records the new mapping.
func (d *GraphDecryptor) decryptOne(id ObjectId, kind ObjectKind, body []byte) error {
	if _, ok := d.Pairs.Find(id); ok {
		return nil
	}

	var newID ObjectId
	var err error
	switch kind {
	case KindCommit:
		newID, err = d.decryptCommit(id, body)
	case KindTree:
		newID, err = d.decryptTree(id, body)
	case KindBlob:
		newID, err = d.decryptAndStore(KindBlob, body)
	default:
		return fmt.Errorf("%w: cannot decrypt object of unknown kind", ErrCorruption)
	}
	if err != nil {
		return err
	}

	if err := d.Pairs.Insert(id, newID); err != nil {
		return err
	}
	if d.OnObject != nil {
		d.OnObject()
	}
	return nil
}

// decryptAndStore opens the codec layer over ciphertext, writes the
// recovered plaintext into the store under kind, and checks the result's
// content-address against the hash the codec frame declared.
func (d *GraphDecryptor) decryptAndStore(kind ObjectKind, ciphertext []byte) (ObjectId, error) {
	declared, plain, err := DecodeObject(d.Password, ciphertext)
	if err != nil {
		return ObjectId{}, err
	}

	actual, err := d.Store.WriteObject(kind, plain)
	if err != nil {
		return ObjectId{}, fmt.Errorf("%w: writing decrypted object: %v", ErrStore, err)
	}

	w := d.idWidth()
	for i := 0; i < w; i++ {
		if declared[i] != actual[i] {
			return ObjectId{}, fmt.Errorf("%w: decrypted object hash does not match codec frame", ErrCorruption)
		}
	}

	return actual, nil
}

func (d *GraphDecryptor) decryptCommit(id ObjectId, body []byte) (ObjectId, error) {
	sep := bytes.Index(body, []byte("\n\n"))
	if sep < 0 {
		return ObjectId{}, fmt.Errorf("%w: encrypted commit missing header/payload separator", ErrCorruption)
	}
	payload := body[sep+2:]

	var b64 []byte
	for len(payload) > base64LineWidth {
		if payload[base64LineWidth] != '\n' {
			return ObjectId{}, fmt.Errorf("%w: encrypted commit payload line not newline-terminated", ErrCorruption)
		}
		b64 = append(b64, payload[:base64LineWidth]...)
		payload = payload[base64LineWidth+1:]
	}
	b64 = append(b64, payload...)

	ciphertext, err := base64.StdEncoding.DecodeString(string(b64))
	if err != nil {
		return ObjectId{}, fmt.Errorf("%w: decoding commit payload: %v", ErrCorruption, err)
	}

	return d.decryptAndStore(KindCommit, ciphertext)
}

func (d *GraphDecryptor) decryptTree(id ObjectId, body []byte) (ObjectId, error) {
	entries, err := ParseTreeEntries(body, d.idWidth())
	if err != nil {
		return ObjectId{}, err
	}
	if len(entries) == 0 {
		return ObjectId{}, fmt.Errorf("%w: ciphertext tree has no sentinel entry", ErrCorruption)
	}
	selfID := entries[len(entries)-1].Id

	selfKind, selfBody, err := d.Store.ReadObject(selfID)
	if err != nil {
		return ObjectId{}, fmt.Errorf("%w: reading tree self blob %s: %v", ErrStore, selfID, err)
	}
	if selfKind != KindBlob {
		return ObjectId{}, fmt.Errorf("%w: tree sentinel %s is not a blob", ErrCorruption, selfID)
	}

	return d.decryptAndStore(KindTree, selfBody)
}
