// Package revwalk discovers which commits a push or fetch needs to carry
// across the remote: the ancestry of a set of head commits, minus the
// ancestry of a set of already-known commits. The graph walkers in
// internal/xcrypt then take that flat set and encrypt or decrypt it.
package revwalk

import (
	"fmt"

	"github.com/xxwpc/git-remote-xcrypt/internal/xcrypt"
)

// ParentLister resolves a commit's parent commit ids. A Store satisfies
// this by reading the commit and parsing its ref header.
type ParentLister interface {
	Parents(id xcrypt.ObjectId) ([]xcrypt.ObjectId, error)
}

// StoreParentLister adapts an xcrypt.Store into a ParentLister by reading
// and parsing each commit it's asked about.
type StoreParentLister struct {
	Store xcrypt.Store
}

// Parents reads id as a commit and returns its parent ids.
func (l StoreParentLister) Parents(id xcrypt.ObjectId) ([]xcrypt.ObjectId, error) {
	kind, body, err := l.Store.ReadObject(id)
	if err != nil {
		return nil, err
	}
	if kind != xcrypt.KindCommit {
		return nil, fmt.Errorf("revwalk: object %s is not a commit", id)
	}
	refs, err := xcrypt.ParseCommitRefs(body)
	if err != nil {
		return nil, fmt.Errorf("revwalk: parsing commit %s: %w", id, err)
	}
	return refs.Parents, nil
}

// Walker collects the commits reachable from a set of pushed roots,
// excluding anything reachable from a set of hidden tips. It mirrors
// libgit2's revwalk push/hide pair without the sorting machinery this
// project has no use for: callers only need the flat discovered set.
type Walker struct {
	parents ParentLister
	roots   []xcrypt.ObjectId
	hidden  map[xcrypt.ObjectId]bool
}

// NewWalker returns a Walker that resolves parents through parents.
func NewWalker(parents ParentLister) *Walker {
	return &Walker{parents: parents, hidden: make(map[xcrypt.ObjectId]bool)}
}

// Push marks id as a starting point for the walk.
func (w *Walker) Push(id xcrypt.ObjectId) {
	w.roots = append(w.roots, id)
}

// Hide excludes id and its entire ancestry from the walk's result, the
// same way a hide-glob over already-mapped remote refs keeps previously
// transferred commits out of a fetch or push.
func (w *Walker) Hide(id xcrypt.ObjectId) error {
	return w.markHidden(id)
}

func (w *Walker) markHidden(id xcrypt.ObjectId) error {
	if w.hidden[id] {
		return nil
	}
	w.hidden[id] = true

	parents, err := w.parents.Parents(id)
	if err != nil {
		return err
	}
	for _, p := range parents {
		if err := w.markHidden(p); err != nil {
			return err
		}
	}
	return nil
}

// Walk returns every commit reachable from the pushed roots that is not
// hidden, in breadth-first discovery order starting at the roots.
func (w *Walker) Walk() ([]xcrypt.ObjectId, error) {
	var (
		result []xcrypt.ObjectId
		seen   = make(map[xcrypt.ObjectId]bool)
		queue  = append([]xcrypt.ObjectId(nil), w.roots...)
	)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if seen[id] || w.hidden[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)

		parents, err := w.parents.Parents(id)
		if err != nil {
			return nil, err
		}
		queue = append(queue, parents...)
	}

	return result, nil
}
