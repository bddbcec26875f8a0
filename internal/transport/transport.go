// Package transport moves ciphertext objects and refs between the local
// object store and the remote the CAVCS repository is configured against.
// It never sees plaintext: everything it reads or writes has already
// passed through the graph encryptor or is about to pass through the
// graph decryptor.
package transport

import "github.com/xxwpc/git-remote-xcrypt/internal/xcrypt"

// Direction distinguishes a fetch connection from a push connection, the
// same split the remote-helper driver negotiates per invocation.
type Direction int

const (
	Fetch Direction = iota
	Push
)

// RemoteHead is one entry of the remote's advertised ref list: either a
// concrete ciphertext commit id, or a symref pointing at another name
// (HEAD pointing at a branch, typically).
type RemoteHead struct {
	Id           xcrypt.ObjectId
	Name         string
	SymrefTarget string
}

// RefUpdate is one requested ref change: move Dst to point at the
// ciphertext commit Src currently resolves to, or remove Dst entirely
// when Delete is set (Src is then meaningless).
type RefUpdate struct {
	Src    xcrypt.ObjectId
	Dst    string
	Force  bool
	Delete bool
}

// UpdateResult reports the outcome of one RefUpdate.
type UpdateResult struct {
	Ref RefUpdate
	Err error
}

// Transport is the network-facing collaborator the remote-helper driver
// talks to. Implementations never interpret object contents; they only
// move bytes and ref pointers.
type Transport interface {
	// Connect prepares the transport for a fetch or push session.
	Connect(dir Direction) error
	// Ls lists the remote's currently advertised refs.
	Ls() ([]RemoteHead, error)
	// NegotiateFetch tells the transport which advertised ciphertext
	// commits the caller wants, i.e. the heads missing from the local
	// object store.
	NegotiateFetch(roots []xcrypt.ObjectId) error
	// DownloadPack transfers whatever objects negotiation determined are
	// missing into the local object store.
	DownloadPack() error
	// Upload transfers exactly the given objects (and no others — the
	// local object store may hold plaintext objects alongside ciphertext
	// ones, so a transport must never mirror it wholesale) and applies
	// refspecs, reporting one UpdateResult per ref via onUpdate as each
	// update completes.
	Upload(refspecs []RefUpdate, objectIDs []xcrypt.ObjectId, onUpdate func(UpdateResult)) error
	// Close releases any connection state.
	Close() error
}
