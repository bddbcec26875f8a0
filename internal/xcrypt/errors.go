package xcrypt

import "errors"

// Exit codes for the process's fatal-error taxonomy.
const (
	ExitSuccess      = 0
	ExitGenericError = 1
	ExitConfigError  = 10
	ExitInputTooBig  = 11
	ExitCorruption   = 12
	ExitStoreError   = 13
	ExitTransport    = 14
	ExitProtocol     = 15
)

// Sentinel errors for the fatal-error taxonomy. Every fatal error in the
// core wraps one of these so the driver can map it to an exit code and a
// diagnostic without string-matching.
var (
	// ErrConfigMissing covers a missing or malformed secret key.
	ErrConfigMissing = errors.New("xcrypt: missing or malformed secret key")
	// ErrInputTooLarge covers plaintext over 128 MiB - 1, or a commit body
	// that would overflow the scratch buffer.
	ErrInputTooLarge = errors.New("xcrypt: input exceeds maximum size")
	// ErrCorruption covers OMP checksum/length mismatches, AES decryption
	// failures, and frame header/trailer mismatches.
	ErrCorruption = errors.New("xcrypt: corrupted ciphertext or database")
	// ErrStore covers underlying CAVCS read/write/exists failures.
	ErrStore = errors.New("xcrypt: object store error")
	// ErrTransport covers network operation failures.
	ErrTransport = errors.New("xcrypt: transport error")
	// ErrProtocol covers an unknown stdin command or a malformed refspec.
	ErrProtocol = errors.New("xcrypt: protocol error")
)

// ExitCodeForError maps a fatal error to a process exit code.
func ExitCodeForError(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrConfigMissing):
		return ExitConfigError
	case errors.Is(err, ErrInputTooLarge):
		return ExitInputTooBig
	case errors.Is(err, ErrCorruption):
		return ExitCorruption
	case errors.Is(err, ErrStore):
		return ExitStoreError
	case errors.Is(err, ErrTransport):
		return ExitTransport
	case errors.Is(err, ErrProtocol):
		return ExitProtocol
	default:
		return ExitGenericError
	}
}
