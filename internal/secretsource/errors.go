package secretsource

import (
	"errors"

	"github.com/xxwpc/git-remote-xcrypt/internal/xcrypt"
)

// errConfigMissing is an alias kept local so call sites in this package
// read naturally; it wraps the same sentinel cmd/git-remote-xcrypt maps
// to an exit code.
var errConfigMissing = xcrypt.ErrConfigMissing

// ErrUnresolvable covers a recognized reference prefix whose payload is
// malformed (bad base64, wrong segment count) or whose upstream call
// fails.
var ErrUnresolvable = errors.New("secretsource: could not resolve secret reference")
