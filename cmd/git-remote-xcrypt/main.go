// Command git-remote-xcrypt is a transparent encryption layer for a
// content-addressed version-control remote. Invoked by git itself (with
// GIT_DIR set) as `git-remote-xcrypt <remote-name> <remote-url>`, it runs
// the line-oriented remote-helper protocol loop. Invoked directly by a
// user, it exposes a small set of supplemental subcommands
// (add/clear/clone/verify/attest) for setup and drift detection outside
// that protocol loop.
package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/xxwpc/git-remote-xcrypt/internal/xcrypt"
	"github.com/xxwpc/git-remote-xcrypt/internal/xlog"
)

func main() {
	xlog.Init()

	if gitDir := os.Getenv("GIT_DIR"); gitDir != "" {
		err := runHelper(gitDir, os.Args)
		if err != nil {
			log.Error().Err(err).Msg("git-remote-xcrypt failed")
		}
		os.Exit(xcrypt.ExitCodeForError(err))
	}

	Execute()
}
