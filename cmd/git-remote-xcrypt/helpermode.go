package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/xxwpc/git-remote-xcrypt/internal/audit"
	"github.com/xxwpc/git-remote-xcrypt/internal/helper"
	"github.com/xxwpc/git-remote-xcrypt/internal/progress"
	"github.com/xxwpc/git-remote-xcrypt/internal/secretsource"
	"github.com/xxwpc/git-remote-xcrypt/internal/store"
	"github.com/xxwpc/git-remote-xcrypt/internal/transport"
	"github.com/xxwpc/git-remote-xcrypt/internal/xconfig"
	"github.com/xxwpc/git-remote-xcrypt/internal/xcrypt"
)

// runHelper implements remote_helper() from the reference implementation:
// exactly three arguments (program name, remote name, remote url), then
// the capabilities/list/fetch/push loop over stdin/stdout.
func runHelper(gitDir string, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: git-remote-xcrypt expects exactly 2 arguments when GIT_DIR is set, got %d", xcrypt.ErrProtocol, len(args)-1)
	}
	remoteName, remoteURL := args[1], args[2]
	log.Debug().Str("remote", remoteName).Str("url", remoteURL).Msg("remote-helper invocation")

	defaults, err := xconfig.Load("")
	if err != nil {
		return err
	}
	xcrypt.SetCompressionLevel(defaults.CompressionLevel)

	var auditLog audit.Logger = audit.NopLogger{}
	if defaults.AuditLog != "" {
		fileLog, err := audit.NewFileLogger(defaults.AuditLog)
		if err != nil {
			log.Error().Err(err).Str("path", defaults.AuditLog).Msg("opening audit log, falling back to no audit logging")
		} else {
			auditLog = fileLog
		}
	}

	cfg := secretsource.NewGitConfig(secretsource.DiscoverGitConfigPath(gitDir))
	rawSecret, err := cfg.SecretKey(remoteName)
	if err != nil {
		return err
	}
	secret, err := secretsource.Resolve(rawSecret)
	if err != nil {
		return err
	}
	pw, err := xcrypt.DerivePassword(secret)
	if err != nil {
		return err
	}

	objStore, err := store.NewLooseStore(gitDir)
	if err != nil {
		return err
	}

	ompPath := xcrypt.OmpPath(gitDir, remoteName)
	pairs, err := xcrypt.LoadPairTable(ompPath, pw, objStore)
	if err != nil {
		return err
	}

	// Runs on both the ordinary return path and a SIGINT. The atomic
	// rename inside Store means either the pre-session or the
	// fully-updated file lands on disk, never a half-written one.
	stored := false
	storeOMP := func() {
		if stored {
			return
		}
		stored = true
		if err := pairs.Store(); err != nil {
			log.Error().Err(err).Msg("storing pair table")
		}
	}
	defer storeOMP()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	go func() {
		if _, ok := <-sigCh; ok {
			storeOMP()
			os.Exit(xcrypt.ExitGenericError)
		}
	}()
	defer signal.Stop(sigCh)

	refsMirrorDir := filepath.Join(gitDir, "xcrypt", "remote-refs", remoteName)
	tp := transport.NewDirTransport(filepath.Join(gitDir, "objects"), refsMirrorDir, remoteURL)

	counters := &progress.Counters{}
	reporter := progress.NewReporter(os.Stderr, counters)
	defer reporter.Stop()

	refs := helper.NewRefDB(gitDir)

	d := helper.New(remoteName, remoteURL, objStore, pairs, pw, tp, refs, counters, auditLog, os.Stdin, os.Stdout)
	return d.Run()
}
