package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	flagVerbose bool
	flagQuiet   bool
)

// NewRootCmd builds the top-level cobra command for every subcommand that
// runs outside the stdin/stdout remote-helper protocol loop: add, clear,
// clone, verify, attest.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "git-remote-xcrypt",
		Short:   "Transparent encryption layer for a content-addressed remote",
		Long:    "git-remote-xcrypt encrypts a repository's commit/tree/blob graph on push and decrypts it on fetch, so an untrusted remote only ever sees a structurally valid but semantically opaque graph.",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if flagVerbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			if flagQuiet {
				zerolog.SetGlobalLevel(zerolog.ErrorLevel)
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&flagVerbose, "verbose", false, "enable debug logging")
	pf.BoolVar(&flagQuiet, "quiet", false, "minimal output (errors only)")

	root.AddCommand(newAddCmd())
	root.AddCommand(newClearCmd())
	root.AddCommand(newCloneCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newAttestCmd())

	return root
}

// Execute runs the root command and exits with the correct code.
func Execute() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
