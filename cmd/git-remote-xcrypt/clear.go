package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// newClearCmd implements user_command.cpp's "clear" command: remove the
// local pair-table cache files so a subsequent fetch or push re-derives
// every id pair from scratch (useful after a password rotation, or to
// reclaim disk from a long-lived OMP that has grown stale entries).
func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove local xcrypt cache files (*.omp)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gitDir, err := discoverGitDir()
			if err != nil {
				return err
			}

			matches, err := filepath.Glob(filepath.Join(gitDir, "xcrypt", "*.omp"))
			if err != nil {
				return fmt.Errorf("globbing cache files: %w", err)
			}
			for _, m := range matches {
				if err := os.Remove(m); err != nil {
					return fmt.Errorf("removing %s: %w", m, err)
				}
				fmt.Println("removed", m)
			}
			if len(matches) == 0 {
				fmt.Println("no cache files to remove")
			}
			return nil
		},
	}
	return cmd
}
