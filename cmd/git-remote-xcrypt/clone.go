package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCloneCmd implements user_command.cpp's "clone" command: prefix the
// url with xcrypt:: and hand off to ordinary `git clone`, which then
// invokes this same binary as the remote helper for the initial fetch.
func newCloneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clone <url> [dir]",
		Short: "Clone an encrypted repository",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gitArgs := []string{"clone", xcryptURL(args[0])}
			if len(args) == 2 {
				gitArgs = append(gitArgs, args[1])
			}
			if err := runGit(gitArgs...); err != nil {
				return err
			}
			fmt.Println("cloned", xcryptURL(args[0]))
			return nil
		},
	}
	return cmd
}
