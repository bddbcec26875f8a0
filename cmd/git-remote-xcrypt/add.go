package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// newAddCmd implements user_command.cpp's "add" command: register a
// remote with the xcrypt:: scheme prefixed onto its url, then prompt for
// and store the secret key the core's Key Derivation step requires.
func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <remote-name> <url>",
		Short: "Add a remote and configure its secret key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			remoteName, url := args[0], args[1]

			if err := runGit("remote", "add", remoteName, xcryptURL(url)); err != nil {
				return err
			}

			var secret string
			err := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title(fmt.Sprintf("Secret key for remote %q", remoteName)).
						Description(`Must start with "psw:" followed by the passphrase`).
						Placeholder("psw:...").
						EchoMode(huh.EchoModePassword).
						Value(&secret),
				),
			).Run()
			if err != nil {
				return fmt.Errorf("prompting for secret key: %w", err)
			}

			if err := runGit("config", fmt.Sprintf("remote.%s.xcrypt-secret-key", remoteName), secret); err != nil {
				return err
			}

			fmt.Printf("Added remote %q -> %s\n", remoteName, xcryptURL(url))
			return nil
		},
	}
	return cmd
}
