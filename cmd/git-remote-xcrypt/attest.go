package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xxwpc/git-remote-xcrypt/internal/audit"
	"github.com/xxwpc/git-remote-xcrypt/internal/helper"
	"github.com/xxwpc/git-remote-xcrypt/internal/store"
	"github.com/xxwpc/git-remote-xcrypt/internal/xconfig"
	"github.com/xxwpc/git-remote-xcrypt/internal/xcrypt"
)

// newAttestCmd signs a remote's ciphertext-graph Merkle root (the same
// root verify recomputes) with an Ed25519 or ML-DSA key, letting a team
// cryptographically attest "this is the graph we pushed." A fresh key
// pair is generated and saved alongside the signature when --key isn't
// given.
func newAttestCmd() *cobra.Command {
	var (
		algo    string
		keyPath string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "attest <remote-name>",
		Short: "Sign a remote's ciphertext-graph Merkle root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remoteName := args[0]

			defaults, err := xconfig.Load("")
			if err != nil {
				return err
			}
			if algo == "" {
				algo = defaults.AttestAlgorithm
			}

			gitDir, err := discoverGitDir()
			if err != nil {
				return err
			}
			objStore, err := store.NewLooseStore(gitDir)
			if err != nil {
				return err
			}

			refs := helper.NewRefDB(gitDir)
			heads, err := refs.ListPrefix("refs/xcrypt/remotes/" + remoteName)
			if err != nil {
				return err
			}
			if len(heads) == 0 {
				return fmt.Errorf("no tracking refs found for remote %q; run a fetch first", remoteName)
			}
			roots := make([]xcrypt.ObjectId, 0, len(heads))
			for _, id := range heads {
				roots = append(roots, id)
			}

			ids, err := walkCipherGraph(objStore, roots)
			if err != nil {
				return err
			}
			rootHex, _, err := audit.SealObjects(objStore, ids)
			if err != nil {
				return err
			}
			root, err := hex.DecodeString(rootHex)
			if err != nil {
				return fmt.Errorf("decoding Merkle root: %w", err)
			}

			alg := audit.Algorithm(algo)

			if keyPath == "" {
				keyPath = defaults.AttestKeyPath
			}

			var priv []byte
			if keyPath != "" {
				priv, err = os.ReadFile(keyPath)
				if err != nil {
					return fmt.Errorf("reading signing key: %w", err)
				}
			} else {
				var pub []byte
				priv, pub, err = audit.GenerateKey(alg)
				if err != nil {
					return err
				}
				privFile := remoteName + ".attest.key"
				pubFile := remoteName + ".attest.pub"
				if err := os.WriteFile(privFile, priv, 0o600); err != nil {
					return fmt.Errorf("saving private key: %w", err)
				}
				if err := os.WriteFile(pubFile, pub, 0o644); err != nil {
					return fmt.Errorf("saving public key: %w", err)
				}
				fmt.Printf("generated %s key pair: %s, %s\n", alg, privFile, pubFile)
			}

			sig, err := audit.Sign(alg, priv, root)
			if err != nil {
				return err
			}

			if outPath == "" {
				outPath = remoteName + ".attest.sig"
			}
			if err := os.WriteFile(outPath, sig, 0o644); err != nil {
				return fmt.Errorf("writing signature: %w", err)
			}

			fmt.Printf("root:      %s\n", rootHex)
			fmt.Printf("algorithm: %s\n", alg)
			fmt.Printf("signature: %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&algo, "algo", "", `signing algorithm: "ed25519", "ML-DSA-65", or "ML-DSA-87" (default from config, else ed25519)`)
	cmd.Flags().StringVar(&keyPath, "key", "", "path to an existing raw private key (default from config, else generates a fresh pair)")
	cmd.Flags().StringVar(&outPath, "out", "", "output signature path (default <remote-name>.attest.sig)")

	return cmd
}
