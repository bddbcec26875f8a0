// Package secretsource resolves the one mandatory configuration read the
// core needs — a remote's secret-key string — from git's config file,
// and optionally unwraps that string through a cloud KMS before it ever
// reaches key derivation.
package secretsource

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-ini/ini"
)

// Config is the configuration surface the core consumes: one read, by
// remote name, of the secret-key string.
type Config interface {
	SecretKey(remoteName string) (string, error)
}

// GitConfig reads remote.<name>.xcrypt-secret-key out of a git config
// file using the same `[section "subsection"] key = value` syntax git
// itself writes.
type GitConfig struct {
	path string
}

// NewGitConfig returns a Config backed by the config file at path.
func NewGitConfig(path string) *GitConfig {
	return &GitConfig{path: path}
}

// DiscoverGitConfigPath finds the config file for the repository rooted
// at gitDir, the same lookup `git config` performs for a local value:
// gitDir/config.
func DiscoverGitConfigPath(gitDir string) string {
	return filepath.Join(gitDir, "config")
}

// SecretKey returns the raw (possibly KMS-wrapped) value of
// remote.<remoteName>.xcrypt-secret-key.
func (c *GitConfig) SecretKey(remoteName string) (string, error) {
	if _, err := os.Stat(c.path); err != nil {
		return "", fmt.Errorf("%w: reading git config %s: %v", errConfigMissing, c.path, err)
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{AllowNonUniqueSections: true}, c.path)
	if err != nil {
		return "", fmt.Errorf("%w: parsing git config %s: %v", errConfigMissing, c.path, err)
	}

	section := cfg.Section(fmt.Sprintf(`remote "%s"`, remoteName))
	key := section.Key("xcrypt-secret-key")
	if key.Value() == "" {
		return "", fmt.Errorf("%w: remote.%s.xcrypt-secret-key is not set", errConfigMissing, remoteName)
	}
	return key.Value(), nil
}
