// Package xconfig loads optional local defaults: the codec's compression
// level and the audit log path, read by the remote-helper loop, and the
// attest signing key/algorithm, used when the attest command gets no
// explicit flag. It never substitutes for the one mandatory git-config
// read internal/secretsource performs.
package xconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// EnvConfigPath overrides the default config file lookup.
const EnvConfigPath = "XCRYPT_CONFIG"

// Defaults holds the merged local configuration.
type Defaults struct {
	CompressionLevel int    `mapstructure:"compression_level"`
	AttestAlgorithm  string `mapstructure:"attest_algorithm"`
	AttestKeyPath    string `mapstructure:"attest_key_path"`
	AuditLog         string `mapstructure:"audit_log"`
}

// defaultDefaults is the built-in fallback before any file is read.
func defaultDefaults() Defaults {
	return Defaults{
		CompressionLevel: 3,
		AttestAlgorithm:  "ed25519",
	}
}

// Load reads configPath (or discovers ~/.xcryptrc.yaml / $XCRYPT_CONFIG)
// and returns the merged defaults. A missing file is not an error: the
// built-in defaults are returned unchanged.
func Load(configPath string) (Defaults, error) {
	base := defaultDefaults()

	if configPath == "" {
		configPath = os.Getenv(EnvConfigPath)
	}
	if configPath == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			configPath = filepath.Join(home, ".xcryptrc.yaml")
		}
	}
	if configPath == "" {
		return base, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) && errors.Is(pathErr.Err, fs.ErrNotExist) {
			return base, nil
		}
		if errors.As(err, new(viper.ConfigFileNotFoundError)) {
			return base, nil
		}
		return base, fmt.Errorf("xconfig: reading %s: %w", configPath, err)
	}

	if v.IsSet("compression_level") {
		base.CompressionLevel = v.GetInt("compression_level")
	}
	if v.IsSet("attest_algorithm") {
		base.AttestAlgorithm = v.GetString("attest_algorithm")
	}
	if v.IsSet("attest_key_path") {
		base.AttestKeyPath = v.GetString("attest_key_path")
	}
	if v.IsSet("audit_log") {
		base.AuditLog = v.GetString("audit_log")
	}

	return base, nil
}
