package secretsource

import "strings"

const (
	awsKMSPrefix  = "awskms:"
	azureKVPrefix = "azurekv:"
)

// Resolver turns a recognized reference form into the literal secret
// string key derivation expects (a "psw:..." value).
type Resolver interface {
	Resolve(ref string) (string, error)
}

// Resolve recognizes the awskms: and azurekv: reference prefixes and
// dispatches to the matching cloud resolver; anything else (including a
// bare "psw:..." value) passes through unchanged, letting a team that
// doesn't use either cloud skip this layer entirely.
func Resolve(raw string) (string, error) {
	switch {
	case strings.HasPrefix(raw, awsKMSPrefix):
		return resolveAWSKMS(strings.TrimPrefix(raw, awsKMSPrefix))
	case strings.HasPrefix(raw, azureKVPrefix):
		return resolveAzureKV(strings.TrimPrefix(raw, azureKVPrefix))
	default:
		return raw, nil
	}
}
