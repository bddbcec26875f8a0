package secretsource

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
)

// parseAzureKVRef splits an azurekv reference (prefix already stripped)
// of the form <vault-url>/<key-name>[/<version>]:<base64 wrapped> into
// its vault URL, key name, version, and wrapped ciphertext. The wrapped
// segment follows the last ':', since the vault URL's scheme has one too.
func parseAzureKVRef(ref string) (vaultURL, keyName, version string, wrapped []byte, err error) {
	sep := strings.LastIndex(ref, ":")
	if sep < 0 {
		return "", "", "", nil, fmt.Errorf("%w: azurekv reference must be <vault-url>/<key-name>[/<version>]:<base64 wrapped>", ErrUnresolvable)
	}
	locator, encoded := ref[:sep], ref[sep+1:]
	wrapped, err = base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", "", nil, fmt.Errorf("%w: azurekv wrapped value is not valid base64: %v", ErrUnresolvable, err)
	}

	u, err := url.Parse(locator)
	if err != nil || u.Scheme != "https" || !strings.HasSuffix(u.Host, ".vault.azure.net") {
		return "", "", "", nil, fmt.Errorf("%w: azurekv vault URL must be https://<vault>.vault.azure.net/<key-name>[/<version>]", ErrUnresolvable)
	}
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", "", "", nil, fmt.Errorf("%w: azurekv reference is missing a key name", ErrUnresolvable)
	}
	keyName = parts[0]
	if len(parts) == 2 {
		version = parts[1]
	}
	return "https://" + u.Host, keyName, version, wrapped, nil
}

// resolveAzureKV unwraps an azurekv reference via Azure Key Vault's key
// unwrap operation, recovering the literal secret string.
func resolveAzureKV(rest string) (string, error) {
	vaultURL, keyName, version, wrapped, err := parseAzureKVRef(rest)
	if err != nil {
		return "", err
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return "", fmt.Errorf("%w: loading Azure credentials: %v", ErrUnresolvable, err)
	}
	client, err := azkeys.NewClient(vaultURL, cred, nil)
	if err != nil {
		return "", fmt.Errorf("%w: creating Key Vault client: %v", ErrUnresolvable, err)
	}

	alg := azkeys.EncryptionAlgorithmRSAOAEP256
	resp, err := client.UnwrapKey(context.Background(), keyName, version, azkeys.KeyOperationParameters{
		Algorithm: &alg,
		Value:     wrapped,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("%w: Azure Key Vault unwrap: %v", ErrUnresolvable, err)
	}
	return string(resp.Result), nil
}
