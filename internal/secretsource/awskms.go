package secretsource

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// awsEncryptionContextKey/Value pin the encryption context so a ciphertext
// minted for another purpose can't be replayed as a secret-key reference.
const (
	awsEncryptionContextKey   = "git-remote-xcrypt"
	awsEncryptionContextValue = "secret-key"
)

// resolveAWSKMS decrypts an awskms:<key-id>:<base64 ciphertext> reference
// (the prefix already stripped) into the literal secret string.
func resolveAWSKMS(rest string) (string, error) {
	keyID, encoded, ok := strings.Cut(rest, ":")
	if !ok {
		return "", fmt.Errorf("%w: awskms reference must be <key-id>:<base64 ciphertext>", ErrUnresolvable)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: awskms ciphertext is not valid base64: %v", ErrUnresolvable, err)
	}

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: loading AWS credentials: %v", ErrUnresolvable, err)
	}
	client := kms.NewFromConfig(cfg)

	out, err := client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:             aws.String(keyID),
		CiphertextBlob:    ciphertext,
		EncryptionContext: map[string]string{awsEncryptionContextKey: awsEncryptionContextValue},
	})
	if err != nil {
		return "", fmt.Errorf("%w: AWS KMS decrypt: %v", ErrUnresolvable, err)
	}
	return string(out.Plaintext), nil
}
