package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/allisson/payment-reconciler/internal/kms"
)

// RunEncryptSecret encrypts value with the key at keyURI and prints the base64 ciphertext
// to use as WEBHOOK_SECRET or PROVIDER_ACCESS_TOKEN together with KMS_KEY_URI.
func RunEncryptSecret(ctx context.Context, writer io.Writer, keyURI, value string) error {
	if strings.TrimSpace(keyURI) == "" {
		return fmt.Errorf("kms key uri is required")
	}
	if value == "" {
		return fmt.Errorf("value is required")
	}

	keeper, err := kms.OpenKeeper(ctx, keyURI)
	if err != nil {
		return fmt.Errorf("failed to open kms keeper: %w", err)
	}
	defer func() {
		_ = keeper.Close()
	}()

	ciphertext, err := kms.EncryptValue(ctx, keeper, value)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(writer, ciphertext)
	return err
}
