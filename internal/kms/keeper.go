// Package kms decrypts configuration secrets with a KMS key. WEBHOOK_SECRET and
// PROVIDER_ACCESS_TOKEN may be stored as base64 ciphertexts when KMS_KEY_URI is set.
package kms

import (
	"context"
	"encoding/base64"
	"strings"

	"gocloud.dev/secrets"

	"github.com/allisson/payment-reconciler/internal/config"
	apperrors "github.com/allisson/payment-reconciler/internal/errors"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// Keeper is the subset of *secrets.Keeper used here.
type Keeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// OpenKeeper opens a keeper for keyURI.
// Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
func OpenKeeper(ctx context.Context, keyURI string) (Keeper, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to open KMS keeper")
	}
	return keeper, nil
}

// EncryptValue encrypts plaintext and returns it base64 encoded, ready for an env var.
func EncryptValue(ctx context.Context, keeper Keeper, plaintext string) (string, error) {
	ciphertext, err := keeper.Encrypt(ctx, []byte(plaintext))
	if err != nil {
		return "", apperrors.Wrap(err, "failed to encrypt value")
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptValue reverses EncryptValue.
func DecryptValue(ctx context.Context, keeper Keeper, encoded string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", apperrors.Wrap(err, "failed to decode ciphertext")
	}
	plaintext, err := keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to decrypt value")
	}
	return string(plaintext), nil
}

// DecryptConfig replaces the encrypted secrets of cfg with their plaintext. It does
// nothing when no KMS key is configured.
func DecryptConfig(ctx context.Context, cfg *config.Config) error {
	if cfg.KMSKeyURI == "" {
		return nil
	}

	keeper, err := OpenKeeper(ctx, cfg.KMSKeyURI)
	if err != nil {
		return err
	}
	defer func() {
		_ = keeper.Close()
	}()

	fields := []struct {
		name  string
		value *string
	}{
		{"WEBHOOK_SECRET", &cfg.WebhookSecret},
		{"PROVIDER_ACCESS_TOKEN", &cfg.ProviderAccessToken},
	}
	for _, f := range fields {
		if *f.value == "" {
			continue
		}
		plaintext, err := DecryptValue(ctx, keeper, *f.value)
		if err != nil {
			return apperrors.Wrapf(err, "failed to decrypt %s", f.name)
		}
		*f.value = plaintext
	}

	return nil
}
