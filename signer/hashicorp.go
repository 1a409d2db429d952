package signer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/vault/api"
	"github.com/ruteri/ethsigner/config"
)

// hashicorpKeyField is the KV field holding the hex encoded private key.
const hashicorpKeyField = "value"

// vaultReader is the subset of *api.Logical used by the hashicorp backend.
type vaultReader interface {
	ReadWithContext(ctx context.Context, path string) (*api.Secret, error)
}

func newVaultClient(cfg config.HashicorpSignerConfig, token string) (vaultReader, error) {
	vaultConfig := api.DefaultConfig()
	if vaultConfig.Error != nil {
		return nil, fmt.Errorf("failed to create Vault config: %w", vaultConfig.Error)
	}
	vaultConfig.Address = cfg.Address()
	vaultConfig.Timeout = cfg.Timeout
	vaultConfig.MaxRetries = 0

	if cfg.TLSEnabled && cfg.TLSCACertFile != "" {
		if err := vaultConfig.ConfigureTLS(&api.TLSConfig{CACert: cfg.TLSCACertFile}); err != nil {
			return nil, fmt.Errorf("failed to configure Vault TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(token)
	return client.Logical(), nil
}

// newHashicorpSigner fetches the signing key from Vault once and signs locally.
func newHashicorpSigner(ctx context.Context, client vaultReader, cfg config.HashicorpSignerConfig) (*LocalSigner, error) {
	path := strings.TrimPrefix(strings.TrimPrefix(cfg.SigningKeyPath, "/"), "v1/")

	secret, err := client.ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no secret found in Vault at %s", path)
	}

	// KV v2 nests the payload under "data"; KV v1 does not.
	data := secret.Data
	if nested, ok := secret.Data["data"].(map[string]interface{}); ok {
		data = nested
	}

	value, ok := data[hashicorpKeyField].(string)
	if !ok || value == "" {
		return nil, errors.New("secret in Vault does not contain a signing key")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(value, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signing key in Vault: %w", err)
	}
	return NewLocalSigner(key), nil
}
