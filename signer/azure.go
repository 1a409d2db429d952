package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/ethsigner/config"
	"github.com/ruteri/ethsigner/interfaces"
)

// azureKeyClient is the subset of *azkeys.Client used by the azure backend.
type azureKeyClient interface {
	GetKey(ctx context.Context, name string, version string, options *azkeys.GetKeyOptions) (azkeys.GetKeyResponse, error)
	Sign(ctx context.Context, name string, version string, parameters azkeys.SignParameters, options *azkeys.SignOptions) (azkeys.SignResponse, error)
}

func newAzureClient(cfg config.AzureSignerConfig, clientSecret string) (azureKeyClient, error) {
	credential, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, clientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	client, err := azkeys.NewClient(cfg.VaultURL(), credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}
	return client, nil
}

// AzureSigner signs digests with an ES256K key that never leaves Key Vault.
type AzureSigner struct {
	client     azureKeyClient
	keyName    string
	keyVersion string
	address    common.Address
}

func newAzureSigner(ctx context.Context, client azureKeyClient, cfg config.AzureSignerConfig) (*AzureSigner, error) {
	resp, err := client.GetKey(ctx, cfg.KeyName, cfg.KeyVersion, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch key %s/%s: %w", cfg.KeyName, cfg.KeyVersion, err)
	}

	pub, err := azurePublicKey(resp.Key)
	if err != nil {
		return nil, err
	}

	return &AzureSigner{
		client:     client,
		keyName:    cfg.KeyName,
		keyVersion: cfg.KeyVersion,
		address:    crypto.PubkeyToAddress(*pub),
	}, nil
}

func azurePublicKey(key *azkeys.JSONWebKey) (*ecdsa.PublicKey, error) {
	if key == nil {
		return nil, errors.New("key vault returned no key material")
	}
	if key.Crv == nil || *key.Crv != azkeys.CurveNameP256K {
		return nil, errors.New("key vault key is not a secp256k1 (P-256K) key")
	}
	if len(key.X) > 32 || len(key.Y) > 32 {
		return nil, errors.New("key vault key has malformed coordinates")
	}

	point := make([]byte, 65)
	point[0] = 0x04
	copy(point[33-len(key.X):33], key.X)
	copy(point[65-len(key.Y):], key.Y)

	pub, err := crypto.UnmarshalPubkey(point)
	if err != nil {
		return nil, fmt.Errorf("invalid key vault public key: %w", err)
	}
	return pub, nil
}

func (s *AzureSigner) Address() common.Address {
	return s.address
}

func (s *AzureSigner) SignHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	resp, err := s.client.Sign(ctx, s.keyName, s.keyVersion, azkeys.SignParameters{
		Algorithm: to.Ptr(azkeys.SignatureAlgorithmES256K),
		Value:     hash.Bytes(),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: key vault sign request: %v", interfaces.ErrSigningFailed, err)
	}
	if len(resp.Result) != 64 {
		return nil, fmt.Errorf("%w: unexpected key vault signature length %d", interfaces.ErrSigningFailed, len(resp.Result))
	}

	r := new(big.Int).SetBytes(resp.Result[:32])
	sv := new(big.Int).SetBytes(resp.Result[32:])
	return recoverableSignature(hash, r, sv, s.address)
}
