package signer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ruteri/ethsigner/config"
	"github.com/ruteri/ethsigner/interfaces"
	"github.com/ruteri/ethsigner/secrets"
)

// ErrReadSecretFile is the uniform cause reported when any backend's secret
// file cannot be read.
var ErrReadSecretFile = errors.New("error when reading the secret from file")

// Selector builds the signer described by a config.SignerConfig. It holds no
// state between calls; each call loads its secret afresh.
type Selector struct {
	loadSecret secrets.Loader
	log        *slog.Logger

	newAzureClient func(cfg config.AzureSignerConfig, clientSecret string) (azureKeyClient, error)
	newKMSClient   func(cfg config.AWSKMSSignerConfig, secretAccessKey string) (kmsClient, error)
	newVaultClient func(cfg config.HashicorpSignerConfig, token string) (vaultReader, error)
}

// NewSelector returns a Selector that reads secrets from disk and talks to
// the real remote backends.
func NewSelector(log *slog.Logger) *Selector {
	return &Selector{
		loadSecret:     secrets.LoadSecret,
		log:            log,
		newAzureClient: newAzureClient,
		newKMSClient:   newKMSClient,
		newVaultClient: newVaultClient,
	}
}

// WithSecretLoader returns a copy of the selector reading secrets through load.
func (sel *Selector) WithSecretLoader(load secrets.Loader) *Selector {
	clone := *sel
	clone.loadSecret = load
	return &clone
}

// CreateSignerProvider builds the configured signer and wraps it in a
// single-signer provider.
func (sel *Selector) CreateSignerProvider(ctx context.Context, cfg config.SignerConfig) (interfaces.TransactionSignerProvider, error) {
	signer, err := sel.CreateSigner(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewSingleSignerProvider(signer), nil
}

// CreateSigner loads the backend's secret, then constructs the backend.
// Secret loading always happens before any network authentication.
func (sel *Selector) CreateSigner(ctx context.Context, cfg config.SignerConfig) (interfaces.TransactionSigner, error) {
	if cfg == nil {
		return nil, interfaces.NewInitializationError("no signer configured", nil)
	}

	var (
		signer interfaces.TransactionSigner
		err    error
	)

	switch c := cfg.(type) {
	case config.FileBasedSignerConfig:
		password, serr := sel.readSecret(c.PasswordFile)
		if serr != nil {
			return nil, serr
		}
		signer, err = newFileBasedSigner(c, password)

	case config.HashicorpSignerConfig:
		token, serr := sel.readSecret(c.AuthTokenPath)
		if serr != nil {
			return nil, serr
		}
		var client vaultReader
		client, err = sel.newVaultClient(c, token)
		if err == nil {
			signer, err = newHashicorpSigner(ctx, client, c)
		}

	case config.AzureSignerConfig:
		clientSecret, serr := sel.readSecret(c.ClientSecretPath)
		if serr != nil {
			return nil, serr
		}
		var client azureKeyClient
		client, err = sel.newAzureClient(c, clientSecret)
		if err == nil {
			signer, err = newAzureSigner(ctx, client, c)
		}

	case config.AWSKMSSignerConfig:
		secretAccessKey, serr := sel.readSecret(c.SecretAccessKeyPath)
		if serr != nil {
			return nil, serr
		}
		var client kmsClient
		client, err = sel.newKMSClient(c, secretAccessKey)
		if err == nil {
			signer, err = newKMSSigner(ctx, client, c)
		}

	default:
		return nil, interfaces.NewInitializationError(fmt.Sprintf("unsupported signer type %T", cfg), nil)
	}

	if err != nil {
		return nil, interfaces.NewInitializationError(fmt.Sprintf("failed to create %s", cfg.Kind()), err)
	}

	sel.log.Info("Signer initialized", "type", cfg.Kind(), "address", signer.Address().Hex())
	return signer, nil
}

func (sel *Selector) readSecret(path string) (string, error) {
	secret, err := sel.loadSecret(path)
	if err != nil {
		return "", &interfaces.InitializationError{
			Kind:    ErrReadSecretFile,
			Message: ErrReadSecretFile.Error(),
			Err:     err,
		}
	}
	return secret, nil
}
